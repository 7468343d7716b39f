package capture

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

const recorderScript = `#!/usr/bin/env bash
out="${@: -1}"
trap 'exit 255' INT
printf 'RIFFdata' > "$out"
while true; do sleep 0.05; done
`

// stubbornScript ignores SIGINT so finalize has to kill it.
const stubbornScript = `#!/usr/bin/env bash
out="${@: -1}"
trap '' INT
printf 'x' > "$out"
while true; do sleep 0.05; done
`

func TestProcessHandleCommitKeepsArtifact(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "nested", "rec.wav")
	handle := startScript(t, recorderScript, out, ProcessConfig{})

	result, err := handle.Finalize(context.Background(), domain.FinalizeCommit)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.Path != out || result.Bytes != int64(len("RIFFdata")) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestProcessHandleDiscardRemovesArtifact(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "rec.wav")
	handle := startScript(t, recorderScript, out, ProcessConfig{})

	if _, err := handle.Finalize(context.Background(), domain.FinalizeDiscard); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected artifact to be removed, stat err=%v", err)
	}
}

func TestProcessHandleFinalizeOnlyOnce(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "rec.wav")
	handle := startScript(t, recorderScript, out, ProcessConfig{})

	if _, err := handle.Finalize(context.Background(), domain.FinalizeCommit); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := handle.Finalize(context.Background(), domain.FinalizeDiscard); !errors.Is(err, ports.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("second finalize must not touch the artifact: %v", err)
	}
}

func TestProcessHandleEmptyCommitFails(t *testing.T) {
	t.Parallel()

	script := "#!/usr/bin/env bash\nout=\"${@: -1}\"\ntrap 'exit 255' INT\n: > \"$out\"\nwhile true; do sleep 0.05; done\n"
	out := filepath.Join(t.TempDir(), "rec.wav")
	handle := startScript(t, script, out, ProcessConfig{})

	_, err := handle.Finalize(context.Background(), domain.FinalizeCommit)
	if !errors.Is(err, ErrEmptyCapture) {
		t.Fatalf("expected ErrEmptyCapture, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("empty artifact should be removed")
	}
}

func TestProcessHandleKillsStubbornRecorder(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "rec.wav")
	handle := startScript(t, stubbornScript, out, ProcessConfig{StopGrace: 100 * time.Millisecond})

	_, err := handle.Finalize(context.Background(), domain.FinalizeCommit)
	if err == nil || !strings.Contains(err.Error(), "killed") {
		t.Fatalf("expected killed error, got %v", err)
	}
	select {
	case <-handle.Done():
	default:
		t.Fatalf("process should be reaped after finalize")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("truncated artifact should be removed, stat err=%v", err)
	}
}

func TestProcessHandleWaitsFollowInjectedClock(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	out := filepath.Join(t.TempDir(), "rec.wav")
	cfg := ProcessConfig{
		Command:      writeScript(t, "recorder.sh", stubbornScript),
		Args:         []string{out},
		OutputPath:   out,
		StartupProbe: time.Second,
		StopGrace:    10 * time.Second,
		Clock:        clock,
	}

	started := make(chan *ProcessHandle, 1)
	startErr := make(chan error, 1)
	go func() {
		handle, err := StartProcess(context.Background(), cfg)
		if err != nil {
			startErr <- err
			return
		}
		started <- handle
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	var handle *ProcessHandle
	select {
	case handle = <-started:
	case err := <-startErr:
		t.Fatalf("start failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("start did not return after the probe elapsed on the fake clock")
	}
	waitForFile(t, out)

	finalized := make(chan error, 1)
	go func() {
		_, err := handle.Finalize(context.Background(), domain.FinalizeCommit)
		finalized <- err
	}()

	clock.BlockUntil(1)
	select {
	case err := <-finalized:
		t.Fatalf("finalize returned before the grace period elapsed: %v", err)
	default:
	}
	clock.Advance(10 * time.Second)

	select {
	case err := <-finalized:
		if err == nil || !strings.Contains(err.Error(), "killed") {
			t.Fatalf("expected killed error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("finalize did not return after the grace period elapsed on the fake clock")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("truncated artifact should be removed, stat err=%v", err)
	}
}

func TestProcessHandleDoneAndOnExit(t *testing.T) {
	t.Parallel()

	var exits atomic.Int32
	script := "#!/usr/bin/env bash\nout=\"${@: -1}\"\nprintf 'x' > \"$out\"\nsleep 0.5\n"
	out := filepath.Join(t.TempDir(), "rec.wav")
	handle := startScript(t, script, out, ProcessConfig{OnExit: func() { exits.Add(1) }})

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Done to close when the recorder exits")
	}

	result, err := handle.Finalize(context.Background(), domain.FinalizeCommit)
	if err != nil {
		t.Fatalf("commit after exit failed: %v", err)
	}
	if result.Bytes != 1 {
		t.Fatalf("unexpected size %d", result.Bytes)
	}
	if got := exits.Load(); got != 1 {
		t.Fatalf("expected OnExit once, got %d", got)
	}
}

func TestStartProcessEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	_, err := StartProcess(context.Background(), ProcessConfig{
		Name:       "ffmpeg",
		Command:    script,
		OutputPath: filepath.Join(t.TempDir(), "rec.wav"),
	})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartProcessMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := StartProcess(context.Background(), ProcessConfig{
		Command:    filepath.Join(t.TempDir(), "does-not-exist"),
		OutputPath: filepath.Join(t.TempDir(), "rec.wav"),
	})
	if err == nil || !strings.Contains(err.Error(), "failed to start") {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestNormalizeExitErrIgnoresExitStatus(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeExitErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func startScript(t *testing.T, contents string, out string, cfg ProcessConfig) *ProcessHandle {
	t.Helper()
	cfg.Command = writeScript(t, "recorder.sh", contents)
	cfg.Args = append(cfg.Args, out)
	cfg.OutputPath = out
	handle, err := StartProcess(context.Background(), cfg)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = handle.Finalize(context.Background(), domain.FinalizeDiscard)
	})
	return handle
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s was never created", path)
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
