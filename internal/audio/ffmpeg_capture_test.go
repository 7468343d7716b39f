package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

func TestFFMPEGCaptureRecordsAndCommits(t *testing.T) {
	t.Parallel()

	argsFile := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, "ffmpeg.sh", "#!/usr/bin/env bash\necho \"$@\" > "+argsFile+"\nout=\"${@: -1}\"\ntrap 'exit 255' INT\nprintf 'RIFF' > \"$out\"\nwhile true; do sleep 0.05; done\n")
	capture := NewFFMPEGCapture(Config{Command: script, InputDevice: "mic"}, nil)

	out := filepath.Join(t.TempDir(), "recording_1."+capture.Extension())
	handle, err := capture.Start(context.Background(), ports.CaptureRequest{SessionID: "1", OutputPath: out})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := handle.Finalize(context.Background(), domain.FinalizeCommit)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.Path != out {
		t.Fatalf("unexpected path %q", result.Path)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-f pulse", "-i mic", "-ac 1", "-ar 16000", "-y " + out} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("expected %q in ffmpeg args %q", want, args)
		}
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(Config{Command: script}, nil)

	_, err := capture.Start(context.Background(), ports.CaptureRequest{OutputPath: filepath.Join(t.TempDir(), "x.wav")})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "ffmpeg exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFFMPEGCaptureDefaults(t *testing.T) {
	t.Parallel()

	capture := NewFFMPEGCapture(Config{}, nil)
	if capture.cfg.Command != "ffmpeg" || capture.cfg.SampleRate != 16000 || capture.cfg.Channels != 1 {
		t.Fatalf("unexpected defaults: %+v", capture.cfg)
	}
	if capture.Extension() != "wav" {
		t.Fatalf("unexpected extension %q", capture.Extension())
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
