package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyprrec/internal/config"
	"hyprrec/internal/domain"
	"hyprrec/internal/state"
)

type fakeRunner struct {
	result domain.SessionResult
	err    error
	got    config.Config
	calls  int
}

func (f *fakeRunner) RunSession(_ context.Context, cfg config.Config) (domain.SessionResult, error) {
	f.calls++
	f.got = cfg
	return f.result, f.err
}

type env struct {
	home    string
	runtime string
}

func isolate(t *testing.T) env {
	t.Helper()
	homedir.DisableCache = true
	e := env{home: t.TempDir(), runtime: t.TempDir()}
	t.Setenv("HOME", e.home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_RUNTIME_DIR", e.runtime)
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv("HYPRREC_DEBUG", "")
	t.Setenv("HYPRREC_CAPTURE_MODE", "")
	t.Setenv("HYPRREC_TRANSCRIBE_PROVIDER", "")
	t.Setenv("HYPRREC_STATE_DIR", filepath.Join(e.home, "state"))
	return e
}

func execute(t *testing.T, deps *Dependencies, args ...string) (string, error) {
	t.Helper()
	if deps.LogOutput == nil {
		deps.LogOutput = &bytes.Buffer{}
	}
	cmd := NewRootCmd(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootReportsSavedRecording(t *testing.T) {
	isolate(t)
	runner := &fakeRunner{result: domain.SessionResult{
		Outcome:  domain.Saved("/tmp/recording_1.wav"),
		Duration: 12 * time.Second,
	}}

	out, err := execute(t, &Dependencies{Sessions: runner})
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	assert.Contains(t, out, "Saved /tmp/recording_1.wav (12s)")
}

func TestRootCancelledIsNotAnError(t *testing.T) {
	isolate(t)
	runner := &fakeRunner{result: domain.SessionResult{Outcome: domain.Cancelled()}}

	out, err := execute(t, &Dependencies{Sessions: runner})
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
}

func TestRootFailedReturnsError(t *testing.T) {
	isolate(t)
	cause := domain.NewSessionError(domain.ErrorCodeStart, errors.New("ffmpeg missing"))
	runner := &fakeRunner{
		result: domain.SessionResult{Outcome: domain.Failed(cause.Error()), Err: cause},
		err:    cause,
	}

	_, err := execute(t, &Dependencies{Sessions: runner})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionFailed)
	assert.ErrorIs(t, err, domain.ErrStartFailure)
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	runner := &fakeRunner{result: domain.SessionResult{Outcome: domain.Cancelled()}}

	_, err := execute(t, &Dependencies{Sessions: runner},
		"--video", "--max-duration", "5s", "--transcribe", "whisper", "--clipboard")
	require.NoError(t, err)
	assert.Equal(t, config.ModeScreen, runner.got.Capture.Mode)
	assert.Equal(t, 5*time.Second, runner.got.Session.MaxDuration)
	assert.Equal(t, config.ProviderWhisper, runner.got.Transcribe.Provider)
	assert.True(t, runner.got.Transcribe.Clipboard)
}

func TestRootRejectsInvalidFlags(t *testing.T) {
	isolate(t)
	runner := &fakeRunner{}

	_, err := execute(t, &Dependencies{Sessions: runner}, "--max-duration", "0s")
	require.Error(t, err)
	assert.Zero(t, runner.calls)

	_, err = execute(t, &Dependencies{Sessions: runner}, "--transcribe", "siri")
	require.Error(t, err)
	assert.Zero(t, runner.calls)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, &Dependencies{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hyprrec dev")
}

func TestDoctorReportsMissingPrerequisites(t *testing.T) {
	isolate(t)
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/run/user/1000/bus")
	lookPath := func(file string) (string, error) {
		if file == "ffmpeg" {
			return "/usr/bin/ffmpeg", nil
		}
		return "", errors.New("not found")
	}

	out, err := execute(t, &Dependencies{LookPath: lookPath}, "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Hyprland session")
	assert.Contains(t, out, "✗ hyprctl: hyprctl not found")
	assert.Contains(t, out, "✓ Audio recorder: /usr/bin/ffmpeg")
	assert.Contains(t, out, "✓ Notifications: session bus available")
	assert.Contains(t, out, "Some prerequisites are missing.")
}

func TestCleanupSweepsDeadSessions(t *testing.T) {
	e := isolate(t)

	store, err := state.NewStore(filepath.Join(e.home, "state"))
	require.NoError(t, err)
	artifact := filepath.Join(e.home, "partial.wav")
	owned := filepath.Join(e.runtime, "hyprrec-owned.signal")
	stray := filepath.Join(e.runtime, "hyprrec-stray.signal")
	for _, path := range []string{artifact, owned, stray} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}
	require.NoError(t, store.Save(state.Record{ID: "dead", OutputPath: artifact, SignalFile: owned}))

	out, err := execute(t, &Dependencies{}, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "cleaned dead, signal file removed, partial recording removed")
	assert.Contains(t, out, "removed stray signal file "+stray)

	for _, path := range []string{artifact, owned, stray} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "expected %s to be removed", path)
	}
	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCleanupKeepsRecordsWithUnremovableKeys(t *testing.T) {
	e := isolate(t)

	store, err := state.NewStore(filepath.Join(e.home, "state"))
	require.NoError(t, err)
	require.NoError(t, store.Save(state.Record{ID: "dead", Keys: []string{",Return"}}))

	out, err := execute(t, &Dependencies{}, "cleanup", "--keep-artifacts")
	require.Error(t, err)
	assert.Contains(t, out, "incomplete dead")

	_, err = store.Load("dead")
	assert.NoError(t, err)
}
