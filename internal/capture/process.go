// Package capture runs external recorder processes that write a single
// artifact file and stop on SIGINT.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/op/go-logging"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

var log = logging.MustGetLogger("capture")

// ErrEmptyCapture is returned when a committed recording left no data.
var ErrEmptyCapture = errors.New("recording is empty")

const (
	defaultStartupProbe = 250 * time.Millisecond
	defaultStopGrace    = 3 * time.Second
)

// ProcessConfig describes one recorder invocation.
type ProcessConfig struct {
	// Name is used in logs and errors, e.g. "ffmpeg".
	Name       string
	Command    string
	Args       []string
	OutputPath string
	// ExtraFiles are inherited by the child starting at fd 3.
	ExtraFiles []*os.File
	// StartupProbe is how long the process must survive to count as started.
	StartupProbe time.Duration
	// StopGrace bounds the wait after SIGINT before the group is killed.
	StopGrace time.Duration
	Clock     clockwork.Clock
	// OnExit runs once after the process has been reaped.
	OnExit func()
}

// ProcessHandle is a running recorder. It implements ports.CaptureHandle
// and ports.CaptureWatcher.
type ProcessHandle struct {
	name      string
	output    string
	grace     time.Duration
	clock     clockwork.Clock
	startedAt time.Time
	onExit    func()

	process *os.Process
	stderr  *bytes.Buffer
	done    chan struct{}
	waitErr error

	mu        sync.Mutex
	finalized bool
}

var (
	_ ports.CaptureHandle  = (*ProcessHandle)(nil)
	_ ports.CaptureWatcher = (*ProcessHandle)(nil)
)

// StartProcess launches the recorder in its own process group so a
// terminal Ctrl-C reaches only hyprrec, which then finalizes deliberately.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*ProcessHandle, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.StartupProbe <= 0 {
		cfg.StartupProbe = defaultStartupProbe
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(cfg.Command)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.ExtraFiles = cfg.ExtraFiles
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Name, err)
	}

	h := &ProcessHandle{
		name:      cfg.Name,
		output:    cfg.OutputPath,
		grace:     cfg.StopGrace,
		clock:     cfg.Clock,
		startedAt: cfg.Clock.Now(),
		onExit:    cfg.OnExit,
		process:   cmd.Process,
		stderr:    &stderr,
		done:      make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		h.exited()
		close(h.done)
	}()

	probe := cfg.Clock.NewTimer(cfg.StartupProbe)
	defer probe.Stop()
	select {
	case <-h.done:
		_ = os.Remove(cfg.OutputPath)
		if h.waitErr != nil {
			return nil, fmt.Errorf("%s exited before capture started: %w: %s", cfg.Name, h.waitErr, trimmed(&stderr))
		}
		return nil, fmt.Errorf("%s exited before capture started", cfg.Name)
	case <-ctx.Done():
		h.killGroup()
		<-h.done
		_ = os.Remove(cfg.OutputPath)
		return nil, ctx.Err()
	case <-probe.Chan():
	}

	log.Debugf("%s recording to %s (pid %d)", cfg.Name, cfg.OutputPath, cmd.Process.Pid)
	return h, nil
}

func (h *ProcessHandle) Elapsed() time.Duration {
	return h.clock.Since(h.startedAt)
}

func (h *ProcessHandle) Done() <-chan struct{} {
	return h.done
}

// PID returns the recorder's process id.
func (h *ProcessHandle) PID() int {
	return h.process.Pid
}

func (h *ProcessHandle) Finalize(ctx context.Context, action domain.FinalizeAction) (ports.FinalizeResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		return ports.FinalizeResult{}, ports.ErrAlreadyFinalized
	}
	h.finalized = true

	stopErr := h.stop(ctx)

	if action == domain.FinalizeDiscard {
		if err := os.Remove(h.output); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ports.FinalizeResult{}, fmt.Errorf("remove discarded recording: %w", err)
		}
		return ports.FinalizeResult{}, nil
	}

	if stopErr != nil {
		if err := os.Remove(h.output); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warningf("%s: removing truncated recording %s failed: %v", h.name, h.output, err)
		}
		return ports.FinalizeResult{}, stopErr
	}
	info, err := os.Stat(h.output)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.FinalizeResult{}, ErrEmptyCapture
		}
		return ports.FinalizeResult{}, err
	}
	if info.Size() == 0 {
		_ = os.Remove(h.output)
		return ports.FinalizeResult{}, ErrEmptyCapture
	}
	return ports.FinalizeResult{Path: h.output, Bytes: info.Size()}, nil
}

// stop asks the recorder to flush with SIGINT and kills the whole group if
// it has not exited within the grace period or ctx ends first.
func (h *ProcessHandle) stop(ctx context.Context) error {
	select {
	case <-h.done:
		return h.exitError()
	default:
	}

	if err := h.process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debugf("%s: interrupt failed: %v", h.name, err)
	}

	grace := h.clock.NewTimer(h.grace)
	defer grace.Stop()
	select {
	case <-h.done:
		return h.exitError()
	case <-grace.Chan():
		log.Warningf("%s did not stop within %s, killing", h.name, h.grace)
	case <-ctx.Done():
		log.Warningf("%s: finalize deadline reached, killing", h.name)
	}
	h.killGroup()
	<-h.done
	return fmt.Errorf("%s had to be killed; recording may be truncated", h.name)
}

func (h *ProcessHandle) killGroup() {
	if err := syscall.Kill(-h.process.Pid, syscall.SIGKILL); err != nil {
		_ = h.process.Kill()
	}
}

func (h *ProcessHandle) exited() {
	if h.onExit != nil {
		h.onExit()
	}
}

// exitError treats a non-zero exit status as success: recorders commonly
// exit non-zero after SIGINT even when the file was written.
func (h *ProcessHandle) exitError() error {
	err := normalizeExitErr(h.waitErr)
	if err != nil && h.stderr.Len() > 0 {
		return fmt.Errorf("%s: %w: %s", h.name, err, trimmed(h.stderr))
	}
	return err
}

func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(buf *bytes.Buffer) string {
	return string(bytes.TrimSpace(buf.Bytes()))
}
