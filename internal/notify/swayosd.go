package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

// SwayOSDSink draws progress with swayosd-client's custom progress OSD.
type SwayOSDSink struct {
	command string

	mu       sync.Mutex
	finished bool
}

var _ ports.ProgressSink = (*SwayOSDSink)(nil)

func NewSwayOSDSink(command string) *SwayOSDSink {
	if command == "" {
		command = "swayosd-client"
	}
	return &SwayOSDSink{command: command}
}

func (s *SwayOSDSink) Update(ctx context.Context, fraction float64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	return s.run(ctx,
		"--custom-progress", strconv.FormatFloat(clamp(fraction), 'f', 3, 64),
		"--custom-progress-text", label,
	)
}

func (s *SwayOSDSink) Finish(ctx context.Context, outcome domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	s.finished = true
	summary, body := finishText(outcome)
	return s.run(ctx, "--custom-message", summary+": "+body)
}

func (s *SwayOSDSink) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("%s: %w: %s", s.command, err, detail)
		}
		return fmt.Errorf("%s: %w", s.command, err)
	}
	return nil
}

// Nop only logs progress.
type Nop struct{}

func (Nop) Update(_ context.Context, fraction float64, label string) error {
	log.Debugf("%s %s", label, progressBody(fraction))
	return nil
}

func (Nop) Finish(_ context.Context, outcome domain.Outcome) error {
	summary, body := finishText(outcome)
	log.Infof("%s: %s", summary, body)
	return nil
}

// Backend names accepted by New.
const (
	BackendDBus    = "dbus"
	BackendSwayOSD = "swayosd"
	BackendNone    = "none"
)

// Options selects and configures a progress backend.
type Options struct {
	Backend        string
	AppName        string
	SwayOSDCommand string
}

// New returns the progress sink for opts.Backend.
func New(opts Options) (ports.ProgressSink, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendDBus:
		return NewDBusSink(&BusNotifier{}, opts.AppName), nil
	case BackendSwayOSD:
		return NewSwayOSDSink(opts.SwayOSDCommand), nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q (want dbus, swayosd or none)", opts.Backend)
	}
}
