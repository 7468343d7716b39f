package audio

import (
	"context"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"hyprrec/internal/capture"
	"hyprrec/internal/ports"
)

// Config selects the ffmpeg input and output format.
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	StopGrace   time.Duration
}

// FFMPEGCapture records microphone audio to a WAV file using ffmpeg.
type FFMPEGCapture struct {
	cfg   Config
	clock clockwork.Clock
}

var _ ports.Capture = (*FFMPEGCapture)(nil)

func NewFFMPEGCapture(cfg Config, clock clockwork.Clock) *FFMPEGCapture {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &FFMPEGCapture{cfg: cfg, clock: clock}
}

func (c *FFMPEGCapture) Extension() string { return "wav" }

func (c *FFMPEGCapture) Start(ctx context.Context, req ports.CaptureRequest) (ports.CaptureHandle, error) {
	handle, err := capture.StartProcess(ctx, capture.ProcessConfig{
		Name:       "ffmpeg",
		Command:    c.cfg.Command,
		Args:       c.args(req.OutputPath),
		OutputPath: req.OutputPath,
		StopGrace:  c.cfg.StopGrace,
		Clock:      c.clock,
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (c *FFMPEGCapture) args(output string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.cfg.InputFormat,
		"-i", c.cfg.InputDevice,
		"-ac", strconv.Itoa(c.cfg.Channels),
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-c:a", "pcm_s16le",
		"-y",
		output,
	}
}
