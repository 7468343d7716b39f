// Package screencast records the screen through the xdg-desktop-portal
// ScreenCast interface and a GStreamer pipeline.
package screencast

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/op/go-logging"

	"hyprrec/internal/capture"
	"hyprrec/internal/ports"
)

var log = logging.MustGetLogger("screencast")

// The PipeWire remote is the first entry of ExtraFiles.
const remoteFD = 3

// Config selects encoder settings and what the portal may offer.
type Config struct {
	Command      string
	Audio        bool
	AudioDevice  string
	VideoBitrate int
	AudioBitrate int
	Sources      uint32
	Cursor       bool
	StopGrace    time.Duration
}

// Capture records a portal-granted stream to an MP4 file.
type Capture struct {
	portal Portal
	cfg    Config
	clock  clockwork.Clock
}

var _ ports.Capture = (*Capture)(nil)

func NewCapture(portal Portal, cfg Config, clock clockwork.Clock) *Capture {
	if cfg.Command == "" {
		cfg.Command = "gst-launch-1.0"
	}
	if cfg.Sources == 0 {
		cfg.Sources = SourceMonitor | SourceWindow
	}
	if cfg.StopGrace <= 0 {
		// EOS has to flush the encoder and rewrite the moov atom.
		cfg.StopGrace = 10 * time.Second
	}
	return &Capture{portal: portal, cfg: cfg, clock: clock}
}

func (c *Capture) Extension() string { return "mp4" }

func (c *Capture) Start(ctx context.Context, req ports.CaptureRequest) (ports.CaptureHandle, error) {
	stream, err := c.portal.Open(ctx, SelectOptions{Types: c.cfg.Sources, Cursor: c.cfg.Cursor})
	if err != nil {
		return nil, err
	}
	log.Debugf("portal granted pipewire node %d", stream.NodeID)

	args := pipelineArgs(PipelineConfig{
		RemoteFD:     remoteFD,
		NodeID:       stream.NodeID,
		Audio:        c.cfg.Audio,
		AudioDevice:  c.cfg.AudioDevice,
		VideoBitrate: c.cfg.VideoBitrate,
		AudioBitrate: c.cfg.AudioBitrate,
		Output:       req.OutputPath,
	})

	var extra []*os.File
	if stream.Remote != nil {
		extra = append(extra, stream.Remote)
	}
	handle, err := capture.StartProcess(ctx, capture.ProcessConfig{
		Name:       "gst-launch",
		Command:    c.cfg.Command,
		Args:       args,
		OutputPath: req.OutputPath,
		ExtraFiles: extra,
		StopGrace:  c.cfg.StopGrace,
		Clock:      c.clock,
		OnExit: func() {
			if err := stream.Close(); err != nil {
				log.Warningf("closing screen cast session: %v", err)
			}
		},
	})
	if stream.Remote != nil {
		// The child holds its own copy of the descriptor.
		_ = stream.Remote.Close()
	}
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start screen recording: %w", err)
	}
	return handle, nil
}
