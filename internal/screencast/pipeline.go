package screencast

import (
	"strconv"
)

// PipelineConfig describes the gst-launch encode graph.
type PipelineConfig struct {
	// RemoteFD is the child's descriptor number for the PipeWire remote.
	RemoteFD     int
	NodeID       uint32
	Audio        bool
	AudioDevice  string
	VideoBitrate int
	AudioBitrate int
	Output       string
}

// pipelineArgs renders gst-launch-1.0 arguments. -e makes SIGINT send EOS so
// the muxer writes a playable file.
func pipelineArgs(cfg PipelineConfig) []string {
	if cfg.VideoBitrate <= 0 {
		cfg.VideoBitrate = 8000
	}
	if cfg.AudioBitrate <= 0 {
		cfg.AudioBitrate = 128000
	}

	args := []string{"-e"}
	args = append(args,
		"pipewiresrc",
		"fd="+strconv.Itoa(cfg.RemoteFD),
		"path="+strconv.FormatUint(uint64(cfg.NodeID), 10),
		"do-timestamp=true",
		"keepalive-time=1000",
		"resend-last=true",
		"!", "videoconvert",
		"!", "queue",
		"!", "x264enc",
		"bitrate="+strconv.Itoa(cfg.VideoBitrate),
		"tune=zerolatency",
		"speed-preset=veryfast",
		"!", "h264parse",
		"!", "queue",
		"!", "mux.",
	)
	if cfg.Audio {
		src := []string{"pulsesrc"}
		if cfg.AudioDevice != "" && cfg.AudioDevice != "default" {
			src = append(src, "device="+cfg.AudioDevice)
		}
		args = append(args, src...)
		args = append(args,
			"!", "audioconvert",
			"!", "audioresample",
			"!", "queue",
			"!", "avenc_aac",
			"bitrate="+strconv.Itoa(cfg.AudioBitrate),
			"!", "queue",
			"!", "mux.",
		)
	}
	args = append(args,
		"mp4mux", "name=mux",
		"!", "filesink", "location="+cfg.Output,
	)
	return args
}
