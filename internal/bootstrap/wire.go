package bootstrap

import (
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"hyprrec/internal/audio"
	"hyprrec/internal/clipboard"
	"hyprrec/internal/config"
	"hyprrec/internal/hypr"
	"hyprrec/internal/notify"
	"hyprrec/internal/ports"
	"hyprrec/internal/providers/deepgram"
	"hyprrec/internal/providers/whisper"
	"hyprrec/internal/rules"
	"hyprrec/internal/screencast"
	"hyprrec/internal/state"
	"hyprrec/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	// Pipeline is nil when transcription is disabled.
	Pipeline *usecase.TranscriptPipeline
	Journal  *state.Journal
	Store    *state.Store
	Hypr     *hypr.Client
	Config   config.Config
}

// Build wires all collaborators for one recording session.
func Build(cfg config.Config, events ports.EventSink) (Services, error) {
	clock := clockwork.NewRealClock()

	store, err := state.NewStore(cfg.State.Dir)
	if err != nil {
		return Services{}, err
	}
	journal := state.NewJournal(store, clock)

	capture, err := buildCapture(cfg, clock)
	if err != nil {
		return Services{}, err
	}

	client := hypr.NewClient(cfg.Keys.Hyprctl)
	signals := hypr.NewKeybindSource(client, hypr.KeybindConfig{
		CommitKey:    cfg.Keys.Commit,
		CancelKey:    cfg.Keys.Cancel,
		PollInterval: cfg.Keys.PollInterval,
	}, clock, journal)

	progress, err := notify.New(notify.Options{
		Backend:        cfg.Notify.Backend,
		AppName:        cfg.Notify.AppName,
		SwayOSDCommand: cfg.Notify.SwayOSDCommand,
	})
	if err != nil {
		return Services{}, err
	}

	prefix := cfg.Output.Prefix
	if strings.TrimSpace(prefix) == "" && cfg.Capture.Mode == config.ModeScreen {
		prefix = "capture"
	}
	controller, err := usecase.NewSessionController(capture, signals, progress, events, clock, usecase.Config{
		MaxDuration:      cfg.Session.MaxDuration,
		ProgressTick:     cfg.Session.ProgressTick,
		ProgressInterval: cfg.Session.ProgressInterval,
		FinalizeTimeout:  cfg.Session.FinalizeTimeout,
		TeardownTimeout:  cfg.Session.TeardownTimeout,
		ProgressTimeout:  cfg.Session.ProgressTimeout,
		RegisterTimeout:  cfg.Session.RegisterTimeout,
		OutputDir:        cfg.Output.Dir,
		OutputPrefix:     prefix,
		OutputTemplate:   cfg.Output.Template,
	})
	if err != nil {
		return Services{}, err
	}

	pipeline, err := buildPipeline(cfg, events)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Controller: controller,
		Pipeline:   pipeline,
		Journal:    journal,
		Store:      store,
		Hypr:       client,
		Config:     cfg,
	}, nil
}

func buildCapture(cfg config.Config, clock clockwork.Clock) (ports.Capture, error) {
	switch cfg.Capture.Mode {
	case config.ModeAudio:
		return audio.NewFFMPEGCapture(audio.Config{
			Command:     cfg.Audio.Command,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
		}, clock), nil
	case config.ModeScreen:
		return screencast.NewCapture(screencast.NewDBusPortal(), screencast.Config{
			Command:      cfg.Screen.Command,
			Audio:        cfg.Screen.Audio,
			AudioDevice:  cfg.Screen.AudioDevice,
			VideoBitrate: cfg.Screen.VideoBitrate,
			AudioBitrate: cfg.Screen.AudioBitrate,
			Cursor:       cfg.Screen.Cursor,
		}, clock), nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Capture.Mode)
	}
}

func buildPipeline(cfg config.Config, events ports.EventSink) (*usecase.TranscriptPipeline, error) {
	var transcriber ports.Transcriber
	switch cfg.Transcribe.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderWhisper:
		transcriber = whisper.NewTranscriber(whisper.Config{
			Command:  cfg.Whisper.Command,
			Model:    cfg.Whisper.Model,
			Language: cfg.Whisper.Language,
			Args:     strings.Fields(cfg.Whisper.Args),
		})
	case config.ProviderDeepgram:
		if cfg.Deepgram.APIKey == "" {
			return nil, deepgram.ErrMissingAPIKey
		}
		provider := deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		})
		// Saved artifacts carry their own container header, so encoding
		// and sample rate are left for the provider to detect.
		transcriber = usecase.NewStreamTranscriber(provider, ports.StreamingConfig{}, cfg.Transcribe.ChunkSize, cfg.Transcribe.StreamingGrace)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Transcribe.Provider)
	}

	rulesEngine, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	var board ports.Clipboard
	if cfg.Transcribe.Clipboard {
		board = clipboard.NewWLCopy(cfg.Transcribe.ClipboardCommand)
	}

	return usecase.NewTranscriptPipeline(transcriber, rulesEngine, board, events, usecase.TranscriptPipelineConfig{
		Timeout: cfg.Transcribe.Timeout,
	}), nil
}
