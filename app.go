package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/op/go-logging"

	"hyprrec/internal/bootstrap"
	"hyprrec/internal/config"
	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
	"hyprrec/internal/state"
)

var log = logging.MustGetLogger("hyprrec")

type sessionController interface {
	Run(ctx context.Context) (domain.SessionResult, error)
}

type transcriptProcessor interface {
	Process(ctx context.Context, artifactPath string) (domain.TranscriptResult, error)
}

// services is the part of the bootstrap graph the App drives.
type services struct {
	controller sessionController
	// pipeline is nil when transcription is disabled.
	pipeline transcriptProcessor
	journal  *state.Journal
}

type wireFunc func(cfg config.Config, events ports.EventSink) (services, error)

// App runs one session and observes it: it journals the session for crash
// cleanup, logs lifecycle events and transcribes saved recordings.
type App struct {
	out  io.Writer
	wire wireFunc

	journal *state.Journal
	current domain.SessionInfo
}

func NewApp(out io.Writer) *App {
	return &App{out: out, wire: wireServices}
}

func wireServices(cfg config.Config, events ports.EventSink) (services, error) {
	built, err := bootstrap.Build(cfg, events)
	if err != nil {
		return services{}, err
	}
	s := services{controller: built.Controller, journal: built.Journal}
	if built.Pipeline != nil {
		s.pipeline = built.Pipeline
	}
	return s, nil
}

// RunSession records one clip. A failed transcription is reported but
// never changes the session result.
func (a *App) RunSession(ctx context.Context, cfg config.Config) (domain.SessionResult, error) {
	svc, err := a.wire(cfg, a)
	if err != nil {
		return domain.SessionResult{}, fmt.Errorf("initializing: %w", err)
	}
	a.journal = svc.journal

	result, err := svc.controller.Run(ctx)
	if result.Outcome.Kind != domain.OutcomeSaved || svc.pipeline == nil {
		return result, err
	}

	if ctx.Err() != nil {
		log.Warningf("interrupted; skipping transcription of %s", result.Outcome.Path)
		return result, err
	}
	fmt.Fprintln(a.out, "Transcribing...")
	transcript, tErr := svc.pipeline.Process(ctx, result.Outcome.Path)
	switch {
	case tErr != nil:
		log.Warningf("recording saved but transcription failed: %v", tErr)
	case transcript.Copied:
		fmt.Fprintf(a.out, "Transcript saved to %s and copied to the clipboard\n", transcript.Path)
	default:
		fmt.Fprintf(a.out, "Transcript saved to %s\n", transcript.Path)
	}
	return result, err
}

// SessionStarted opens the crash-cleanup record.
func (a *App) SessionStarted(info domain.SessionInfo) {
	a.current = info
	if a.journal != nil {
		a.journal.Begin(info.ID, info.OutputPath, info.StartedAt)
	}
	log.Infof("recording to %s until %s", info.OutputPath, info.Deadline.Format("15:04:05"))
}

func (a *App) SessionStateChanged(sessionState domain.SessionState, reason domain.SessionStateReason) {
	message := sessionReasonMessage(reason)
	if message == "" {
		log.Debugf("session %s: %s", a.current.ID, sessionState)
		return
	}
	log.Infof("session %s: %s (%s)", a.current.ID, message, sessionState)
}

func (a *App) SessionError(code domain.ErrorCode, detail string) {
	switch code {
	case domain.ErrorCodeProgress:
		log.Debugf("%s: %s", errorMessage(code, detail), detail)
	case domain.ErrorCodeUnregister, domain.ErrorCodeClipboard:
		log.Warningf("%s: %s", errorMessage(code, detail), detail)
	default:
		log.Errorf("%s: %s", errorMessage(code, detail), detail)
	}
}

// SessionFinished closes the record: teardown ran, nothing is left behind.
func (a *App) SessionFinished(result domain.SessionResult) {
	if a.journal != nil {
		a.journal.End()
	}
	log.Infof("session %s finished: %s via %s after %s", result.ID, result.Outcome.Kind, triggerName(result.Trigger), result.Duration.Round(time.Millisecond))
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonCommitRequested:
		return "Save requested"
	case domain.SessionReasonCancelRequested:
		return "Cancel requested"
	case domain.SessionReasonDeadlineReached:
		return "Time limit reached, saving"
	case domain.SessionReasonCaptureExited:
		return "Recorder stopped on its own, saving"
	case domain.SessionReasonRegistrationFailed:
		return "Keybindings could not be installed"
	case domain.SessionReasonSignalLost:
		return "Keybinding listener stopped"
	case domain.SessionReasonInterrupted:
		return "Interrupted"
	case domain.SessionReasonRecordingSaved:
		return "Recording saved"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonFinalizeFailed:
		return "Recording could not be finalized"
	case domain.SessionReasonStartFailed:
		return "Recording could not start"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStart:
		return "Capture start failed"
	case domain.ErrorCodeRegistration:
		return "Keybinding registration failed"
	case domain.ErrorCodeSignalLost:
		return "Keybinding listener lost"
	case domain.ErrorCodeFinalize:
		return "Capture finalize failed"
	case domain.ErrorCodeInterrupted:
		return "Session interrupted"
	case domain.ErrorCodeProgress:
		return "Progress display issue"
	case domain.ErrorCodeUnregister:
		return "Keybinding removal failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func triggerName(trigger domain.Trigger) string {
	if trigger == domain.TriggerNone {
		return "none"
	}
	return string(trigger)
}
