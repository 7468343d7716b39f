package ports

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"hyprrec/internal/domain"
)

// ErrAlreadyFinalized is returned by a capture handle finalized a second time.
var ErrAlreadyFinalized = errors.New("capture handle already finalized")

// Clock provides monotonic time and timers to the controller.
type Clock = clockwork.Clock

// CaptureRequest describes where a capture writes its artifact.
type CaptureRequest struct {
	SessionID  string
	OutputPath string
}

// Capture starts recording resources.
type Capture interface {
	// Extension is the artifact file extension without the dot.
	Extension() string
	Start(ctx context.Context, req CaptureRequest) (CaptureHandle, error)
}

// FinalizeResult reports what a finalize left on disk.
type FinalizeResult struct {
	Path  string
	Bytes int64
}

// CaptureHandle is a live recording. Finalize may be called once.
type CaptureHandle interface {
	Elapsed() time.Duration
	Finalize(ctx context.Context, action domain.FinalizeAction) (FinalizeResult, error)
}

// CaptureWatcher is implemented by handles that can end on their own.
type CaptureWatcher interface {
	Done() <-chan struct{}
}

// SignalSource installs listeners for the global commit/cancel inputs.
type SignalSource interface {
	Register(ctx context.Context) (SignalRegistration, error)
}

// SignalRegistration is a live interception of the global inputs.
// Events closes when the source can no longer deliver signals.
// Unregister is safe to call more than once.
type SignalRegistration interface {
	Events() <-chan domain.SignalEvent
	Unregister(ctx context.Context) error
}

// ProgressSink displays session progress. Finish is called exactly once, last.
type ProgressSink interface {
	Update(ctx context.Context, fraction float64, label string) error
	Finish(ctx context.Context, outcome domain.Outcome) error
}

// EventSink observes controller state changes.
type EventSink interface {
	SessionStarted(info domain.SessionInfo)
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
	SessionFinished(result domain.SessionResult)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// Transcriber turns a saved recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, artifactPath string) (string, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}
