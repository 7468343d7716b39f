package domain

import "time"

// SessionState models the capture session lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateRecording  SessionState = "recording"
	SessionStateFinalizing SessionState = "finalizing"
	SessionStateTerminated SessionState = "terminated"
)

// Next reports the only state a session may move to from s.
func (s SessionState) Next() (SessionState, bool) {
	switch s {
	case SessionStateRecording:
		return SessionStateFinalizing, true
	case SessionStateFinalizing:
		return SessionStateTerminated, true
	default:
		return "", false
	}
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonCommitRequested    SessionStateReason = "commit_requested"
	SessionReasonCancelRequested    SessionStateReason = "cancel_requested"
	SessionReasonDeadlineReached    SessionStateReason = "deadline_reached"
	SessionReasonCaptureExited      SessionStateReason = "capture_exited"
	SessionReasonRegistrationFailed SessionStateReason = "registration_failed"
	SessionReasonSignalLost         SessionStateReason = "signal_lost"
	SessionReasonInterrupted        SessionStateReason = "interrupted"
	SessionReasonRecordingSaved     SessionStateReason = "recording_saved"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonFinalizeFailed     SessionStateReason = "finalize_failed"
	SessionReasonStartFailed        SessionStateReason = "start_failed"
)

// SignalEvent is one of the two global inputs a session listens for.
type SignalEvent string

const (
	SignalCommit SignalEvent = "commit"
	SignalCancel SignalEvent = "cancel"
)

// FinalizeAction tells a capture handle how to end the recording.
type FinalizeAction string

const (
	FinalizeCommit  FinalizeAction = "commit"
	FinalizeDiscard FinalizeAction = "discard"
)

// Trigger records which source decided the session's finalize action.
type Trigger string

const (
	TriggerNone               Trigger = ""
	TriggerCommit             Trigger = "commit"
	TriggerCancel             Trigger = "cancel"
	TriggerDeadline           Trigger = "deadline"
	TriggerCaptureExited      Trigger = "capture_exited"
	TriggerRegistrationFailed Trigger = "registration_failed"
	TriggerSignalLost         Trigger = "signal_lost"
	TriggerInterrupted        Trigger = "interrupted"
)

// OutcomeKind is the terminal result of a session.
type OutcomeKind string

const (
	OutcomeSaved     OutcomeKind = "saved"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is exactly one of Saved(path), Cancelled or Failed(reason).
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Path   string      `json:"path,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

func Saved(path string) Outcome {
	return Outcome{Kind: OutcomeSaved, Path: path}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

// IsZero reports whether no outcome has been decided yet.
func (o Outcome) IsZero() bool {
	return o.Kind == ""
}

// Succeeded is true for Saved and Cancelled.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSaved || o.Kind == OutcomeCancelled
}

// SessionInfo describes a session once its capture has started.
type SessionInfo struct {
	ID         string    `json:"id"`
	OutputPath string    `json:"outputPath"`
	StartedAt  time.Time `json:"startedAt"`
	Deadline   time.Time `json:"deadline"`
}

// SessionResult is returned once a session has terminated.
type SessionResult struct {
	ID       string        `json:"id"`
	Outcome  Outcome       `json:"outcome"`
	Trigger  Trigger       `json:"trigger"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Active    bool         `json:"active"`
	SessionID string       `json:"sessionId,omitempty"`
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// TranscriptResult is produced by the post-save transcription step.
type TranscriptResult struct {
	RawTranscript   string `json:"rawTranscript"`
	FinalTranscript string `json:"finalTranscript"`
	Path            string `json:"path"`
	Copied          bool   `json:"copied"`
}
