package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies non-fatal and fatal session errors.
type ErrorCode string

const (
	ErrorCodeStart         ErrorCode = "start"
	ErrorCodeRegistration  ErrorCode = "registration"
	ErrorCodeSignalLost    ErrorCode = "signal_lost"
	ErrorCodeFinalize      ErrorCode = "finalize"
	ErrorCodeInterrupted   ErrorCode = "interrupted"
	ErrorCodeProgress      ErrorCode = "progress"
	ErrorCodeUnregister    ErrorCode = "unregister"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeRules         ErrorCode = "rules"
	ErrorCodeClipboard     ErrorCode = "clipboard"
)

var (
	ErrStartFailure        = errors.New("capture could not be started")
	ErrRegistrationFailure = errors.New("global signals could not be registered")
	ErrSignalLost          = errors.New("global signal source stopped")
	ErrFinalizeFailure     = errors.New("capture could not be finalized")
	ErrInterrupted         = errors.New("session interrupted")
)

var codeSentinels = map[ErrorCode]error{
	ErrorCodeStart:        ErrStartFailure,
	ErrorCodeRegistration: ErrRegistrationFailure,
	ErrorCodeSignalLost:   ErrSignalLost,
	ErrorCodeFinalize:     ErrFinalizeFailure,
	ErrorCodeInterrupted:  ErrInterrupted,
}

// SessionError ties an underlying failure to its place in the taxonomy.
type SessionError struct {
	Code ErrorCode
	Err  error
}

func NewSessionError(code ErrorCode, err error) *SessionError {
	return &SessionError{Code: code, Err: err}
}

func (e *SessionError) Error() string {
	sentinel, ok := codeSentinels[e.Code]
	switch {
	case ok && e.Err != nil:
		return fmt.Sprintf("%s: %v", sentinel, e.Err)
	case ok:
		return sentinel.Error()
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && target == sentinel
}

// CodeOf extracts the ErrorCode carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr.Code, true
	}
	return "", false
}
