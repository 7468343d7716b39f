package usecase

import (
	"fmt"
	"sync"
	"time"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

// activeSession is owned by a single Run call. The mutex only guards reads
// from Status; every mutation happens on the coordinating goroutine.
type activeSession struct {
	id         string
	outputPath string

	stateMu sync.Mutex
	state   domain.SessionState

	capture   ports.CaptureHandle
	startedAt time.Time
	deadline  time.Time
	lastEmit  time.Time

	outcome domain.Outcome
	trigger domain.Trigger
	reason  domain.SessionStateReason
	err     error
}

func newActiveSession(id string, outputPath string) *activeSession {
	return &activeSession{id: id, outputPath: outputPath, state: domain.SessionStateIdle}
}

func (s *activeSession) begin(capture ports.CaptureHandle, startedAt time.Time, maxDuration time.Duration) error {
	if err := s.advance(domain.SessionStateRecording); err != nil {
		return err
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.capture = capture
	s.startedAt = startedAt
	s.deadline = startedAt.Add(maxDuration)
	return nil
}

// advance moves the session forward. Idle may only go to Recording, or
// straight to Terminated when the capture never started.
func (s *activeSession) advance(next domain.SessionState) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.state == domain.SessionStateIdle {
		if next == domain.SessionStateRecording || next == domain.SessionStateTerminated {
			s.state = next
			return nil
		}
		return fmt.Errorf("invalid session transition %s -> %s", s.state, next)
	}

	want, ok := s.state.Next()
	if !ok || want != next {
		return fmt.Errorf("invalid session transition %s -> %s", s.state, next)
	}
	s.state = next
	return nil
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// take hands the capture handle out exactly once.
func (s *activeSession) take() ports.CaptureHandle {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	handle := s.capture
	s.capture = nil
	return handle
}

func (s *activeSession) peek() ports.CaptureHandle {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.capture
}

func (s *activeSession) settle(outcome domain.Outcome, trigger domain.Trigger, reason domain.SessionStateReason, err error) {
	if !s.outcome.IsZero() {
		return
	}
	s.outcome = outcome
	s.trigger = trigger
	s.reason = reason
	s.err = err
}

func (s *activeSession) info() domain.SessionInfo {
	return domain.SessionInfo{
		ID:         s.id,
		OutputPath: s.outputPath,
		StartedAt:  s.startedAt,
		Deadline:   s.deadline,
	}
}

func (s *activeSession) result(now time.Time) domain.SessionResult {
	var duration time.Duration
	if !s.startedAt.IsZero() {
		duration = now.Sub(s.startedAt)
	}
	return domain.SessionResult{
		ID:       s.id,
		Outcome:  s.outcome,
		Trigger:  s.trigger,
		Duration: duration,
		Err:      s.err,
	}
}

// decision is the single finalize choice made when leaving Recording.
type decision struct {
	action  domain.FinalizeAction
	trigger domain.Trigger
	reason  domain.SessionStateReason
	// cause is set for forced discards, which always end as Failed.
	cause error
}

func signalDecision(event domain.SignalEvent, open bool) decision {
	if !open {
		return decision{
			action:  domain.FinalizeDiscard,
			trigger: domain.TriggerSignalLost,
			reason:  domain.SessionReasonSignalLost,
			cause:   domain.NewSessionError(domain.ErrorCodeSignalLost, nil),
		}
	}
	switch event {
	case domain.SignalCommit:
		return decision{action: domain.FinalizeCommit, trigger: domain.TriggerCommit, reason: domain.SessionReasonCommitRequested}
	default:
		return decision{action: domain.FinalizeDiscard, trigger: domain.TriggerCancel, reason: domain.SessionReasonCancelRequested}
	}
}

var (
	deadlineDecision = decision{
		action:  domain.FinalizeCommit,
		trigger: domain.TriggerDeadline,
		reason:  domain.SessionReasonDeadlineReached,
	}
	captureExitDecision = decision{
		action:  domain.FinalizeCommit,
		trigger: domain.TriggerCaptureExited,
		reason:  domain.SessionReasonCaptureExited,
	}
)

func interruptDecision(cause error) decision {
	return decision{
		action:  domain.FinalizeDiscard,
		trigger: domain.TriggerInterrupted,
		reason:  domain.SessionReasonInterrupted,
		cause:   domain.NewSessionError(domain.ErrorCodeInterrupted, cause),
	}
}

func registrationDecision(err error) decision {
	return decision{
		action:  domain.FinalizeDiscard,
		trigger: domain.TriggerRegistrationFailed,
		reason:  domain.SessionReasonRegistrationFailed,
		cause:   domain.NewSessionError(domain.ErrorCodeRegistration, err),
	}
}
