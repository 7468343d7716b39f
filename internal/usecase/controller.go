package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/op/go-logging"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

var log = logging.MustGetLogger("usecase")

var ErrSessionInProgress = errors.New("a capture session is already running")

const (
	defaultMaxDuration      = 60 * time.Second
	defaultProgressTick     = 50 * time.Millisecond
	defaultProgressInterval = 100 * time.Millisecond
	defaultFinalizeTimeout  = 30 * time.Second
	defaultTeardownTimeout  = 5 * time.Second
	defaultProgressTimeout  = 400 * time.Millisecond
	defaultRegisterTimeout  = 10 * time.Second
)

// Config controls session timing and artifact naming.
type Config struct {
	MaxDuration time.Duration
	// ProgressTick is how often the loop wakes to consider a progress update.
	ProgressTick time.Duration
	// ProgressInterval is the minimum spacing between emitted updates.
	ProgressInterval time.Duration
	FinalizeTimeout  time.Duration
	TeardownTimeout  time.Duration
	// ProgressTimeout bounds a single progress update so a stuck display
	// cannot stall the loop.
	ProgressTimeout time.Duration
	// RegisterTimeout bounds keybinding registration.
	RegisterTimeout time.Duration

	OutputDir      string
	OutputPrefix   string
	OutputTemplate string
}

// SessionController runs one bounded capture session at a time and decides
// its single outcome.
type SessionController struct {
	capture  ports.Capture
	signals  ports.SignalSource
	progress ports.ProgressSink
	events   ports.EventSink
	clock    ports.Clock
	output   *outputTemplate
	cfg      Config

	mu      sync.Mutex
	current *activeSession
}

func NewSessionController(
	capture ports.Capture,
	signals ports.SignalSource,
	progress ports.ProgressSink,
	events ports.EventSink,
	clock ports.Clock,
	cfg Config,
) (*SessionController, error) {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.ProgressTick <= 0 {
		cfg.ProgressTick = defaultProgressTick
	}
	if cfg.ProgressInterval < 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = defaultFinalizeTimeout
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = defaultTeardownTimeout
	}
	if cfg.ProgressTimeout <= 0 {
		cfg.ProgressTimeout = defaultProgressTimeout
	}
	if cfg.RegisterTimeout <= 0 {
		cfg.RegisterTimeout = defaultRegisterTimeout
	}

	output, err := newOutputTemplate(cfg.OutputDir, cfg.OutputPrefix, cfg.OutputTemplate)
	if err != nil {
		return nil, err
	}

	return &SessionController{
		capture:  capture,
		signals:  signals,
		progress: progress,
		events:   events,
		clock:    clock,
		output:   output,
		cfg:      cfg,
	}, nil
}

// Run executes one session to completion. The returned error is the
// result's Err and is non-nil only for a Failed outcome.
func (c *SessionController) Run(ctx context.Context) (domain.SessionResult, error) {
	now := c.clock.Now()
	id := sessionID(now)

	path, err := c.output.render(id, now, c.capture.Extension())
	if err != nil {
		return domain.SessionResult{}, err
	}

	active := newActiveSession(id, path)
	if !c.claim(active) {
		return domain.SessionResult{}, ErrSessionInProgress
	}
	defer c.release(active)

	c.execute(ctx, active)

	result := active.result(c.clock.Now())
	c.events.SessionFinished(result)
	return result, result.Err
}

// Status returns the state of the running session, if any.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	state := c.current.getState()
	return domain.Status{
		State:     state,
		Active:    state != domain.SessionStateTerminated,
		SessionID: c.current.id,
	}
}

// execute owns the collaborators for the session body. Unregister and
// Finish are deferred so they run on every exit path, in that order.
func (c *SessionController) execute(ctx context.Context, active *activeSession) {
	detached := context.WithoutCancel(ctx)
	defer c.terminate(detached, active)

	handle, err := c.capture.Start(ctx, ports.CaptureRequest{SessionID: active.id, OutputPath: active.outputPath})
	if err != nil {
		cause := domain.NewSessionError(domain.ErrorCodeStart, err)
		c.events.SessionError(domain.ErrorCodeStart, err.Error())
		active.settle(domain.Failed(cause.Error()), domain.TriggerNone, domain.SessionReasonStartFailed, cause)
		return
	}
	if err := active.begin(handle, c.clock.Now(), c.cfg.MaxDuration); err != nil {
		// Unreachable for a fresh session; keep the handle from leaking anyway.
		active.settle(domain.Failed(err.Error()), domain.TriggerNone, domain.SessionReasonStartFailed, err)
		return
	}
	c.events.SessionStarted(active.info())
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)

	registerCtx, cancelRegister := context.WithTimeout(ctx, c.cfg.RegisterTimeout)
	registration, err := c.signals.Register(registerCtx)
	cancelRegister()
	if err != nil {
		c.events.SessionError(domain.ErrorCodeRegistration, err.Error())
		log.Errorf("session %s: signal registration failed, discarding: %v", active.id, err)
		c.finalize(detached, active, registrationDecision(err))
		return
	}
	defer c.unregister(detached, active, registration)

	c.reportProgress(ctx, active)
	choice := c.await(ctx, active, registration)
	c.finalize(detached, active, choice)
}

// await multiplexes signals, progress ticks, the deadline and capture exit
// until one of them decides how the session ends. Pending signal events are
// always consulted before any other source is allowed to decide.
func (c *SessionController) await(ctx context.Context, active *activeSession, registration ports.SignalRegistration) decision {
	ticker := c.clock.NewTicker(c.cfg.ProgressTick)
	defer ticker.Stop()

	deadline := c.clock.NewTimer(active.deadline.Sub(c.clock.Now()))
	defer deadline.Stop()

	var exited <-chan struct{}
	if watcher, ok := active.peek().(ports.CaptureWatcher); ok {
		exited = watcher.Done()
	}
	signals := registration.Events()

	for {
		if choice, ok := pendingSignal(signals); ok {
			return choice
		}

		select {
		case event, open := <-signals:
			return signalDecision(event, open)
		case <-deadline.Chan():
			log.Infof("session %s: reached %s limit, auto-saving", active.id, c.cfg.MaxDuration)
			return preferSignal(signals, deadlineDecision)
		case <-ticker.Chan():
			if c.clock.Since(active.startedAt) >= c.cfg.MaxDuration {
				log.Infof("session %s: reached %s limit, auto-saving", active.id, c.cfg.MaxDuration)
				return preferSignal(signals, deadlineDecision)
			}
			c.reportProgress(ctx, active)
		case <-exited:
			log.Warningf("session %s: capture stopped on its own, saving what was recorded", active.id)
			return preferSignal(signals, captureExitDecision)
		case <-ctx.Done():
			return preferSignal(signals, interruptDecision(ctx.Err()))
		}
	}
}

func pendingSignal(signals <-chan domain.SignalEvent) (decision, bool) {
	select {
	case event, open := <-signals:
		return signalDecision(event, open), true
	default:
		return decision{}, false
	}
}

func preferSignal(signals <-chan domain.SignalEvent, fallback decision) decision {
	if choice, ok := pendingSignal(signals); ok {
		return choice
	}
	return fallback
}

func (c *SessionController) reportProgress(ctx context.Context, active *activeSession) {
	if active.getState() != domain.SessionStateRecording {
		return
	}
	handle := active.peek()
	if handle == nil {
		return
	}

	now := c.clock.Now()
	if !active.lastEmit.IsZero() && now.Sub(active.lastEmit) < c.cfg.ProgressInterval {
		return
	}
	active.lastEmit = now

	elapsed := handle.Elapsed()
	fraction := progressFraction(elapsed, c.cfg.MaxDuration)
	updateCtx, cancel := context.WithTimeout(ctx, c.cfg.ProgressTimeout)
	defer cancel()
	if err := c.progress.Update(updateCtx, fraction, progressLabel(elapsed, c.cfg.MaxDuration)); err != nil {
		log.Debugf("session %s: progress update failed: %v", active.id, err)
		c.events.SessionError(domain.ErrorCodeProgress, err.Error())
	}
}

func (c *SessionController) finalize(ctx context.Context, active *activeSession, choice decision) {
	if err := active.advance(domain.SessionStateFinalizing); err != nil {
		log.Errorf("session %s: %v", active.id, err)
		return
	}
	c.events.SessionStateChanged(domain.SessionStateFinalizing, choice.reason)

	handle := active.take()
	if handle == nil {
		return
	}

	finalizeCtx, cancel := context.WithTimeout(ctx, c.cfg.FinalizeTimeout)
	defer cancel()

	log.Infof("session %s: finalizing with %s (%s)", active.id, choice.action, choice.trigger)
	result, err := handle.Finalize(finalizeCtx, choice.action)
	switch {
	case err != nil:
		cause := domain.NewSessionError(domain.ErrorCodeFinalize, err)
		c.events.SessionError(domain.ErrorCodeFinalize, err.Error())
		active.settle(domain.Failed(cause.Error()), choice.trigger, domain.SessionReasonFinalizeFailed, cause)
	case choice.cause != nil:
		active.settle(domain.Failed(choice.cause.Error()), choice.trigger, domain.SessionReasonRecordingDiscarded, choice.cause)
	case choice.action == domain.FinalizeCommit:
		active.settle(domain.Saved(result.Path), choice.trigger, domain.SessionReasonRecordingSaved, nil)
	default:
		active.settle(domain.Cancelled(), choice.trigger, domain.SessionReasonRecordingDiscarded, nil)
	}
}

func (c *SessionController) unregister(ctx context.Context, active *activeSession, registration ports.SignalRegistration) {
	unregisterCtx, cancel := context.WithTimeout(ctx, c.cfg.TeardownTimeout)
	defer cancel()
	if err := registration.Unregister(unregisterCtx); err != nil {
		log.Warningf("session %s: failed to remove global keybindings: %v", active.id, err)
		c.events.SessionError(domain.ErrorCodeUnregister, err.Error())
	}
}

// terminate is the last step of every session: it discards a capture that
// was never finalized, posts the terminal progress state and marks the
// session Terminated.
func (c *SessionController) terminate(ctx context.Context, active *activeSession) {
	if handle := active.take(); handle != nil {
		discardCtx, cancel := context.WithTimeout(ctx, c.cfg.FinalizeTimeout)
		if _, err := handle.Finalize(discardCtx, domain.FinalizeDiscard); err != nil {
			log.Warningf("session %s: discarding abandoned capture failed: %v", active.id, err)
		}
		cancel()
	}
	if active.outcome.IsZero() {
		cause := errors.New("session ended without a decision")
		active.settle(domain.Failed(cause.Error()), domain.TriggerNone, domain.SessionReasonRecordingDiscarded, cause)
	}

	finishCtx, cancel := context.WithTimeout(ctx, c.cfg.TeardownTimeout)
	defer cancel()
	if err := c.progress.Finish(finishCtx, active.outcome); err != nil {
		log.Warningf("session %s: failed to show completion: %v", active.id, err)
		c.events.SessionError(domain.ErrorCodeProgress, err.Error())
	}

	state := active.getState()
	if state == domain.SessionStateRecording {
		_ = active.advance(domain.SessionStateFinalizing)
	}
	if err := active.advance(domain.SessionStateTerminated); err != nil {
		log.Errorf("session %s: %v", active.id, err)
	}
	c.events.SessionStateChanged(domain.SessionStateTerminated, active.reason)
}

func (c *SessionController) claim(active *activeSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return false
	}
	c.current = active
	return true
}

func (c *SessionController) release(active *activeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == active {
		c.current = nil
	}
}

func progressFraction(elapsed time.Duration, limit time.Duration) float64 {
	if limit <= 0 || elapsed <= 0 {
		return 0
	}
	fraction := float64(elapsed) / float64(limit)
	if fraction > 1 {
		return 1
	}
	return fraction
}

func progressLabel(elapsed time.Duration, limit time.Duration) string {
	secs := int(elapsed / time.Second)
	limitSecs := int(limit / time.Second)
	if secs > limitSecs {
		secs = limitSecs
	}
	return fmt.Sprintf("Recording: %ds / %ds", secs, limitSecs)
}
