package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/caarlos0/smsalarm/smsproto"
)

// Session states. Transitions only move forward through the five
// configuration steps; Error is reachable from any step, Idle through an
// explicit cancel.
const (
	StateIdle     = "idle"
	StateConf1    = "conf1"
	StateConf2    = "conf2"
	StateConf3    = "conf3"
	StateConf4    = "conf4"
	StateConf5    = "conf5"
	StateComplete = "complete"
	StateError    = "error"
)

var confStates = []string{StateConf1, StateConf2, StateConf3, StateConf4, StateConf5}

// ProgressFunc reports a completed configuration step and the overall
// percentage.
type ProgressFunc func(step, percent int)

// DoneFunc reports the end of a configuration run: nil on completion, a
// *StepError otherwise.
type DoneFunc func(err error)

// Session drives the five-step configuration download. Each step sends
// CONFn?, waits for the matching CONFn: block through the correlator,
// persists it and advances. A reply of the wrong kind is a desync and
// fails the run; so does a timeout. Restarting always begins at step 1:
// the panel may have changed under us, and every step's persistence
// replaces its whole record set, so re-running is idempotent.
type Session struct {
	mu         sync.Mutex
	fsm        *fsm.FSM
	correlator *Correlator
	store      Store
	timeout    time.Duration
	percent    int
	journal    []string
	onProgress ProgressFunc
	onDone     DoneFunc
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStepTimeout overrides the per-step reply timeout.
func WithStepTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// WithProgress registers the per-step progress callback.
func WithProgress(fn ProgressFunc) SessionOption {
	return func(s *Session) { s.onProgress = fn }
}

// WithDone registers the end-of-run callback.
func WithDone(fn DoneFunc) SessionOption {
	return func(s *Session) { s.onDone = fn }
}

func NewSession(correlator *Correlator, store Store, opts ...SessionOption) *Session {
	s := &Session{
		correlator: correlator,
		store:      store,
		timeout:    DefaultReplyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: "start", Src: []string{StateIdle, StateComplete, StateError}, Dst: StateConf1},
			{Name: "advance", Src: []string{StateConf1}, Dst: StateConf2},
			{Name: "advance", Src: []string{StateConf2}, Dst: StateConf3},
			{Name: "advance", Src: []string{StateConf3}, Dst: StateConf4},
			{Name: "advance", Src: []string{StateConf4}, Dst: StateConf5},
			{Name: "advance", Src: []string{StateConf5}, Dst: StateComplete},
			{Name: "fail", Src: confStates, Dst: StateError},
			{Name: "cancel", Src: confStates, Dst: StateIdle},
		},
		fsm.Callbacks{},
	)
	return s
}

// Start kicks off a configuration run from step 1. It fails with
// ErrSessionRunning while a run is in progress, and with the transport's
// error if the first query cannot be sent, in which case the state is
// left untouched.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stepLocked() != 0 {
		return ErrSessionRunning
	}
	if err := s.sendLocked(1); err != nil {
		return err
	}
	_ = s.fsm.Event(context.Background(), "start")
	s.percent = 0
	s.journal = nil
	s.logf("step 1 requested")
	return nil
}

// Cancel aborts a running session and returns it to Idle. Records
// persisted by completed steps are kept: partial configuration is
// intentional, a later run replaces them wholesale. Safe to call at any
// time.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepLocked() == 0 {
		return
	}
	s.correlator.Cancel()
	_ = s.fsm.Event(context.Background(), "cancel")
	s.logf("cancelled")
	log.Info("configuration cancelled")
}

// State returns the session state name.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.Current()
}

// Percent returns the overall progress, 20 per completed step.
func (s *Session) Percent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Journal returns the progress log of the current or last run.
func (s *Session) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.journal))
	copy(out, s.journal)
	return out
}

func (s *Session) stepResolved(resp smsproto.Response) {
	var notify func()

	s.mu.Lock()
	step := s.stepLocked()
	if step == 0 {
		// cancelled while the reply was in flight
		s.mu.Unlock()
		return
	}

	want := smsproto.ConfKind(step)
	if resp.Kind != want {
		desyncCounter.Inc()
		notify = s.failLocked(step, &DesyncError{Step: step, Want: want, Got: resp.Kind})
		s.mu.Unlock()
		notify()
		return
	}

	if err := s.persist(step, resp); err != nil {
		notify = s.failLocked(step, err)
		s.mu.Unlock()
		notify()
		return
	}

	final := step == smsproto.KindConf5.ConfStep()
	if final {
		// the configured flag must be durable before the machine may
		// report completion
		if err := s.store.MarkConfigured(true); err != nil {
			notify = s.failLocked(step, err)
			s.mu.Unlock()
			notify()
			return
		}
	}

	s.percent = step * 20
	s.logf("step %d done (%d%%)", step, s.percent)
	log.Info("configuration step done", "step", step, "percent", s.percent)
	_ = s.fsm.Event(context.Background(), "advance")

	if final {
		s.logf("complete")
		onProgress, onDone := s.onProgress, s.onDone
		percent := s.percent
		s.mu.Unlock()
		if onProgress != nil {
			onProgress(step, percent)
		}
		if onDone != nil {
			onDone(nil)
		}
		return
	}

	if err := s.sendLocked(step + 1); err != nil {
		notify = s.failLocked(step+1, err)
		s.mu.Unlock()
		notify()
		return
	}
	s.logf("step %d requested", step+1)
	onProgress := s.onProgress
	percent := s.percent
	s.mu.Unlock()
	if onProgress != nil {
		onProgress(step, percent)
	}
}

func (s *Session) stepTimeout() {
	s.mu.Lock()
	step := s.stepLocked()
	if step == 0 {
		s.mu.Unlock()
		return
	}
	notify := s.failLocked(step, ErrReplyTimeout)
	s.mu.Unlock()
	notify()
}

// sendLocked issues the CONFn? query for the given step through the
// correlator. Caller holds s.mu.
func (s *Session) sendLocked(step int) error {
	return s.correlator.Send(
		smsproto.ConfQuery{Step: step},
		s.timeout,
		s.stepResolved,
		s.stepTimeout,
	)
}

// failLocked moves the session to Error and returns the notification to
// run after the lock is released. Caller holds s.mu.
func (s *Session) failLocked(step int, err error) func() {
	_ = s.fsm.Event(context.Background(), "fail")
	stepErr := &StepError{Step: step, Err: err}
	s.logf("failed: %v", stepErr)
	log.Error("configuration failed", "step", step, "err", err)
	onDone := s.onDone
	return func() {
		if onDone != nil {
			onDone(stepErr)
		}
	}
}

func (s *Session) persist(step int, resp smsproto.Response) error {
	switch step {
	case 1:
		if err := s.store.PutPanelInfo(resp.Version, resp.MainAccount, resp.Flags); err != nil {
			return err
		}
		return s.store.PutZones(resp.Zones)
	case 2, 3:
		return s.store.PutScenarios(resp.Scenarios)
	case 4, 5:
		return s.store.PutUsers(resp.Users)
	default:
		return fmt.Errorf("no such configuration step: %d", step)
	}
}

// stepLocked maps the current state to its step number, 0 when no step is
// active. Caller holds s.mu.
func (s *Session) stepLocked() int {
	switch s.fsm.Current() {
	case StateConf1:
		return 1
	case StateConf2:
		return 2
	case StateConf3:
		return 3
	case StateConf4:
		return 4
	case StateConf5:
		return 5
	default:
		return 0
	}
}

func (s *Session) logf(format string, args ...any) {
	s.journal = append(s.journal, fmt.Sprintf(format, args...))
}
