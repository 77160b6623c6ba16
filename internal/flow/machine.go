package flow

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spinwin/internal/apperr"
	"spinwin/internal/clock"
	"spinwin/internal/models"
)

const (
	DefaultSkipReveal    = 4000 * time.Millisecond
	DefaultSlideInterval = 4000 * time.Millisecond
	DefaultSlideCount    = 3
	DefaultAutoReturn    = 60 * time.Second
)

type Options struct {
	ReviewRequired bool
	SkipReveal     time.Duration
	SlideInterval  time.Duration
	SlideCount     int
	AutoReturn     time.Duration
}

func (o Options) withDefaults() Options {
	if o.SkipReveal <= 0 {
		o.SkipReveal = DefaultSkipReveal
	}
	if o.SlideInterval <= 0 {
		o.SlideInterval = DefaultSlideInterval
	}
	if o.SlideCount <= 0 {
		o.SlideCount = DefaultSlideCount
	}
	if o.AutoReturn <= 0 {
		o.AutoReturn = DefaultAutoReturn
	}
	return o
}

// AppState is the whole per-session state of the kiosk flow.
type AppState struct {
	Step            models.Step     `json:"step"`
	ReviewReference string          `json:"review_reference,omitempty"`
	Outcome         *models.Outcome `json:"outcome,omitempty"`
}

type Snapshot struct {
	AppState
	Epoch       uint64 `json:"epoch"`
	SkipVisible bool   `json:"skip_visible"`
	Slide       int    `json:"slide"`
	LastError   string `json:"last_error,omitempty"`
}

// Change describes one applied transition.
type Change struct {
	From     models.Step
	To       models.Step
	Event    Event
	Snapshot Snapshot
}

// Machine owns one AppState. Every mutation, user or timer driven, happens
// under mu; listeners run after mu is released.
type Machine struct {
	mu    sync.Mutex
	opts  Options
	sched clock.Scheduler
	log   zerolog.Logger

	state       AppState
	epoch       uint64
	skipVisible bool
	slide       int
	lastError   string
	stopped     bool

	revealTimer clock.Timer
	slideTimer  clock.Timer
	returnTimer clock.Timer

	listeners []func(Change)
}

func NewMachine(opts Options, sched clock.Scheduler, log zerolog.Logger) *Machine {
	m := &Machine{
		opts:  opts.withDefaults(),
		sched: sched,
		log:   log,
		state: AppState{Step: models.StepSlideshow},
		epoch: 1,
	}
	m.enterSlideshowLocked()
	return m
}

// OnChange registers a listener for applied transitions and in-step updates.
func (m *Machine) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Epoch changes on every step transition; async completions carry the epoch
// they started in so stale ones are dropped.
func (m *Machine) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Machine) Tap() (Snapshot, error) {
	return m.fire(EventTap, 0, nil)
}

func (m *Machine) Skip() (Snapshot, error) {
	return m.fire(EventSkip, 0, func() error {
		if !m.skipVisible {
			return apperr.ErrInvalidTransition
		}
		return nil
	})
}

func (m *Machine) Start() (Snapshot, error) {
	return m.fire(EventStart, 0, nil)
}

// AcceptReview moves to the wheel with the reference returned by the review service.
func (m *Machine) AcceptReview(epoch uint64, reference string) (Snapshot, error) {
	return m.fire(EventReviewAccepted, epoch, func() error {
		m.state.ReviewReference = reference
		return nil
	})
}

// CompleteSpin stores the outcome and shows the result.
func (m *Machine) CompleteSpin(epoch uint64, outcome models.Outcome) (Snapshot, error) {
	return m.fire(EventSpinDone, epoch, func() error {
		o := outcome
		m.state.Outcome = &o
		return nil
	})
}

func (m *Machine) BackHome() (Snapshot, error) {
	return m.fire(EventBackHome, 0, nil)
}

// Reset returns to the slideshow from any step.
func (m *Machine) Reset() (Snapshot, error) {
	return m.fire(EventReset, 0, nil)
}

// ReportError records a step-local message without changing the step. It is
// dropped if the step changed since epoch.
func (m *Machine) ReportError(epoch uint64, err error) {
	m.mu.Lock()
	if m.stopped || epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.lastError = apperr.MessageOf(err)
	change := Change{From: m.state.Step, To: m.state.Step, Snapshot: m.snapshotLocked()}
	listeners := m.listeners
	m.mu.Unlock()
	notify(listeners, change)
}

// ClearError drops the step-local message once the failed action succeeded.
func (m *Machine) ClearError(epoch uint64) {
	m.mu.Lock()
	if m.stopped || epoch != m.epoch || m.lastError == "" {
		m.mu.Unlock()
		return
	}
	m.lastError = ""
	change := Change{From: m.state.Step, To: m.state.Step, Snapshot: m.snapshotLocked()}
	listeners := m.listeners
	m.mu.Unlock()
	notify(listeners, change)
}

// Stop disarms every timer. The machine ignores all events afterwards.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.stopTimersLocked()
}

// fire applies event. A non-zero epoch must match the current one. guard runs
// under the lock after the transition is validated and before state changes;
// an error from it aborts with AppState untouched.
func (m *Machine) fire(event Event, epoch uint64, guard func() error) (Snapshot, error) {
	m.mu.Lock()
	if m.stopped || (epoch != 0 && epoch != m.epoch) {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, apperr.ErrInvalidTransition
	}
	from := m.state.Step
	to, err := ApplyTransition(from, event, m.opts.ReviewRequired)
	if err != nil {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.log.Debug().Err(err).Msg("transition rejected")
		return snap, apperr.Wrap(err, apperr.CodeInvalidTransition, apperr.ErrInvalidTransition.Message)
	}
	if guard != nil {
		if err := guard(); err != nil {
			snap := m.snapshotLocked()
			m.mu.Unlock()
			return snap, err
		}
	}
	m.transitionLocked(to)
	change := Change{From: from, To: to, Event: event, Snapshot: m.snapshotLocked()}
	listeners := m.listeners
	m.mu.Unlock()

	m.log.Info().Str("from", string(from)).Str("to", string(to)).Str("event", string(event)).Msg("step changed")
	notify(listeners, change)
	return change.Snapshot, nil
}

func (m *Machine) transitionLocked(to models.Step) {
	m.stopTimersLocked()
	m.epoch++
	m.lastError = ""
	m.state.Step = to
	switch to {
	case models.StepSlideshow:
		m.enterSlideshowLocked()
	case models.StepResult:
		m.armAutoReturnLocked()
	}
}

func (m *Machine) enterSlideshowLocked() {
	m.state = AppState{Step: models.StepSlideshow}
	m.skipVisible = false
	m.slide = 0
	epoch := m.epoch
	m.revealTimer = m.sched.AfterFunc(m.opts.SkipReveal, func() { m.revealSkip(epoch) })
	m.armSlideLocked()
}

func (m *Machine) armSlideLocked() {
	epoch := m.epoch
	m.slideTimer = m.sched.AfterFunc(m.opts.SlideInterval, func() { m.nextSlide(epoch) })
}

func (m *Machine) armAutoReturnLocked() {
	m.returnTimer = clock.StopTimer(m.returnTimer)
	epoch := m.epoch
	m.returnTimer = m.sched.AfterFunc(m.opts.AutoReturn, func() { m.autoReturn(epoch) })
}

func (m *Machine) stopTimersLocked() {
	m.revealTimer = clock.StopTimer(m.revealTimer)
	m.slideTimer = clock.StopTimer(m.slideTimer)
	m.returnTimer = clock.StopTimer(m.returnTimer)
}

func (m *Machine) revealSkip(epoch uint64) {
	m.inStepUpdate(epoch, models.StepSlideshow, func() {
		m.revealTimer = nil
		m.skipVisible = true
	})
}

func (m *Machine) nextSlide(epoch uint64) {
	m.inStepUpdate(epoch, models.StepSlideshow, func() {
		m.slide = (m.slide + 1) % m.opts.SlideCount
		m.armSlideLocked()
	})
}

func (m *Machine) autoReturn(epoch uint64) {
	if _, err := m.fire(EventAutoReturn, epoch, nil); err == nil {
		m.log.Info().Msg("result timed out, back to slideshow")
	}
}

func (m *Machine) inStepUpdate(epoch uint64, step models.Step, apply func()) {
	m.mu.Lock()
	if m.stopped || epoch != m.epoch || m.state.Step != step {
		m.mu.Unlock()
		return
	}
	apply()
	change := Change{From: step, To: step, Snapshot: m.snapshotLocked()}
	listeners := m.listeners
	m.mu.Unlock()
	notify(listeners, change)
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		AppState:    m.state,
		Epoch:       m.epoch,
		SkipVisible: m.skipVisible,
		Slide:       m.slide,
		LastError:   m.lastError,
	}
	if m.state.Outcome != nil {
		o := *m.state.Outcome
		snap.Outcome = &o
	}
	return snap
}

func notify(listeners []func(Change), change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}
