package spin

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spinwin/internal/apperr"
	"spinwin/internal/clock"
	"spinwin/internal/models"
	"spinwin/internal/wheel"
)

type State string

const (
	StateIdle     State = "idle"
	StateSpinning State = "spinning"
	StateSettling State = "settling"
	StateDone     State = "done"
)

const (
	DefaultAnimation = 3000 * time.Millisecond
	DefaultSettle    = 1000 * time.Millisecond
)

// OutcomeSource decides the prize of a spin. A nil source lets the wheel draw
// the prize itself.
type OutcomeSource interface {
	Outcome(ctx context.Context) (models.Outcome, error)
}

type OutcomeFunc func(ctx context.Context) (models.Outcome, error)

func (f OutcomeFunc) Outcome(ctx context.Context) (models.Outcome, error) {
	return f(ctx)
}

// Result is handed to the completion callback once the wheel has settled.
type Result struct {
	Outcome models.Outcome
	Target  wheel.Target
	Segment wheel.Segment
}

type Config struct {
	Animation time.Duration
	Settle    time.Duration
}

// Sequencer runs one spin: Idle -> Spinning -> Settling -> Done. An instance
// spins at most once; a new spin needs a new Sequencer.
type Sequencer struct {
	mu         sync.Mutex
	cfg        Config
	sched      clock.Scheduler
	resolver   *wheel.Resolver
	segments   []wheel.Segment
	source     OutcomeSource
	onComplete func(Result)
	log        zerolog.Logger

	state     State
	inFlight  bool
	cancelled bool
	timer     clock.Timer
	result    Result
	startedAt time.Time
}

func NewSequencer(cfg Config, sched clock.Scheduler, resolver *wheel.Resolver, segments []wheel.Segment, source OutcomeSource, onComplete func(Result), log zerolog.Logger) *Sequencer {
	if cfg.Animation <= 0 {
		cfg.Animation = DefaultAnimation
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	return &Sequencer{
		cfg:        cfg,
		sched:      sched,
		resolver:   resolver,
		segments:   segments,
		source:     source,
		onComplete: onComplete,
		log:        log,
		state:      StateIdle,
	}
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a spin request is being resolved or animated.
func (s *Sequencer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight || s.state == StateSpinning || s.state == StateSettling
}

// Target returns where the running or finished spin lands.
func (s *Sequencer) Target() (wheel.Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return wheel.Target{}, false
	}
	return s.result.Target, true
}

// Trigger starts the spin. It is rejected unless the sequencer is idle with no
// request in flight and at least one segment. When the prize source fails the
// sequencer stays idle and may be triggered again.
func (s *Sequencer) Trigger(ctx context.Context) (wheel.Target, error) {
	s.mu.Lock()
	if s.state != StateIdle || s.inFlight || s.cancelled {
		s.mu.Unlock()
		return wheel.Target{}, apperr.ErrSpinRejected
	}
	if len(s.segments) == 0 {
		s.mu.Unlock()
		return wheel.Target{}, apperr.ErrCatalogUnavailable
	}
	s.inFlight = true
	s.mu.Unlock()

	var (
		outcome models.Outcome
		err     error
	)
	if s.source != nil {
		outcome, err = s.source.Outcome(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if s.cancelled {
		return wheel.Target{}, apperr.ErrSpinRejected
	}
	if err != nil {
		return wheel.Target{}, err
	}

	var target wheel.Target
	if s.source == nil {
		target, outcome = s.resolver.Draw(s.segments)
	} else {
		target = s.resolver.Resolve(outcome, s.segments)
		if !target.Matched {
			s.log.Warn().
				Err(apperr.ErrSegmentMismatch).
				Str("reward_id", outcome.RewardID).
				Int("fallback_index", target.Index).
				Msg("spin outcome not on wheel, landing on random segment")
		}
	}
	s.result = Result{Outcome: outcome, Target: target, Segment: s.segments[target.Index]}
	s.state = StateSpinning
	s.startedAt = s.sched.Now()
	s.timer = s.sched.AfterFunc(s.cfg.Animation, s.settle)
	return target, nil
}

func (s *Sequencer) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.state != StateSpinning {
		return
	}
	s.state = StateSettling
	s.timer = s.sched.AfterFunc(s.cfg.Settle, s.finish)
}

func (s *Sequencer) finish() {
	s.mu.Lock()
	if s.cancelled || s.state != StateSettling {
		s.mu.Unlock()
		return
	}
	s.state = StateDone
	s.timer = nil
	result := s.result
	cb := s.onComplete
	s.log.Debug().
		Str("reward_id", result.Outcome.RewardID).
		Dur("elapsed", s.sched.Now().Sub(s.startedAt)).
		Msg("spin settled")
	s.mu.Unlock()

	if cb != nil {
		cb(result)
	}
}

// Cancel drops pending timers; no result is emitted afterwards. Safe to call
// in any state and more than once.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	s.timer = clock.StopTimer(s.timer)
}
