package kiosk

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spinwin/internal/apperr"
	"spinwin/internal/catalog"
	"spinwin/internal/clock"
	"spinwin/internal/flow"
	"spinwin/internal/logging"
	"spinwin/internal/models"
	"spinwin/internal/result"
	"spinwin/internal/spin"
	"spinwin/internal/wheel"
)

const playWriteTimeout = 3 * time.Second

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]{6,20}$`)

// ValidPhone reports whether phone looks like a dialable number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimSpace(phone))
}

type Reviewer interface {
	SubmitReview(ctx context.Context, review models.Review) (string, error)
}

type SpinResolver interface {
	ResolveSpin(ctx context.Context, reference string) (models.Outcome, error)
}

type PlayRecorder interface {
	Record(ctx context.Context, play models.Play) (int64, error)
}

// Deps are the collaborators shared by every session. Spins may be nil, in
// which case the wheel draws prizes itself. Plays may be nil.
type Deps struct {
	Catalog   catalog.Source
	Reviewer  Reviewer
	Spins     SpinResolver
	Plays     PlayRecorder
	Scheduler clock.Scheduler
	Log       zerolog.Logger
}

type Options struct {
	Flow         flow.Options
	Spin         spin.Config
	BaseRotation float64
	Result       result.Options
	// Random picks fallback and offline segments. Nil uses a random seed.
	Random wheel.Source
}

type SpinView struct {
	State  spin.State    `json:"state"`
	Target *wheel.Target `json:"target,omitempty"`
}

// View is what a kiosk renders: the step snapshot plus spin and result detail.
type View struct {
	SessionID string `json:"session_id"`
	flow.Snapshot
	Spin   *SpinView    `json:"spin,omitempty"`
	Result *result.View `json:"result,omitempty"`
}

type WheelView struct {
	Ready    bool            `json:"ready"`
	Segments []wheel.Segment `json:"segments"`
	Rotation float64         `json:"rotation"`
}

// Session owns one kiosk's AppState. Calls into the step machine are never made
// while mu is held; the machine reports back through onChange.
type Session struct {
	ID      string
	KioskID string

	deps     Deps
	opts     Options
	log      zerolog.Logger
	machine  *flow.Machine
	resolver *wheel.Resolver

	mu          sync.Mutex
	segments    []wheel.Segment
	seq         *spin.Sequencer
	seqEpoch    uint64
	lastTarget  *wheel.Target
	reviewing   bool
	createdAt   time.Time
	lastSeen    time.Time
	nextSub     int
	subscribers map[int]func(View)
}

func NewSession(id, kioskID string, deps Deps, opts Options) *Session {
	if deps.Scheduler == nil {
		deps.Scheduler = clock.Real()
	}
	log := logging.WithSession(deps.Log, id)
	now := deps.Scheduler.Now()
	s := &Session{
		ID:          id,
		KioskID:     kioskID,
		deps:        deps,
		opts:        opts,
		log:         log,
		resolver:    wheel.NewResolver(opts.Random, opts.BaseRotation),
		createdAt:   now,
		lastSeen:    now,
		subscribers: make(map[int]func(View)),
	}
	s.machine = flow.NewMachine(opts.Flow, deps.Scheduler, log)
	s.machine.OnChange(s.onChange)
	return s
}

func (s *Session) View() View {
	return s.viewOf(s.machine.Snapshot())
}

func (s *Session) Tap() (View, error)      { return s.apply(s.machine.Tap) }
func (s *Session) Skip() (View, error)     { return s.apply(s.machine.Skip) }
func (s *Session) Start() (View, error)    { return s.apply(s.machine.Start) }
func (s *Session) BackHome() (View, error) { return s.apply(s.machine.BackHome) }
func (s *Session) Reset() (View, error)    { return s.apply(s.machine.Reset) }

func (s *Session) apply(fn func() (flow.Snapshot, error)) (View, error) {
	s.touch()
	snap, err := fn()
	return s.viewOf(snap), err
}

// SubmitReview sends the review and, once the service returns a reference,
// moves on to the wheel. On failure the session stays on the review step with
// the error attached.
func (s *Session) SubmitReview(ctx context.Context, review models.Review) (View, error) {
	s.touch()
	snap := s.machine.Snapshot()
	if snap.Step != models.StepReview {
		return s.viewOf(snap), apperr.ErrInvalidTransition
	}
	if err := validateReview(review); err != nil {
		s.machine.ReportError(snap.Epoch, err)
		return s.View(), err
	}

	s.mu.Lock()
	if s.reviewing {
		s.mu.Unlock()
		return s.viewOf(snap), apperr.New(apperr.CodeInvalidTransition, "review already being submitted")
	}
	s.reviewing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.reviewing = false
		s.mu.Unlock()
	}()

	ref, err := s.deps.Reviewer.SubmitReview(ctx, review)
	if err != nil {
		s.log.Warn().Err(err).Msg("review submit failed")
		s.machine.ReportError(snap.Epoch, err)
		return s.View(), err
	}
	next, err := s.machine.AcceptReview(snap.Epoch, ref)
	if err != nil {
		s.log.Info().Str("review_reference", ref).Msg("review accepted after session moved on, dropped")
	}
	return s.viewOf(next), err
}

// Wheel lays out the current catalog. The layout is fetched once per play.
func (s *Session) Wheel(ctx context.Context) (WheelView, error) {
	s.touch()
	segments, err := s.ensureWheel(ctx)
	if err != nil {
		s.machine.ReportError(s.machine.Epoch(), err)
		return WheelView{Rotation: s.resolver.LastRotation()}, err
	}
	return WheelView{
		Ready:    len(segments) > 0,
		Segments: segments,
		Rotation: s.resolver.LastRotation(),
	}, nil
}

// Spin starts the wheel. The prize comes from the reward service when a review
// reference exists, otherwise the wheel draws it. The result step follows once
// the animation and settle delays have elapsed.
func (s *Session) Spin(ctx context.Context) (View, error) {
	s.touch()
	snap := s.machine.Snapshot()
	if snap.Step != models.StepSpin {
		return s.viewOf(snap), apperr.ErrInvalidTransition
	}
	segments, err := s.ensureWheel(ctx)
	if err == nil && len(segments) == 0 {
		err = apperr.ErrCatalogUnavailable
	}
	if err != nil {
		s.machine.ReportError(snap.Epoch, err)
		return s.View(), err
	}

	seq := s.sequencerFor(snap, segments)
	if s.machine.Epoch() != snap.Epoch {
		seq.Cancel()
		return s.View(), apperr.ErrSpinRejected
	}
	target, err := seq.Trigger(ctx)
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeSpinRejected) {
			s.log.Warn().Err(err).Msg("spin failed")
			s.machine.ReportError(snap.Epoch, err)
		}
		return s.View(), err
	}

	s.mu.Lock()
	s.lastTarget = &target
	s.mu.Unlock()
	s.machine.ClearError(snap.Epoch)
	s.log.Info().Int("segment", target.Index).Float64("rotation", target.TotalRotation).Bool("matched", target.Matched).Msg("wheel spinning")

	view := s.View()
	s.publish(view)
	return view, nil
}

// Result renders the outcome of the current play.
func (s *Session) Result() result.View {
	return result.Render(s.machine.Snapshot().Outcome, s.opts.Result)
}

// Subscribe registers fn for every view change and returns its cancel func.
func (s *Session) Subscribe(fn func(View)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Close stops every timer of the session.
func (s *Session) Close() {
	s.mu.Lock()
	if s.seq != nil {
		s.seq.Cancel()
		s.seq = nil
	}
	s.subscribers = make(map[int]func(View))
	s.mu.Unlock()
	s.machine.Stop()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) touch() {
	now := s.deps.Scheduler.Now()
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) ensureWheel(ctx context.Context) ([]wheel.Segment, error) {
	s.mu.Lock()
	if len(s.segments) > 0 {
		segments := s.segments
		s.mu.Unlock()
		return segments, nil
	}
	s.mu.Unlock()

	rewards, err := s.deps.Catalog.Fetch(ctx)
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeCatalogUnavailable) {
			err = apperr.Wrap(err, apperr.CodeCatalogUnavailable, apperr.ErrCatalogUnavailable.Message)
		}
		return nil, err
	}
	segments := wheel.Layout(rewards)
	if len(segments) == 0 {
		return segments, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.segments) == 0 {
		s.segments = segments
	}
	return s.segments, nil
}

func (s *Session) sequencerFor(snap flow.Snapshot, segments []wheel.Segment) *spin.Sequencer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != nil && s.seqEpoch == snap.Epoch {
		return s.seq
	}
	if s.seq != nil {
		s.seq.Cancel()
	}
	var source spin.OutcomeSource
	if s.deps.Spins != nil && snap.ReviewReference != "" {
		ref := snap.ReviewReference
		source = spin.OutcomeFunc(func(ctx context.Context) (models.Outcome, error) {
			return s.deps.Spins.ResolveSpin(ctx, ref)
		})
	}
	epoch := snap.Epoch
	reference := snap.ReviewReference
	s.seq = spin.NewSequencer(s.opts.Spin, s.deps.Scheduler, s.resolver, segments, source, func(res spin.Result) {
		s.completeSpin(epoch, reference, res)
	}, s.log)
	s.seqEpoch = epoch
	return s.seq
}

func (s *Session) completeSpin(epoch uint64, reference string, res spin.Result) {
	res.Outcome = result.Issue(res.Outcome, s.deps.Scheduler.Now())
	if _, err := s.machine.CompleteSpin(epoch, res.Outcome); err != nil {
		s.log.Debug().Err(err).Msg("spin finished after session moved on")
		return
	}
	if s.deps.Plays == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), playWriteTimeout)
	defer cancel()
	_, err := s.deps.Plays.Record(ctx, models.Play{
		SessionID:       s.ID,
		KioskID:         s.KioskID,
		ReviewReference: reference,
		RewardID:        res.Outcome.RewardID,
		RewardName:      res.Outcome.RewardName,
		IsWinner:        res.Outcome.IsWinner,
		RedemptionCode:  res.Outcome.RedemptionCode,
		UniqueCode:      res.Outcome.UniqueCode,
		SegmentIndex:    res.Target.Index,
		Matched:         res.Target.Matched,
		RotationDeg:     res.Target.TotalRotation,
		CreatedAt:       s.deps.Scheduler.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("play log write failed")
	}
}

// onChange runs after every machine update, outside the machine's lock.
func (s *Session) onChange(c flow.Change) {
	s.mu.Lock()
	if c.From == models.StepSpin && c.To != models.StepSpin && s.seq != nil {
		s.seq.Cancel()
		s.seq = nil
	}
	if c.To == models.StepSpin && c.From != models.StepSpin {
		s.segments = nil
		s.lastTarget = nil
	}
	if c.To == models.StepSlideshow {
		s.segments = nil
		s.lastTarget = nil
	}
	s.mu.Unlock()
	s.publish(s.viewOf(c.Snapshot))
}

func (s *Session) publish(v View) {
	s.mu.Lock()
	subs := make([]func(View), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

func (s *Session) viewOf(snap flow.Snapshot) View {
	v := View{SessionID: s.ID, Snapshot: snap}
	switch snap.Step {
	case models.StepSpin:
		s.mu.Lock()
		sv := &SpinView{State: spin.StateIdle}
		if s.seq != nil && s.seqEpoch == snap.Epoch {
			sv.State = s.seq.State()
		}
		if s.lastTarget != nil {
			t := *s.lastTarget
			sv.Target = &t
		}
		s.mu.Unlock()
		v.Spin = sv
	case models.StepResult:
		r := result.Render(snap.Outcome, s.opts.Result)
		v.Result = &r
	}
	return v
}

func validateReview(r models.Review) error {
	if strings.TrimSpace(r.FullName) == "" {
		return apperr.New(apperr.CodeInvalidRequest, "please enter your name")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return apperr.New(apperr.CodeInvalidRequest, "please enter a valid email")
	}
	if r.Phone != "" && !ValidPhone(r.Phone) {
		return apperr.New(apperr.CodeInvalidRequest, "please enter a valid phone number")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return apperr.New(apperr.CodeInvalidRequest, "please choose a rating from 1 to 5")
	}
	return nil
}
