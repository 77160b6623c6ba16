package flow

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinwin/internal/apperr"
	"spinwin/internal/clock"
	"spinwin/internal/models"
)

func newTestMachine(t *testing.T, reviewRequired bool) (*Machine, *clock.Fake, *[]Change) {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC))
	m := NewMachine(Options{ReviewRequired: reviewRequired}, fake, zerolog.Nop())
	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })
	return m, fake, &changes
}

func winner() models.Outcome {
	return models.Outcome{RewardID: "r1", IsWinner: true, RedemptionCode: "SPIN10"}
}

func driveToResult(t *testing.T, m *Machine) {
	t.Helper()
	_, err := m.Tap()
	require.NoError(t, err)
	snap, err := m.Start()
	require.NoError(t, err)
	if snap.Step == models.StepReview {
		_, err = m.AcceptReview(m.Epoch(), "review-1")
		require.NoError(t, err)
	}
	_, err = m.CompleteSpin(m.Epoch(), winner())
	require.NoError(t, err)
}

func TestApplyTransition_Valid(t *testing.T) {
	cases := []struct {
		from   models.Step
		event  Event
		review bool
		to     models.Step
	}{
		{models.StepSlideshow, EventTap, true, models.StepIntro},
		{models.StepSlideshow, EventSkip, true, models.StepIntro},
		{models.StepIntro, EventStart, true, models.StepReview},
		{models.StepIntro, EventStart, false, models.StepSpin},
		{models.StepReview, EventReviewAccepted, true, models.StepSpin},
		{models.StepSpin, EventSpinDone, true, models.StepResult},
		{models.StepResult, EventBackHome, true, models.StepSlideshow},
		{models.StepResult, EventAutoReturn, true, models.StepSlideshow},
		{models.StepSlideshow, EventReset, true, models.StepSlideshow},
		{models.StepSpin, EventReset, true, models.StepSlideshow},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_"+string(tc.event), func(t *testing.T) {
			got, err := ApplyTransition(tc.from, tc.event, tc.review)
			require.NoError(t, err)
			assert.Equal(t, tc.to, got)
		})
	}
}

func TestApplyTransition_Invalid(t *testing.T) {
	cases := []struct {
		from  models.Step
		event Event
	}{
		{models.StepSlideshow, EventStart},
		{models.StepIntro, EventSpinDone},
		{models.StepReview, EventSpinDone},
		{models.StepSpin, EventBackHome},
		{models.StepResult, EventTap},
		{models.Step("bogus"), EventTap},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_"+string(tc.event), func(t *testing.T) {
			_, err := ApplyTransition(tc.from, tc.event, true)
			assert.Error(t, err)
		})
	}
}

func TestMachine_FullFlowWithReview(t *testing.T) {
	m, _, changes := newTestMachine(t, true)
	assert.Equal(t, models.StepSlideshow, m.Snapshot().Step)

	snap, err := m.Tap()
	require.NoError(t, err)
	assert.Equal(t, models.StepIntro, snap.Step)

	snap, err = m.Start()
	require.NoError(t, err)
	assert.Equal(t, models.StepReview, snap.Step)

	snap, err = m.AcceptReview(m.Epoch(), "rev-42")
	require.NoError(t, err)
	assert.Equal(t, models.StepSpin, snap.Step)
	assert.Equal(t, "rev-42", snap.ReviewReference)

	snap, err = m.CompleteSpin(m.Epoch(), winner())
	require.NoError(t, err)
	assert.Equal(t, models.StepResult, snap.Step)
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, "SPIN10", snap.Outcome.RedemptionCode)

	snap, err = m.BackHome()
	require.NoError(t, err)
	assert.Equal(t, models.StepSlideshow, snap.Step)
	assert.Empty(t, snap.ReviewReference)
	assert.Nil(t, snap.Outcome)

	var steps []models.Step
	for _, c := range *changes {
		if c.From != c.To || c.Event == EventReset {
			steps = append(steps, c.To)
		}
	}
	assert.Equal(t, []models.Step{models.StepIntro, models.StepReview, models.StepSpin, models.StepResult, models.StepSlideshow}, steps)
}

func TestMachine_ReviewBypassed(t *testing.T) {
	m, _, _ := newTestMachine(t, false)
	_, err := m.Tap()
	require.NoError(t, err)
	snap, err := m.Start()
	require.NoError(t, err)
	assert.Equal(t, models.StepSpin, snap.Step)
	assert.Empty(t, snap.ReviewReference)
}

func TestMachine_InvalidEventLeavesStateIntact(t *testing.T) {
	m, _, _ := newTestMachine(t, true)
	before := m.Snapshot()

	_, err := m.Start()
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = m.CompleteSpin(before.Epoch, winner())
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	assert.Equal(t, before, m.Snapshot())
}

func TestMachine_SkipRevealedAfterDelay(t *testing.T) {
	m, fake, _ := newTestMachine(t, true)
	_, err := m.Skip()
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, models.StepSlideshow, m.Snapshot().Step)

	fake.Advance(3999 * time.Millisecond)
	assert.False(t, m.Snapshot().SkipVisible)
	fake.Advance(time.Millisecond)
	assert.True(t, m.Snapshot().SkipVisible)

	snap, err := m.Skip()
	require.NoError(t, err)
	assert.Equal(t, models.StepIntro, snap.Step)
	assert.False(t, snap.SkipVisible)
}

func TestMachine_SlidesRotateOnlyOnSlideshow(t *testing.T) {
	m, fake, _ := newTestMachine(t, true)
	fake.Advance(4 * time.Second)
	assert.Equal(t, 1, m.Snapshot().Slide)
	fake.Advance(8 * time.Second)
	assert.Equal(t, 0, m.Snapshot().Slide, "three slides wrap around")

	_, err := m.Tap()
	require.NoError(t, err)
	assert.Zero(t, fake.Pending())
}

func TestMachine_AutoReturnFromResult(t *testing.T) {
	m, fake, _ := newTestMachine(t, false)
	driveToResult(t, m)
	assert.Equal(t, 1, fake.Pending(), "exactly one auto-return timer armed")

	fake.Advance(DefaultAutoReturn - time.Millisecond)
	assert.Equal(t, models.StepResult, m.Snapshot().Step)

	fake.Advance(time.Millisecond)
	snap := m.Snapshot()
	assert.Equal(t, models.StepSlideshow, snap.Step)
	assert.Nil(t, snap.Outcome)
	assert.Empty(t, snap.ReviewReference)
}

func TestMachine_BackHomeDisarmsAutoReturn(t *testing.T) {
	m, fake, changes := newTestMachine(t, true)
	driveToResult(t, m)

	_, err := m.BackHome()
	require.NoError(t, err)
	_, err = m.Tap()
	require.NoError(t, err)
	count := len(*changes)

	fake.Advance(2 * DefaultAutoReturn)
	assert.Equal(t, models.StepIntro, m.Snapshot().Step, "stale auto-return must not reset a new play")
	assert.Len(t, *changes, count)
}

func TestMachine_StaleAsyncCompletionDropped(t *testing.T) {
	m, _, _ := newTestMachine(t, true)
	_, err := m.Tap()
	require.NoError(t, err)
	_, err = m.Start()
	require.NoError(t, err)
	epoch := m.Epoch()

	_, err = m.Reset()
	require.NoError(t, err)
	_, err = m.Tap()
	require.NoError(t, err)
	_, err = m.Start()
	require.NoError(t, err)

	_, err = m.AcceptReview(epoch, "late")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, models.StepReview, m.Snapshot().Step)
	assert.Empty(t, m.Snapshot().ReviewReference)
}

func TestMachine_ResetIsIdempotent(t *testing.T) {
	m, fake, _ := newTestMachine(t, true)
	driveToResult(t, m)

	first, err := m.Reset()
	require.NoError(t, err)
	second, err := m.Reset()
	require.NoError(t, err)

	assert.Equal(t, first.AppState, second.AppState)
	assert.Equal(t, AppState{Step: models.StepSlideshow}, second.AppState)
	assert.Equal(t, 2, fake.Pending(), "reveal and slide timers only")
}

func TestMachine_ReportError(t *testing.T) {
	m, _, _ := newTestMachine(t, true)
	_, _ = m.Tap()
	_, _ = m.Start()
	epoch := m.Epoch()

	m.ReportError(epoch, apperr.Wrap(assert.AnError, apperr.CodeReviewSubmitFailed, "email rejected"))
	snap := m.Snapshot()
	assert.Equal(t, models.StepReview, snap.Step)
	assert.Equal(t, "email rejected", snap.LastError)

	snap, err := m.AcceptReview(epoch, "ok")
	require.NoError(t, err)
	assert.Empty(t, snap.LastError)
}

func TestMachine_StopDisarmsEverything(t *testing.T) {
	m, fake, _ := newTestMachine(t, true)
	driveToResult(t, m)
	m.Stop()
	assert.Zero(t, fake.Pending())

	_, err := m.BackHome()
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestMachine_ClearError(t *testing.T) {
	m, _, changes := newTestMachine(t, false)
	_, _ = m.Tap()
	_, _ = m.Start()
	epoch := m.Epoch()

	m.ClearError(epoch)
	count := len(*changes)
	assert.Equal(t, count, len(*changes), "nothing to clear, no change")

	m.ReportError(epoch, apperr.ErrCatalogUnavailable)
	m.ClearError(epoch + 1)
	assert.Equal(t, apperr.ErrCatalogUnavailable.Message, m.Snapshot().LastError)

	m.ClearError(epoch)
	assert.Empty(t, m.Snapshot().LastError)
	assert.Len(t, *changes, count+2)
}
