package flow

import (
	"fmt"

	"spinwin/internal/models"
)

// Event is a trigger of the kiosk step machine.
type Event string

const (
	EventTap            Event = "tap"
	EventSkip           Event = "skip"
	EventStart          Event = "start"
	EventReviewAccepted Event = "review_accepted"
	EventSpinDone       Event = "spin_done"
	EventBackHome       Event = "back_home"
	EventAutoReturn     Event = "auto_return"
	EventReset          Event = "reset"
)

// IsUserEvent is true for events a visitor can cause directly from the kiosk.
func (e Event) IsUserEvent() bool {
	switch e {
	case EventTap, EventSkip, EventStart, EventBackHome:
		return true
	}
	return false
}

// transitionTable maps current step -> event -> next step.
var transitionTable = map[models.Step]map[Event]models.Step{
	models.StepSlideshow: {
		EventTap:   models.StepIntro,
		EventSkip:  models.StepIntro,
		EventReset: models.StepSlideshow,
	},
	models.StepIntro: {
		EventStart: models.StepReview,
		EventReset: models.StepSlideshow,
	},
	models.StepReview: {
		EventReviewAccepted: models.StepSpin,
		EventReset:          models.StepSlideshow,
	},
	models.StepSpin: {
		EventSpinDone: models.StepResult,
		EventReset:    models.StepSlideshow,
	},
	models.StepResult: {
		EventBackHome:   models.StepSlideshow,
		EventAutoReturn: models.StepSlideshow,
		EventReset:      models.StepSlideshow,
	},
}

// ApplyTransition returns the step reached from current on event. When the
// review is not required, starting from the intro goes straight to the wheel.
func ApplyTransition(current models.Step, event Event, reviewRequired bool) (models.Step, error) {
	events, ok := transitionTable[current]
	if !ok {
		return "", fmt.Errorf("no transitions defined for step %q", current)
	}
	next, ok := events[event]
	if !ok {
		return "", fmt.Errorf("invalid transition: %q + %q", current, event)
	}
	if next == models.StepReview && !reviewRequired {
		next = models.StepSpin
	}
	return next, nil
}
