package wheel

import (
	"math"
	"sync"

	"github.com/samber/lo"

	"spinwin/internal/models"
)

// MinBaseRotation is five full turns, the least the wheel travels on any spin.
const MinBaseRotation = 5 * FullTurn

// Target is where a spin lands.
type Target struct {
	Index         int     `json:"index"`
	Matched       bool    `json:"matched"`
	RestAngle     float64 `json:"rest_angle"`
	TotalRotation float64 `json:"total_rotation"`
}

// Resolver maps outcomes onto segments and remembers the wheel's rotation so
// every spin moves forward from where the previous one stopped.
type Resolver struct {
	mu           sync.Mutex
	src          Source
	baseRotation float64
	lastRotation float64
}

func NewResolver(src Source, baseRotation float64) *Resolver {
	if src == nil {
		src = NewRandomSource()
	}
	if baseRotation < MinBaseRotation {
		baseRotation = MinBaseRotation
	}
	return &Resolver{src: src, baseRotation: baseRotation}
}

// LastRotation is the absolute rotation the wheel rests at.
func (r *Resolver) LastRotation() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRotation
}

// SetLastRotation places the wheel at rotation, e.g. when resuming a kiosk
// whose wheel already turned. Negative values are treated as zero.
func (r *Resolver) SetLastRotation(rotation float64) {
	if rotation < 0 {
		rotation = 0
	}
	r.mu.Lock()
	r.lastRotation = rotation
	r.mu.Unlock()
}

// Resolve lands the wheel on the first segment whose reward id equals the
// outcome's. Without a match a segment is picked at random and Matched is false;
// the outcome itself is left as the caller received it.
// segments must not be empty.
func (r *Resolver) Resolve(outcome models.Outcome, segments []Segment) Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, idx, found := lo.FindIndexOf(segments, func(s Segment) bool {
		return s.Reward.ID == outcome.RewardID
	})
	if !found {
		idx = r.src.Intn(len(segments))
	}
	return r.landLocked(idx, found, segments)
}

// Draw picks a segment at random and synthesizes its outcome. Used when no
// remote service decides the prize.
func (r *Resolver) Draw(segments []Segment) (Target, models.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.src.Intn(len(segments))
	target := r.landLocked(idx, true, segments)
	return target, models.OutcomeFromReward(segments[idx].Reward)
}

func (r *Resolver) landLocked(idx int, matched bool, segments []Segment) Target {
	rest := RestAngle(segments[idx].StartAngle, SegmentAngle(len(segments)))
	total := nextWholeTurn(r.lastRotation) + r.baseRotation + rest
	r.lastRotation = total
	return Target{
		Index:         idx,
		Matched:       matched,
		RestAngle:     rest,
		TotalRotation: total,
	}
}

// RestAngle is the wheel angle that puts the segment's center under the top pointer.
func RestAngle(startAngle, sweep float64) float64 {
	return FullTurn - (startAngle + sweep/2)
}

func nextWholeTurn(rotation float64) float64 {
	if rotation <= 0 {
		return 0
	}
	return math.Ceil(rotation/FullTurn) * FullTurn
}
