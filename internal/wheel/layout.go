package wheel

import (
	"strings"
	"unicode/utf8"

	"spinwin/internal/models"
)

const (
	FullTurn      = 360.0
	maxLabelRunes = 12
	tryAgainLabel = "Try\nagain"
)

// Palette is assigned to segments by index modulo its length.
var Palette = []string{
	"#48a256",
	"#cdda55",
	"#f97316",
	"#dc2626",
	"#7c3aed",
	"#0ea5e9",
	"#ec4899",
	"#84cc16",
}

type Segment struct {
	Index      int           `json:"index"`
	Label      string        `json:"label"`
	Color      string        `json:"color"`
	StartAngle float64       `json:"start_angle"`
	SweepAngle float64       `json:"sweep_angle"`
	Reward     models.Reward `json:"reward"`
}

// CenterAngle is the angular middle of the segment.
func (s Segment) CenterAngle() float64 {
	return s.StartAngle + s.SweepAngle/2
}

// SegmentAngle returns the sweep of each of n equal segments, or 0 when n is 0.
func SegmentAngle(n int) float64 {
	if n <= 0 {
		return 0
	}
	return FullTurn / float64(n)
}

// Layout splits the wheel into one equal segment per reward, in input order.
func Layout(rewards []models.Reward) []Segment {
	if len(rewards) == 0 {
		return []Segment{}
	}
	sweep := SegmentAngle(len(rewards))
	segments := make([]Segment, len(rewards))
	for i, reward := range rewards {
		segments[i] = Segment{
			Index:      i,
			Label:      Label(reward),
			Color:      Palette[i%len(Palette)],
			StartAngle: sweep * float64(i),
			SweepAngle: sweep,
			Reward:     reward,
		}
	}
	return segments
}

// Label formats the text drawn on a segment. The first matching rule wins.
func Label(r models.Reward) string {
	switch {
	case r.IsTryAgain:
		return tryAgainLabel
	case strings.Contains(r.Name, "%"):
		return strings.Replace(r.Name, " Discount", "\nDiscount", 1)
	case utf8.RuneCountInString(r.Name) > maxLabelRunes:
		return string([]rune(r.Name)[:maxLabelRunes]) + "..."
	default:
		return r.Name
	}
}
