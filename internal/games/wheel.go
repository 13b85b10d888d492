package games

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

// WheelSegment is one slice of the fortune wheel.
type WheelSegment struct {
	Multiplier decimal.Decimal `json:"multiplier"`
	Label      string          `json:"label"`
}

var wheelMultipliers = []string{
	"0", "1.5", "0.5", "2", "0", "1.2", "3", "0.5",
	"5", "1.5", "0", "10", "2", "0.5", "1.2", "50",
}

var wheelSegments = func() []WheelSegment {
	out := make([]WheelSegment, len(wheelMultipliers))
	for i, m := range wheelMultipliers {
		d := decimal.RequireFromString(m)
		label := d.String() + "x"
		if d.IsZero() {
			label = "💀"
		}
		out[i] = WheelSegment{Multiplier: d, Label: label}
	}
	return out
}()

const (
	wheelMinTurns = 5
	wheelMaxTurns = 8
)

var wheelBigWinAt = decimal.NewFromInt(3)

// WheelSegments returns the wheel in clockwise order from the 12 o'clock edge.
func WheelSegments() []WheelSegment {
	return append([]WheelSegment(nil), wheelSegments...)
}

// SegmentAngle is the arc each segment covers, in degrees.
func SegmentAngle() float64 { return 360 / float64(len(wheelSegments)) }

// WheelNarrative is a single spin. Rotation is the absolute clockwise
// rotation the wheel ends at, continuing from the previous spin.
type WheelNarrative struct {
	Segment    int             `json:"segment"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Label      string          `json:"label"`
	Turns      int             `json:"turns"`
	From       float64         `json:"from"`
	Rotation   float64         `json:"rotation"`
}

// GenerateWheel draws a segment and the rotation that brings its centre
// under the pointer after 5 to 8 whole turns from current.
func GenerateWheel(src engine.RandomSource, current float64) *WheelNarrative {
	idx := engine.Intn(src, len(wheelSegments))
	turns := engine.IntRange(src, wheelMinTurns, wheelMaxTurns)
	return newWheelNarrative(idx, turns, current)
}

func newWheelNarrative(idx, turns int, current float64) *WheelNarrative {
	seg := SegmentAngle()
	target := 360 - float64(idx)*seg - seg/2
	delta := mod360(target - mod360(current))
	return &WheelNarrative{
		Segment:    idx,
		Multiplier: wheelSegments[idx].Multiplier,
		Label:      wheelSegments[idx].Label,
		Turns:      turns,
		From:       current,
		Rotation:   current + float64(turns)*360 + delta,
	}
}

// SegmentAt returns the segment under the pointer for a rotation and how
// far, in degrees, the pointer sits from that segment's centre.
func SegmentAt(rotation float64) (int, float64) {
	seg := SegmentAngle()
	theta := mod360(-rotation)
	idx := int(math.Floor(theta / seg))
	if idx >= len(wheelSegments) {
		idx = len(wheelSegments) - 1
	}
	return idx, theta - (float64(idx)*seg + seg/2)
}

func mod360(x float64) float64 {
	m := math.Mod(x, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// Won is true for any segment that pays.
func (n *WheelNarrative) Won() bool { return n.Multiplier.IsPositive() }

// BigWin marks segments paying 3x or more.
func (n *WheelNarrative) BigWin() bool { return n.Multiplier.GreaterThanOrEqual(wheelBigWinAt) }

func (n *WheelNarrative) Kind() Kind { return KindWheel }

func (n *WheelNarrative) Payload() map[string]any {
	return map[string]any{
		"segment":    n.Segment,
		"multiplier": n.Multiplier.InexactFloat64(),
		"won":        n.Won(),
	}
}

func (n *WheelNarrative) Timeline(t Timings) []Frame {
	return []Frame{{Step: 0, Delay: t.WheelSpin, Label: "spin"}}
}

func (n *WheelNarrative) Clone() Narrative {
	c := *n
	return &c
}

func (*WheelNarrative) sealed() {}
