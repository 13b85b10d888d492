package games

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

const (
	PlinkoRows    = 12
	PlinkoBuckets = PlinkoRows + 1
)

var plinkoMultipliers = func() []decimal.Decimal {
	raw := []string{"10", "5", "2", "1.5", "1", "0.5", "0.3", "0.5", "1", "1.5", "2", "5", "10"}
	out := make([]decimal.Decimal, len(raw))
	for i, m := range raw {
		out[i] = decimal.RequireFromString(m)
	}
	return out
}()

var (
	plinkoWinAt    = decimal.NewFromInt(1)
	plinkoBigWinAt = decimal.NewFromInt(5)
)

// PlinkoMultipliers returns the bucket table, left to right.
func PlinkoMultipliers() []decimal.Decimal {
	return append([]decimal.Decimal(nil), plinkoMultipliers...)
}

// PlinkoNarrative is one ball drop. Path holds the horizontal offset from
// the centre after each row; every peg moves the ball half a bucket.
type PlinkoNarrative struct {
	Rights     []bool          `json:"rights"`
	Path       []float64       `json:"path"`
	Bucket     int             `json:"bucket"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// GeneratePlinko drops a ball through twelve rows of pegs.
func GeneratePlinko(src engine.RandomSource) *PlinkoNarrative {
	rights := make([]bool, PlinkoRows)
	for i := range rights {
		rights[i] = engine.Coin(src)
	}
	n, _ := NewPlinkoNarrative(rights)
	return n
}

// NewPlinkoNarrative builds a drop from explicit peg decisions.
func NewPlinkoNarrative(rights []bool) (*PlinkoNarrative, error) {
	if len(rights) != PlinkoRows {
		return nil, fmt.Errorf("plinko: need %d decisions, got %d", PlinkoRows, len(rights))
	}
	path := make([]float64, PlinkoRows)
	offset := 0.0
	for i, r := range rights {
		if r {
			offset += 0.5
		} else {
			offset -= 0.5
		}
		path[i] = offset
	}
	bucket := PlinkoBucket(offset)
	return &PlinkoNarrative{
		Rights:     append([]bool(nil), rights...),
		Path:       path,
		Bucket:     bucket,
		Multiplier: plinkoMultipliers[bucket],
	}, nil
}

// PlinkoBucket maps a final offset from the centre to a bucket in [0, 12].
func PlinkoBucket(offset float64) int {
	b := int(math.Floor(offset + float64(PlinkoRows)/2 + 0.5))
	return max(0, min(PlinkoBuckets-1, b))
}

// Won is true when the bucket returns at least the stake.
func (n *PlinkoNarrative) Won() bool { return n.Multiplier.GreaterThanOrEqual(plinkoWinAt) }

// BigWin marks the outer buckets.
func (n *PlinkoNarrative) BigWin() bool { return n.Multiplier.GreaterThanOrEqual(plinkoBigWinAt) }

// Route renders the decisions as a string of L and R.
func (n *PlinkoNarrative) Route() string {
	var b strings.Builder
	for _, r := range n.Rights {
		if r {
			b.WriteByte('R')
		} else {
			b.WriteByte('L')
		}
	}
	return b.String()
}

func (n *PlinkoNarrative) Kind() Kind { return KindPlinko }

func (n *PlinkoNarrative) Payload() map[string]any {
	return map[string]any{
		"final_slot": n.Bucket,
		"multiplier": n.Multiplier.InexactFloat64(),
		"won":        n.Won(),
		"path":       n.Route(),
	}
}

// Timeline has one frame per row plus the landing.
func (n *PlinkoNarrative) Timeline(t Timings) []Frame {
	frames := make([]Frame, PlinkoBuckets)
	for i := range frames {
		label := fmt.Sprintf("row-%d", i+1)
		if i == PlinkoRows {
			label = "land"
		}
		frames[i] = Frame{Step: i, Delay: t.PlinkoStep, Label: label}
	}
	return frames
}

func (n *PlinkoNarrative) Clone() Narrative {
	c := *n
	c.Rights = append([]bool(nil), n.Rights...)
	c.Path = append([]float64(nil), n.Path...)
	return &c
}

func (*PlinkoNarrative) sealed() {}
