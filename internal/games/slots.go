package games

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

// Symbol is one reel face.
type Symbol string

const (
	Cherry  Symbol = "🍒"
	Lemon   Symbol = "🍋"
	Orange  Symbol = "🍊"
	Grape   Symbol = "🍇"
	Star    Symbol = "⭐"
	Diamond Symbol = "💎"
)

// SlotSymbols is the reel alphabet in order.
var SlotSymbols = []Symbol{Cherry, Lemon, Orange, Grape, Star, Diamond}

const slotsReels = 3

// losingSymbols are the faces a losing spin settles on.
var losingSymbols = SlotSymbols[:4]

var (
	slotsJackpotAt = decimal.NewFromInt(10)
	slotsBigWinAt  = decimal.NewFromInt(3)
)

// SlotsNarrative is a three reel spin. The reels are placeholders until the
// result is applied; only then is Final set.
type SlotsNarrative struct {
	Reels [slotsReels]Symbol `json:"reels"`
	Final bool               `json:"final"`
}

// GenerateSlots fills the reels with a random starting face each.
func GenerateSlots(src engine.RandomSource) *SlotsNarrative {
	n := &SlotsNarrative{}
	n.spin(src)
	return n
}

func (n *SlotsNarrative) spin(src engine.RandomSource) {
	for i := range n.Reels {
		n.Reels[i] = SlotSymbols[engine.Intn(src, len(SlotSymbols))]
	}
}

// Tick redraws the placeholder reels. A final result is never overwritten.
func (n *SlotsNarrative) Tick(_ int, src engine.RandomSource) {
	if n.Final {
		return
	}
	n.spin(src)
}

// IsTriple reports whether all reels show the same face.
func (n *SlotsNarrative) IsTriple() bool {
	return n.Reels[0] == n.Reels[1] && n.Reels[1] == n.Reels[2]
}

// ApplyOutcome sets the final reels from the server's verdict. A win shows
// a triple whose face grows with the multiplier. A loss shows three of the
// first four faces and never a triple.
func (n *SlotsNarrative) ApplyOutcome(out Outcome, src engine.RandomSource) {
	n.Final = true
	if out.Won {
		face := Cherry
		switch {
		case out.Multiplier.GreaterThanOrEqual(slotsJackpotAt):
			face = Diamond
		case out.Multiplier.GreaterThanOrEqual(slotsBigWinAt):
			face = Lemon
		}
		n.Reels = [slotsReels]Symbol{face, face, face}
		return
	}
	for i := range n.Reels {
		n.Reels[i] = losingSymbols[engine.Intn(src, len(losingSymbols))]
	}
	if n.IsTriple() {
		n.Reels[2] = nextLosing(n.Reels[2])
	}
}

func nextLosing(s Symbol) Symbol {
	for i, l := range losingSymbols {
		if l == s {
			return losingSymbols[(i+1)%len(losingSymbols)]
		}
	}
	return losingSymbols[0]
}

func (n *SlotsNarrative) Kind() Kind { return KindSlots }

// Payload is nil: the server decides slots alone.
func (n *SlotsNarrative) Payload() map[string]any { return nil }

func (n *SlotsNarrative) Timeline(t Timings) []Frame {
	frames := make([]Frame, t.SlotsTicks)
	for i := range frames {
		frames[i] = Frame{Step: i, Delay: t.SlotsTick, Label: fmt.Sprintf("spin-%d", i+1)}
	}
	return frames
}

func (n *SlotsNarrative) Clone() Narrative {
	c := *n
	return &c
}

func (*SlotsNarrative) sealed() {}
