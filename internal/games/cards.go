package games

import (
	"fmt"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

// CardFace is one of the three cards on the table.
type CardFace string

const (
	FaceJoker CardFace = "joker"
	FaceQueen CardFace = "queen"
	FaceKing  CardFace = "king"
)

const (
	cardsCount    = 3
	cardsMinSwaps = 5
	cardsMaxSwaps = 10
)

// Swap exchanges the positions of two cards, identified by their index in
// the opening layout.
type Swap struct {
	A int `json:"a"`
	B int `json:"b"`
}

// CardsNarrative is a Find the Joker round. Mapping[c] is the table
// position currently holding the card that opened at position c.
type CardsNarrative struct {
	InitialJoker int             `json:"initialJoker"`
	Swaps        []Swap          `json:"swaps"`
	Mapping      [cardsCount]int `json:"mapping"`
	Selected     int             `json:"selected"`
	Revealed     bool            `json:"revealed"`
}

// NewCardsNarrative starts a round with the joker at initialJoker and no
// swaps recorded.
func NewCardsNarrative(initialJoker int) (*CardsNarrative, error) {
	if initialJoker < 0 || initialJoker >= cardsCount {
		return nil, fmt.Errorf("cards: joker position %d out of range", initialJoker)
	}
	n := &CardsNarrative{InitialJoker: initialJoker, Selected: -1}
	for i := range n.Mapping {
		n.Mapping[i] = i
	}
	return n, nil
}

// GenerateCards draws the opening joker and a shuffle of 5 to 10 swaps of
// two distinct cards.
func GenerateCards(src engine.RandomSource) *CardsNarrative {
	n, _ := NewCardsNarrative(engine.Intn(src, cardsCount))
	swaps := engine.IntRange(src, cardsMinSwaps, cardsMaxSwaps)
	for i := 0; i < swaps; i++ {
		a := engine.Intn(src, cardsCount)
		b := (a + 1 + engine.Intn(src, cardsCount-1)) % cardsCount
		_ = n.Record(a, b)
	}
	return n
}

// Record applies one swap.
func (n *CardsNarrative) Record(a, b int) error {
	if a < 0 || a >= cardsCount || b < 0 || b >= cardsCount {
		return fmt.Errorf("cards: swap (%d,%d) out of range", a, b)
	}
	if a == b {
		return fmt.Errorf("cards: swap needs two distinct cards, got %d twice", a)
	}
	n.Mapping[a], n.Mapping[b] = n.Mapping[b], n.Mapping[a]
	n.Swaps = append(n.Swaps, Swap{A: a, B: b})
	return nil
}

// JokerPosition is where the joker sits after every recorded swap.
func (n *CardsNarrative) JokerPosition() int {
	return n.Mapping[n.InitialJoker]
}

// Layout returns the face at each table position. The queen opens to the
// right of the joker and the king to the right of the queen, wrapping.
func (n *CardsNarrative) Layout() [cardsCount]CardFace {
	var out [cardsCount]CardFace
	for c := 0; c < cardsCount; c++ {
		face := FaceKing
		switch c {
		case n.InitialJoker:
			face = FaceJoker
		case (n.InitialJoker + 1) % cardsCount:
			face = FaceQueen
		}
		out[n.Mapping[c]] = face
	}
	return out
}

// Select records the player's pick. A round accepts one pick.
func (n *CardsNarrative) Select(position int) error {
	if position < 0 || position >= cardsCount {
		return fmt.Errorf("cards: position %d out of range", position)
	}
	if n.Selected >= 0 {
		return fmt.Errorf("cards: position %d already picked", n.Selected)
	}
	n.Selected = position
	return nil
}

// Picked reports whether a selection was made.
func (n *CardsNarrative) Picked() bool { return n.Selected >= 0 }

// Won is true when the pick landed on the joker.
func (n *CardsNarrative) Won() bool {
	return n.Picked() && n.Selected == n.JokerPosition()
}

func (n *CardsNarrative) Kind() Kind { return KindCards }

func (n *CardsNarrative) Payload() map[string]any {
	swaps := make([][2]int, len(n.Swaps))
	for i, s := range n.Swaps {
		swaps[i] = [2]int{s.A, s.B}
	}
	return map[string]any{
		"jokerPosition":    n.JokerPosition(),
		"selectedPosition": n.Selected,
		"won":              n.Won(),
		"initialJoker":     n.InitialJoker,
		"swaps":            swaps,
	}
}

// Timeline shows the cards, flips them, plays each swap and pauses before
// accepting a pick.
func (n *CardsNarrative) Timeline(t Timings) []Frame {
	frames := make([]Frame, 0, len(n.Swaps)+3)
	frames = append(frames, Frame{Delay: t.CardsShow, Label: "show"})
	frames = append(frames, Frame{Delay: t.CardsHide, Label: "hide"})
	for i := range n.Swaps {
		frames = append(frames, Frame{Delay: t.CardsSwap, Label: fmt.Sprintf("swap-%d", i+1)})
	}
	frames = append(frames, Frame{Delay: t.CardsSettle, Label: "settle"})
	for i := range frames {
		frames[i].Step = i
	}
	return frames
}

func (n *CardsNarrative) Clone() Narrative {
	c := *n
	c.Swaps = append([]Swap(nil), n.Swaps...)
	return &c
}

func (*CardsNarrative) sealed() {}
