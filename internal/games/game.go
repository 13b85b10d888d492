package games

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

// Kind identifies a game on the settlement wire.
type Kind string

const (
	KindCards  Kind = "cards"
	KindMining Kind = "mining"
	KindSlots  Kind = "slots"
	KindWheel  Kind = "wheel"
	KindPlinko Kind = "plinko"
)

// GameSpec describes how a game's round is driven.
type GameSpec struct {
	ID   Kind   `json:"id"`
	Name string `json:"name"`
	// Interactive games stop after the animation and wait for a pick,
	// reveal or cash-out before settling.
	Interactive bool `json:"interactive"`
	// SettlesDuringAnimation games fire the settlement call when the
	// animation starts instead of after it.
	SettlesDuringAnimation bool `json:"settlesDuringAnimation"`
	// Authoritative is true when the local narrative is what the server pays on.
	Authoritative bool `json:"authoritative"`
}

var registry = []GameSpec{
	{ID: KindCards, Name: "Find the Joker", Interactive: true, Authoritative: true},
	{ID: KindMining, Name: "Mines", Interactive: true, Authoritative: true},
	{ID: KindSlots, Name: "Slots", SettlesDuringAnimation: true},
	{ID: KindWheel, Name: "Wheel of Fortune"},
	{ID: KindPlinko, Name: "Plinko"},
}

// ListGames returns every supported game in lobby order.
func ListGames() []GameSpec {
	out := make([]GameSpec, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the spec for kind.
func Lookup(kind Kind) (GameSpec, bool) {
	for _, g := range registry {
		if g.ID == kind {
			return g, true
		}
	}
	return GameSpec{}, false
}

// ParseKind validates a wire name.
func ParseKind(s string) (Kind, error) {
	if g, ok := Lookup(Kind(s)); ok {
		return g.ID, nil
	}
	return "", fmt.Errorf("games: unknown game %q", s)
}

// Narrative is the locally generated story of one round. Exactly one
// concrete type exists per Kind; see Reconcile for the exhaustive match.
type Narrative interface {
	Kind() Kind
	// Payload is the game_data sent with the settlement request. A nil
	// payload means the field is omitted.
	Payload() map[string]any
	// Timeline lists the animation frames played before the round can
	// settle or accept input.
	Timeline(t Timings) []Frame
	Clone() Narrative
	sealed()
}

// Ticker is implemented by narratives that change on every animation frame.
type Ticker interface {
	Tick(step int, src engine.RandomSource)
}

// Frame is one timed animation step.
type Frame struct {
	Step  int           `json:"step"`
	Delay time.Duration `json:"delay"`
	Label string        `json:"label"`
}

// Outcome is the authoritative verdict the narrative must agree with.
type Outcome struct {
	Won        bool
	Multiplier decimal.Decimal
}

// Timings holds the animation durations for every game.
type Timings struct {
	CardsShow   time.Duration `yaml:"cards_show"`
	CardsHide   time.Duration `yaml:"cards_hide"`
	CardsSwap   time.Duration `yaml:"cards_swap"`
	CardsSettle time.Duration `yaml:"cards_settle"`
	SlotsTick   time.Duration `yaml:"slots_tick"`
	SlotsTicks  int           `yaml:"slots_ticks"`
	WheelSpin   time.Duration `yaml:"wheel_spin"`
	PlinkoStep  time.Duration `yaml:"plinko_step"`
}

// DefaultTimings are the durations the game screens were tuned with.
func DefaultTimings() Timings {
	return Timings{
		CardsShow:   2000 * time.Millisecond,
		CardsHide:   500 * time.Millisecond,
		CardsSwap:   400 * time.Millisecond,
		CardsSettle: 300 * time.Millisecond,
		SlotsTick:   100 * time.Millisecond,
		SlotsTicks:  20,
		WheelSpin:   5000 * time.Millisecond,
		PlinkoStep:  150 * time.Millisecond,
	}
}

// TotalDuration sums a timeline.
func TotalDuration(frames []Frame) time.Duration {
	var d time.Duration
	for _, f := range frames {
		d += f.Delay
	}
	return d
}

// Options tune a new round.
type Options struct {
	// MineCount applies to mining; zero means the default of 3.
	MineCount int
	// Rotation is where the wheel stopped last round.
	Rotation float64
}

// Generate draws a fresh narrative for kind.
func Generate(kind Kind, src engine.RandomSource, opts Options) (Narrative, error) {
	switch kind {
	case KindCards:
		return GenerateCards(src), nil
	case KindMining:
		count := opts.MineCount
		if count == 0 {
			count = MinesDefaultCount
		}
		return GenerateMines(src, count)
	case KindSlots:
		return GenerateSlots(src), nil
	case KindWheel:
		return GenerateWheel(src, opts.Rotation), nil
	case KindPlinko:
		return GeneratePlinko(src), nil
	}
	return nil, fmt.Errorf("games: unknown game %q", kind)
}
