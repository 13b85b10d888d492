package games

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

const (
	MinesGridSize     = 5
	MinesCells        = MinesGridSize * MinesGridSize
	MinesDefaultCount = 3
	MinesMinCount     = 1
	MinesMaxCount     = 24
)

var (
	minesStep     = decimal.RequireFromString("0.2")
	minesBaseline = decimal.NewFromInt(MinesDefaultCount)
)

// RevealResult is what uncovering a cell produced.
type RevealResult int

const (
	// RevealNone is returned alongside an error; no cell was uncovered.
	RevealNone RevealResult = iota
	RevealSafe
	RevealMine
	// RevealRepeat means the cell was already uncovered and nothing changed.
	RevealRepeat
)

func (r RevealResult) String() string {
	switch r {
	case RevealNone:
		return "none"
	case RevealSafe:
		return "safe"
	case RevealMine:
		return "mine"
	case RevealRepeat:
		return "repeat"
	}
	return "unknown"
}

// MinesNarrative is a Mines round on a 5x5 grid.
type MinesNarrative struct {
	MineCount  int
	Mines      []int
	Revealed   []int
	Exploded   int
	CashedOut  bool
	Multiplier decimal.Decimal
}

// MinesMultiplier is the payout after n safe reveals with mineCount mines:
// 1 + n*0.2*(mineCount/3), rounded to two decimals.
func MinesMultiplier(mineCount, n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n)).
		Mul(minesStep).
		Mul(decimal.NewFromInt(int64(mineCount))).
		Div(minesBaseline).
		Add(decimal.NewFromInt(1)).
		Round(2)
}

// GenerateMines places mineCount mines with a Fisher-Yates draw from the
// 25 cell pool.
func GenerateMines(src engine.RandomSource, mineCount int) (*MinesNarrative, error) {
	if mineCount < MinesMinCount || mineCount > MinesMaxCount {
		return nil, fmt.Errorf("mines: count must be between %d and %d, got %d", MinesMinCount, MinesMaxCount, mineCount)
	}

	pool := make([]int, MinesCells)
	for i := range pool {
		pool[i] = i
	}
	mines := make([]int, 0, mineCount)
	for len(mines) < mineCount {
		index := engine.Intn(src, len(pool))
		mines = append(mines, pool[index])
		pool = append(pool[:index], pool[index+1:]...)
	}
	return NewMinesNarrative(mineCount, mines)
}

// NewMinesNarrative builds a round from an explicit mine layout.
func NewMinesNarrative(mineCount int, mines []int) (*MinesNarrative, error) {
	if len(mines) != mineCount {
		return nil, fmt.Errorf("mines: layout has %d mines, want %d", len(mines), mineCount)
	}
	sorted := slices.Clone(mines)
	slices.Sort(sorted)
	for i, cell := range sorted {
		if cell < 0 || cell >= MinesCells {
			return nil, fmt.Errorf("mines: cell %d out of range", cell)
		}
		if i > 0 && sorted[i-1] == cell {
			return nil, fmt.Errorf("mines: cell %d mined twice", cell)
		}
	}
	return &MinesNarrative{
		MineCount:  mineCount,
		Mines:      sorted,
		Exploded:   -1,
		Multiplier: decimal.NewFromInt(1),
	}, nil
}

// IsMine reports whether cell holds a mine.
func (n *MinesNarrative) IsMine(cell int) bool {
	_, found := slices.BinarySearch(n.Mines, cell)
	return found
}

// Busted is true once a mine was uncovered.
func (n *MinesNarrative) Busted() bool { return n.Exploded >= 0 }

// Finished is true after a bust or a cash-out.
func (n *MinesNarrative) Finished() bool { return n.Busted() || n.CashedOut }

// SafeRemaining counts safe cells still covered.
func (n *MinesNarrative) SafeRemaining() int {
	return MinesCells - n.MineCount - len(n.Revealed)
}

// Reveal uncovers cell. Safe reveals raise the multiplier; a mine ends the round.
func (n *MinesNarrative) Reveal(cell int) (RevealResult, error) {
	if cell < 0 || cell >= MinesCells {
		return RevealNone, fmt.Errorf("mines: cell %d out of range", cell)
	}
	if n.Finished() {
		return RevealNone, fmt.Errorf("mines: round already finished")
	}
	if slices.Contains(n.Revealed, cell) {
		return RevealRepeat, nil
	}
	if n.IsMine(cell) {
		n.Exploded = cell
		return RevealMine, nil
	}
	n.Revealed = append(n.Revealed, cell)
	n.Multiplier = MinesMultiplier(n.MineCount, len(n.Revealed))
	return RevealSafe, nil
}

// CashOut locks in the current multiplier. At least one safe reveal is needed.
func (n *MinesNarrative) CashOut() error {
	if n.Finished() {
		return fmt.Errorf("mines: round already finished")
	}
	if len(n.Revealed) == 0 {
		return fmt.Errorf("mines: reveal at least one cell before cashing out")
	}
	n.CashedOut = true
	return nil
}

func (n *MinesNarrative) Kind() Kind { return KindMining }

func (n *MinesNarrative) Payload() map[string]any {
	return map[string]any{
		"mines":    n.MineCount,
		"revealed": len(n.Revealed),
		"hit_mine": n.Busted(),
	}
}

// Timeline is empty: the grid accepts reveals as soon as the round starts.
func (n *MinesNarrative) Timeline(Timings) []Frame { return nil }

func (n *MinesNarrative) Clone() Narrative {
	c := *n
	c.Mines = slices.Clone(n.Mines)
	c.Revealed = slices.Clone(n.Revealed)
	return &c
}

func (*MinesNarrative) sealed() {}

type minesView struct {
	MineCount     int             `json:"mineCount"`
	Mines         []int           `json:"mines,omitempty"`
	Revealed      []int           `json:"revealed"`
	Exploded      int             `json:"exploded"`
	CashedOut     bool            `json:"cashedOut"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	SafeRemaining int             `json:"safeRemaining"`
}

// MarshalJSON hides the mine layout until the round is finished.
func (n *MinesNarrative) MarshalJSON() ([]byte, error) {
	v := minesView{
		MineCount:     n.MineCount,
		Revealed:      n.Revealed,
		Exploded:      n.Exploded,
		CashedOut:     n.CashedOut,
		Multiplier:    n.Multiplier,
		SafeRemaining: n.SafeRemaining(),
	}
	if v.Revealed == nil {
		v.Revealed = []int{}
	}
	if n.Finished() {
		v.Mines = n.Mines
	}
	return json.Marshal(v)
}
