package session

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/games"
)

var (
	jackpotAt = decimal.NewFromInt(10)
	bigWinAt  = decimal.NewFromInt(3)
)

// RoundResult is the settled outcome handed to the sink. It is never
// modified after it is produced.
type RoundResult struct {
	RoundID    uuid.UUID       `json:"roundId"`
	Kind       games.Kind      `json:"kind"`
	Won        bool            `json:"won"`
	Wager      decimal.Decimal `json:"wager"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Delta      decimal.Decimal `json:"delta"`
	NewBalance decimal.Decimal `json:"newBalance"`
	BigWin     bool            `json:"bigWin"`
	Jackpot    bool            `json:"jackpot"`
	Message    string          `json:"message"`
}

// Profit is true when the round paid back more than the wager. A won round
// on a sub-1x multiplier still loses points.
func (r RoundResult) Profit() bool {
	return r.Delta.IsPositive()
}

// Severity is how the result should be shown.
func (r RoundResult) Severity() Severity {
	if r.Profit() {
		return SeveritySuccess
	}
	return SeverityInfo
}

func newRoundResult(id uuid.UUID, kind games.Kind, wager decimal.Decimal, won bool, mult, delta, balance decimal.Decimal) RoundResult {
	r := RoundResult{
		RoundID:    id,
		Kind:       kind,
		Won:        won,
		Wager:      wager,
		Multiplier: mult,
		Delta:      delta,
		NewBalance: balance,
		BigWin:     won && mult.GreaterThanOrEqual(bigWinAt),
		Jackpot:    won && kind == games.KindSlots && mult.GreaterThanOrEqual(jackpotAt),
	}
	r.Message = resultMessage(r)
	return r
}

func resultMessage(r RoundResult) string {
	amount := FormatPoints(r.Delta)
	switch {
	case r.Jackpot:
		return "🎉 JACKPOT! " + amount
	case r.BigWin:
		return "🔥 Big win! " + amount
	case r.Profit():
		return "🎉 Winner! " + amount
	}
	return "😢 No luck " + amount
}

// FormatPoints renders a signed points amount, e.g. "+1,250.50 pts".
func FormatPoints(d decimal.Decimal) string {
	sign := "+"
	if d.IsNegative() {
		sign = "-"
	}
	return sign + humanize.FormatFloat("#,###.##", d.Abs().Round(2).InexactFloat64()) + " pts"
}
