package games

import (
	"fmt"

	"github.com/MJE43/arcade-session-go/internal/engine"
)

// InvariantViolation reports a narrative that cannot be made to agree with
// the authoritative outcome. The outcome still stands.
type InvariantViolation struct {
	Kind          Kind
	Field         string
	Local         any
	Authoritative any
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("games: %s narrative disagrees on %s: local=%v authoritative=%v",
		e.Kind, e.Field, e.Local, e.Authoritative)
}

// Reconcile brings n's terminal state in line with out. The narrative is
// always left terminal; a non-nil error is an *InvariantViolation describing
// the disagreement.
func Reconcile(n Narrative, out Outcome, src engine.RandomSource) error {
	switch v := n.(type) {
	case *CardsNarrative:
		v.Revealed = true
		return agree(KindCards, v.Won(), out)
	case *MinesNarrative:
		return agree(KindMining, v.CashedOut && !v.Busted(), out)
	case *SlotsNarrative:
		v.ApplyOutcome(out, src)
		return nil
	case *WheelNarrative:
		return agree(KindWheel, v.Won(), out)
	case *PlinkoNarrative:
		return agree(KindPlinko, v.Won(), out)
	default:
		return fmt.Errorf("games: no reconciliation for %T", n)
	}
}

func agree(kind Kind, localWon bool, out Outcome) error {
	if localWon == out.Won {
		return nil
	}
	return &InvariantViolation{Kind: kind, Field: "won", Local: localWon, Authoritative: out.Won}
}
