package session

import "fmt"

// Phase is a session's position in the round lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWagering
	PhaseAnimating
	// PhaseAwaitingChoice holds interactive rounds until the player picks,
	// reveals or cashes out.
	PhaseAwaitingChoice
	PhaseAwaitingSettlement
	PhaseResolved
	PhaseError
)

var phaseNames = [...]string{
	PhaseIdle:               "idle",
	PhaseWagering:           "wagering",
	PhaseAnimating:          "animating",
	PhaseAwaitingChoice:     "awaitingChoice",
	PhaseAwaitingSettlement: "awaitingSettlement",
	PhaseResolved:           "resolved",
	PhaseError:              "error",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown phase %q", b)
}

// Active reports whether a round is under way.
func (p Phase) Active() bool {
	switch p {
	case PhaseWagering, PhaseAnimating, PhaseAwaitingChoice, PhaseAwaitingSettlement:
		return true
	}
	return false
}
