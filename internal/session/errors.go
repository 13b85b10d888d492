package session

import (
	"errors"
	"fmt"

	"github.com/MJE43/arcade-session-go/internal/games"
)

var (
	// ErrNoIdentity is returned by Start before the player has an identity.
	ErrNoIdentity = errors.New("session: no player identity")
	// ErrWrongPhase rejects an action the current phase does not accept.
	ErrWrongPhase = errors.New("session: action not allowed in current phase")
	// ErrClosed is returned once the session was closed.
	ErrClosed = errors.New("session: closed")
)

// ValidationError is a bad wager or move. The session is unchanged.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: invalid input: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnavailableError means the game is closed for maintenance.
type UnavailableError struct {
	Kind    games.Kind
	Message string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("session: %s unavailable: %s", e.Kind, e.Message)
}

// SettlementError wraps a failed settlement call. No balance was changed.
type SettlementError struct {
	Kind games.Kind
	Err  error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("session: %s settlement failed: %v", e.Kind, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }
