package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/identity"
	"github.com/MJE43/arcade-session-go/internal/settle"
	"github.com/MJE43/arcade-session-go/internal/wager"
)

// Ledger reads the player's account from the settlement service.
type Ledger interface {
	Balance(ctx context.Context, identity string) (decimal.Decimal, error)
	History(ctx context.Context, identity string) ([]settle.HistoryEntry, error)
}

// Deps are shared by every session an Arcade opens.
type Deps struct {
	Validator     *wager.Validator
	Settler       Settler
	Ledger        Ledger
	Availability  Availability
	Identity      identity.Provider
	Sink          Sink
	Scheduler     Scheduler
	Random        engine.RandomSource
	Timings       games.Timings
	SettleTimeout time.Duration
	Logger        *zap.Logger
}

// GameInfo is a lobby entry.
type GameInfo struct {
	games.GameSpec
	settle.GameStatus
	Phase Phase `json:"phase"`
	Open  bool  `json:"open"`
}

// Arcade holds at most one session per game kind and the shared wallet.
type Arcade struct {
	deps   Deps
	wallet *Wallet
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[games.Kind]*Session
	// draining holds closed sessions until their last settlement returns.
	draining []*Session
}

// NewArcade creates an arcade with no open sessions.
func NewArcade(deps Deps) *Arcade {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	return &Arcade{
		deps:     deps,
		wallet:   &Wallet{},
		logger:   deps.Logger.Named("arcade"),
		sessions: make(map[games.Kind]*Session),
	}
}

// Wallet is the arcade-wide balance.
func (a *Arcade) Wallet() *Wallet { return a.wallet }

// Open returns the session for kind, creating it on first use.
func (a *Arcade) Open(kind games.Kind) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked()
	if s, ok := a.sessions[kind]; ok {
		return s, nil
	}
	s, err := New(Config{
		Kind:          kind,
		Validator:     a.deps.Validator,
		Settler:       a.deps.Settler,
		Availability:  a.deps.Availability,
		Identity:      a.deps.Identity,
		Sink:          a.deps.Sink,
		Scheduler:     a.deps.Scheduler,
		Random:        a.deps.Random,
		Timings:       a.deps.Timings,
		SettleTimeout: a.deps.SettleTimeout,
		Wallet:        a.wallet,
		Logger:        a.deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.sessions[kind] = s
	a.logger.Debug("session opened", zap.String("game", string(kind)))
	return s, nil
}

// Get returns the open session for kind.
func (a *Arcade) Get(kind games.Kind) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[kind]
	return s, ok
}

// Close destroys the session for kind. Pending settlements still land.
func (a *Arcade) Close(kind games.Kind) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked()
	s, ok := a.sessions[kind]
	if !ok {
		return false
	}
	delete(a.sessions, kind)
	s.Close()
	if s.Settling() {
		a.draining = append(a.draining, s)
	}
	a.logger.Debug("session closed", zap.String("game", string(kind)), zap.Bool("settling", s.Settling()))
	return true
}

func (a *Arcade) pruneLocked() {
	kept := a.draining[:0]
	for _, s := range a.draining {
		if s.Settling() {
			kept = append(kept, s)
		}
	}
	clear(a.draining[len(kept):])
	a.draining = kept
}

// Games lists every game with its availability and session state.
func (a *Arcade) Games(ctx context.Context) []GameInfo {
	specs := games.ListGames()
	out := make([]GameInfo, 0, len(specs))
	for _, spec := range specs {
		info := GameInfo{GameSpec: spec, GameStatus: settle.GameStatus{Enabled: true}}
		if a.deps.Availability != nil {
			info.GameStatus = a.deps.Availability.Check(ctx, spec.ID)
		}
		if s, ok := a.Get(spec.ID); ok {
			info.Open = true
			info.Phase = s.Snapshot().Phase
		}
		out = append(out, info)
	}
	return out
}

// RefreshBalance loads the balance from the ledger into the wallet and sink.
func (a *Arcade) RefreshBalance(ctx context.Context) (decimal.Decimal, error) {
	if a.deps.Ledger == nil {
		return decimal.Zero, errors.New("session: no ledger configured")
	}
	id, err := a.identity(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := a.deps.Ledger.Balance(ctx, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("session: load balance: %w", err)
	}
	a.wallet.Set(bal)
	a.deps.Sink.UpdateBalance(bal)
	return bal, nil
}

// History returns the player's recent rounds.
func (a *Arcade) History(ctx context.Context) ([]settle.HistoryEntry, error) {
	if a.deps.Ledger == nil {
		return nil, errors.New("session: no ledger configured")
	}
	id, err := a.identity(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := a.deps.Ledger.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: load history: %w", err)
	}
	return entries, nil
}

func (a *Arcade) identity(ctx context.Context) (string, error) {
	if a.deps.Identity == nil {
		return "", ErrNoIdentity
	}
	id, err := a.deps.Identity.Identity(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	return id, nil
}

// Shutdown closes every session and waits for in-flight settlements.
func (a *Arcade) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	all := append([]*Session(nil), a.draining...)
	for kind, s := range a.sessions {
		all = append(all, s)
		delete(a.sessions, kind)
	}
	a.draining = nil
	a.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		if err := s.Await(ctx); err != nil {
			return err
		}
	}
	return nil
}
