package bindings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/app"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/session"
	"github.com/MJE43/arcade-session-go/internal/settle"
)

const shutdownTimeout = 10 * time.Second

// GameModule exposes the arcade to the frontend. Bound to Wails.
type GameModule struct {
	ctx  context.Context
	app  *app.App
	sink *WailsSink
}

// StartResult is returned by PlaceWager.
type StartResult struct {
	Started  bool             `json:"started"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// RevealResult is returned by Reveal.
type RevealResult struct {
	Result   string           `json:"result"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// PlayerStatus tells the frontend whether an identity is configured.
type PlayerStatus struct {
	HasIdentity bool   `json:"hasIdentity"`
	Editable    bool   `json:"editable"`
	Balance     string `json:"balance,omitempty"`
}

// NewGameModule binds a built arcade. sink must be one of the arcade's sinks.
func NewGameModule(a *app.App, sink *WailsSink) *GameModule {
	return &GameModule{app: a, sink: sink}
}

// Startup is called by Wails on application startup.
func (m *GameModule) Startup(ctx context.Context) {
	m.ctx = ctx
	if m.sink != nil {
		m.sink.Startup(ctx)
	}
	if err := m.app.Bootstrap(ctx); err != nil {
		m.app.Logger.Warn("balance bootstrap failed", zap.Error(err))
	}
}

// Shutdown waits for pending settlements so balances are not lost.
func (m *GameModule) Shutdown(ctx context.Context) {
	if m.sink != nil {
		m.sink.Detach()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := m.app.Shutdown(ctx); err != nil {
		m.app.Logger.Warn("settlements still pending at exit", zap.Error(err))
	}
}

func (m *GameModule) context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

func (m *GameModule) session(kind string) (*session.Session, error) {
	k, err := games.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	s, ok := m.app.Arcade.Get(k)
	if !ok {
		return nil, fmt.Errorf("no open session for %s", k)
	}
	return s, nil
}

// GetGames lists the lobby.
func (m *GameModule) GetGames() []session.GameInfo {
	return m.app.Arcade.Games(m.context())
}

// OpenGame opens (or returns) the session for kind.
func (m *GameModule) OpenGame(kind string) (session.Snapshot, error) {
	k, err := games.ParseKind(kind)
	if err != nil {
		return session.Snapshot{}, err
	}
	s, err := m.app.Arcade.Open(k)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// CloseGame leaves the game screen. A round already sent still settles.
func (m *GameModule) CloseGame(kind string) error {
	k, err := games.ParseKind(kind)
	if err != nil {
		return err
	}
	m.app.Arcade.Close(k)
	return nil
}

// GetSnapshot returns the current state of kind's session.
func (m *GameModule) GetSnapshot(kind string) (session.Snapshot, error) {
	s, err := m.session(kind)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// PlaceWager starts a round. mineCount is only read by mining; 0 picks
// the default.
func (m *GameModule) PlaceWager(kind, wager string, mineCount int) (StartResult, error) {
	k, err := games.ParseKind(kind)
	if err != nil {
		return StartResult{}, err
	}
	s, err := m.app.Arcade.Open(k)
	if err != nil {
		return StartResult{}, err
	}
	started, err := s.Start(m.context(), session.StartRequest{Wager: wager, MineCount: mineCount})
	if err != nil {
		return StartResult{}, frontendError(err)
	}
	return StartResult{Started: started, Snapshot: s.Snapshot()}, nil
}

// Pick selects a card.
func (m *GameModule) Pick(position int) (session.Snapshot, error) {
	s, err := m.session(string(games.KindCards))
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := s.Pick(position); err != nil {
		return session.Snapshot{}, frontendError(err)
	}
	return s.Snapshot(), nil
}

// Reveal uncovers a mining cell.
func (m *GameModule) Reveal(cell int) (RevealResult, error) {
	s, err := m.session(string(games.KindMining))
	if err != nil {
		return RevealResult{}, err
	}
	res, err := s.Reveal(cell)
	if err != nil {
		return RevealResult{}, frontendError(err)
	}
	return RevealResult{Result: res.String(), Snapshot: s.Snapshot()}, nil
}

// CashOut ends the mining round on the current multiplier.
func (m *GameModule) CashOut() (session.Snapshot, error) {
	s, err := m.session(string(games.KindMining))
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := s.CashOut(); err != nil {
		return session.Snapshot{}, frontendError(err)
	}
	return s.Snapshot(), nil
}

// Acknowledge dismisses the result of kind's last round.
func (m *GameModule) Acknowledge(kind string) (session.Snapshot, error) {
	s, err := m.session(kind)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := s.Acknowledge(); err != nil {
		return session.Snapshot{}, frontendError(err)
	}
	return s.Snapshot(), nil
}

// RefreshBalance reloads the balance from the service.
func (m *GameModule) RefreshBalance() (string, error) {
	bal, err := m.app.Arcade.RefreshBalance(m.context())
	if err != nil {
		return "", frontendError(err)
	}
	return bal.StringFixed(2), nil
}

// GetHistory returns the player's recent rounds.
func (m *GameModule) GetHistory() ([]settle.HistoryEntry, error) {
	entries, err := m.app.Arcade.History(m.context())
	if err != nil {
		return nil, frontendError(err)
	}
	return entries, nil
}

// GetPlayerStatus reports the identity and cached balance.
func (m *GameModule) GetPlayerStatus() PlayerStatus {
	st := PlayerStatus{Editable: m.app.Keyring != nil}
	if m.app.Keyring == nil {
		st.HasIdentity = true
	} else if _, err := m.app.Keyring.Identity(m.context()); err == nil {
		st.HasIdentity = true
	}
	if bal, ok := m.app.Arcade.Wallet().Balance(); ok {
		st.Balance = bal.StringFixed(2)
	}
	return st
}

// SetPlayerID stores the player identity and loads its balance.
func (m *GameModule) SetPlayerID(id string) (PlayerStatus, error) {
	if m.app.Keyring == nil {
		return m.GetPlayerStatus(), errors.New("player identity is fixed by configuration")
	}
	if err := m.app.Keyring.SetIdentity(id); err != nil {
		return m.GetPlayerStatus(), err
	}
	if _, err := m.app.Arcade.RefreshBalance(m.context()); err != nil {
		return m.GetPlayerStatus(), frontendError(err)
	}
	return m.GetPlayerStatus(), nil
}

// ClearPlayerID forgets the stored identity.
func (m *GameModule) ClearPlayerID() error {
	if m.app.Keyring == nil {
		return errors.New("player identity is fixed by configuration")
	}
	return m.app.Keyring.Clear()
}

// frontendError keeps the wrapped error but leads with the player-facing text.
func frontendError(err error) error {
	var (
		validation  *session.ValidationError
		unavailable *session.UnavailableError
	)
	switch {
	case errors.As(err, &unavailable):
		return fmt.Errorf("%s: %w", unavailable.Message, err)
	case errors.As(err, &validation), errors.Is(err, session.ErrWrongPhase), errors.Is(err, session.ErrClosed):
		return err
	case errors.Is(err, session.ErrNoIdentity):
		return fmt.Errorf("set your player ID first: %w", err)
	}
	return fmt.Errorf("%s: %w", settle.Message(err), err)
}
