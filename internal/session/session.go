// Package session runs game rounds: one state machine per game kind, from
// wager through animation and settlement to a reconciled result.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/identity"
	"github.com/MJE43/arcade-session-go/internal/settle"
	"github.com/MJE43/arcade-session-go/internal/wager"
)

// DefaultSettleTimeout bounds a settlement call.
const DefaultSettleTimeout = 15 * time.Second

// Settler submits a round for settlement.
type Settler interface {
	Settle(ctx context.Context, req settle.Request) (settle.Settlement, error)
}

// Availability reports whether a game may start.
type Availability interface {
	Check(ctx context.Context, kind games.Kind) settle.GameStatus
}

// Config wires a Session to its collaborators.
type Config struct {
	Kind      games.Kind
	Validator *wager.Validator
	Settler   Settler
	// Availability may be nil, meaning always open.
	Availability  Availability
	Identity      identity.Provider
	Sink          Sink
	Scheduler     Scheduler
	Random        engine.RandomSource
	Timings       games.Timings
	SettleTimeout time.Duration
	Wallet        *Wallet
	Logger        *zap.Logger
}

// StartRequest is a player's request to begin a round.
type StartRequest struct {
	Wager string `json:"wager"`
	// MineCount applies to mining only; zero selects the default.
	MineCount int `json:"mineCount,omitempty"`
}

// Snapshot is a copy of a session's state, safe to hand to other goroutines.
type Snapshot struct {
	Kind      games.Kind      `json:"kind"`
	Phase     Phase           `json:"phase"`
	InFlight  bool            `json:"inFlight"`
	RoundID   string          `json:"roundId,omitempty"`
	Wager     decimal.Decimal `json:"wager"`
	Narrative games.Narrative `json:"narrative,omitempty"`
	Step      int             `json:"step"`
	Steps     int             `json:"steps"`
	Result    *RoundResult    `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	// Nonce is set when the round was drawn from a fair series and can be
	// replayed from the series seeds.
	Nonce *uint64 `json:"nonce,omitempty"`
}

// Session is the round state machine for one game kind.
type Session struct {
	cfg    Config
	spec   games.GameSpec
	logger *zap.Logger
	sink   Sink
	frames FrameObserver
	phases PhaseObserver

	mu       sync.Mutex
	phase    Phase
	inFlight bool
	round    *round
	lastErr  string
	rotation float64
	timer    Timer
	gen      uint64
	closed   bool

	wg      sync.WaitGroup
	pending atomic.Int32
}

type round struct {
	id         uuid.UUID
	gen        uint64
	ctx        context.Context
	identity   string
	wager      decimal.Decimal
	src        engine.RandomSource
	nonce      *uint64
	narrative  games.Narrative
	frames     []games.Frame
	step       int
	settling   bool
	buffered   *settle.Settlement
	settlement *settle.Settlement
	result     *RoundResult
}

// New creates an idle session.
func New(cfg Config) (*Session, error) {
	spec, ok := games.Lookup(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("session: unknown game %q", cfg.Kind)
	}
	if cfg.Settler == nil {
		return nil, errors.New("session: settler is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("session: identity provider is required")
	}
	if cfg.Validator == nil {
		cfg.Validator = wager.NewValidator(wager.DefaultRules())
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TimerScheduler{}
	}
	if cfg.Random == nil {
		cfg.Random = engine.Crypto()
	}
	if cfg.Timings == (games.Timings{}) {
		cfg.Timings = games.DefaultTimings()
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultSettleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}

	s := &Session{
		cfg:    cfg,
		spec:   spec,
		logger: cfg.Logger.Named("session").With(zap.String("game", string(spec.ID))),
		sink:   cfg.Sink,
	}
	s.frames, _ = cfg.Sink.(FrameObserver)
	s.phases, _ = cfg.Sink.(PhaseObserver)
	return s, nil
}

// Kind is the game this session plays.
func (s *Session) Kind() games.Kind { return s.spec.ID }

// Spec describes the game this session plays.
func (s *Session) Spec() games.GameSpec { return s.spec }

// Start begins a round. It returns false with a nil error when a round is
// already in flight; the call is then ignored. Rejected starts leave the
// session unchanged and notify the sink once.
func (s *Session) Start(ctx context.Context, req StartRequest) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	amount, opts, err := s.validate(req)
	if err != nil {
		return s.reject(err)
	}
	id, err := s.cfg.Identity.Identity(ctx)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			s.logger.Warn("identity lookup failed", zap.Error(err))
		}
		return s.reject(ErrNoIdentity)
	}
	if s.cfg.Availability != nil {
		if st := s.cfg.Availability.Check(ctx, s.spec.ID); !st.Enabled {
			msg := st.MaintenanceMessage
			if msg == "" {
				msg = s.spec.Name + " is under maintenance"
			}
			return s.reject(&UnavailableError{Kind: s.spec.ID, Message: msg})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if s.inFlight {
		return false, nil
	}
	if err := s.beginLocked(ctx, id, amount, opts); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) validate(req StartRequest) (decimal.Decimal, games.Options, error) {
	var opts games.Options
	amount, err := s.cfg.Validator.Parse(req.Wager)
	if err != nil {
		return decimal.Zero, opts, &ValidationError{Err: err}
	}
	if err := s.cfg.Validator.ValidateWithin(amount, s.cfg.Wallet.bound()); err != nil {
		return decimal.Zero, opts, &ValidationError{Err: err}
	}
	if s.spec.ID == games.KindMining && req.MineCount != 0 {
		if req.MineCount < games.MinesMinCount || req.MineCount > games.MinesMaxCount {
			return decimal.Zero, opts, &ValidationError{
				Err: fmt.Errorf("mine count must be between %d and %d", games.MinesMinCount, games.MinesMaxCount),
			}
		}
		opts.MineCount = req.MineCount
	}
	return amount, opts, nil
}

// reject surfaces a failed start. When a concurrent Start won the race and
// a round is now in flight, this call is ignored like any other mid-round start.
func (s *Session) reject(err error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		s.logger.Debug("start rejected during a round", zap.Error(err))
		return false, nil
	}
	s.sink.Notify(userMessage(err), SeverityError)
	s.logger.Info("start rejected", zap.Error(err))
	return false, err
}

func (s *Session) beginLocked(ctx context.Context, id string, amount decimal.Decimal, opts games.Options) error {
	if s.phase == PhaseResolved {
		s.round = nil
		s.setPhaseLocked(PhaseIdle)
	}
	s.gen++
	s.lastErr = ""
	r := &round{
		id:       uuid.New(),
		gen:      s.gen,
		ctx:      context.WithoutCancel(ctx),
		identity: id,
		wager:    amount,
	}
	r.src = s.cfg.Random
	if rounds, ok := s.cfg.Random.(engine.Rounds); ok {
		src, nonce := rounds.NextRound()
		r.src, r.nonce = src, &nonce
	}
	s.round = r
	s.inFlight = true
	s.setPhaseLocked(PhaseWagering)

	opts.Rotation = s.rotation
	n, err := games.Generate(s.spec.ID, r.src, opts)
	if err != nil {
		s.failLocked(err)
		return err
	}
	r.narrative = n
	if w, ok := n.(*games.WheelNarrative); ok {
		s.rotation = w.Rotation
	}
	r.frames = n.Timeline(s.cfg.Timings)
	fields := []zap.Field{
		zap.String("round", r.id.String()),
		zap.String("wager", amount.String()),
		zap.Int("frames", len(r.frames)),
	}
	if r.nonce != nil {
		fields = append(fields, zap.Uint64("nonce", *r.nonce))
	}
	s.logger.Debug("round started", fields...)

	s.setPhaseLocked(PhaseAnimating)
	if s.spec.SettlesDuringAnimation {
		s.settleLocked(r)
	}
	s.scheduleLocked(r)
	return nil
}

func (s *Session) scheduleLocked(r *round) {
	if r.step >= len(r.frames) {
		s.animationDoneLocked(r)
		return
	}
	gen := r.gen
	s.timer = s.cfg.Scheduler.AfterFunc(r.frames[r.step].Delay, func() { s.tick(gen) })
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.round
	if s.closed || r == nil || r.gen != gen || s.phase != PhaseAnimating {
		return
	}
	f := r.frames[r.step]
	if t, ok := r.narrative.(games.Ticker); ok {
		t.Tick(f.Step, r.src)
	}
	r.step++
	if s.frames != nil {
		s.frames.OnFrame(s.snapshotLocked(), f)
	}
	s.scheduleLocked(r)
}

func (s *Session) animationDoneLocked(r *round) {
	s.timer = nil
	switch {
	case s.spec.Interactive:
		s.setPhaseLocked(PhaseAwaitingChoice)
	case s.spec.SettlesDuringAnimation:
		s.setPhaseLocked(PhaseAwaitingSettlement)
		if b := r.buffered; b != nil {
			r.buffered = nil
			s.resolveLocked(r, *b)
		}
	default:
		s.setPhaseLocked(PhaseAwaitingSettlement)
		s.settleLocked(r)
	}
}

// settleLocked fires the round's single settlement call. The call outlives
// Close and the caller's context.
func (s *Session) settleLocked(r *round) {
	if r.settling {
		return
	}
	r.settling = true
	req := settle.Request{
		Identity: r.identity,
		Kind:     s.spec.ID,
		Wager:    r.wager,
		Payload:  r.narrative.Payload(),
	}
	ctx, gen := r.ctx, r.gen
	s.wg.Add(1)
	s.pending.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pending.Add(-1)
		ctx, cancel := context.WithTimeout(ctx, s.cfg.SettleTimeout)
		defer cancel()
		res, err := s.cfg.Settler.Settle(ctx, req)
		s.settled(gen, res, err)
	}()
}

func (s *Session) settled(gen uint64, res settle.Settlement, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.round
	if s.closed || r == nil || r.gen != gen {
		s.orphanLocked(res, err)
		return
	}
	if err != nil {
		s.failLocked(&SettlementError{Kind: s.spec.ID, Err: err})
		return
	}
	if s.phase == PhaseAnimating {
		r.buffered = &res
		return
	}
	s.resolveLocked(r, res)
}

// orphanLocked handles a verdict for a round whose screen is gone. The
// balance still changed remotely, so the wallet follows it.
func (s *Session) orphanLocked(res settle.Settlement, err error) {
	if err != nil {
		s.logger.Warn("abandoned round failed to settle", zap.Error(err))
		return
	}
	if s.cfg.Wallet != nil {
		s.cfg.Wallet.Set(res.NewBalance)
	}
	s.sink.UpdateBalance(res.NewBalance)
	s.logger.Info("abandoned round settled", zap.Bool("won", res.Won), zap.String("balance", res.NewBalance.String()))
}

func (s *Session) resolveLocked(r *round, res settle.Settlement) {
	if r.settlement != nil {
		s.logger.DPanic("round settled twice", zap.String("round", r.id.String()))
		return
	}
	r.settlement = &res

	if err := games.Reconcile(r.narrative, res.Outcome(), r.src); err != nil {
		var iv *games.InvariantViolation
		if errors.As(err, &iv) {
			s.logger.DPanic("narrative disagrees with settlement",
				zap.String("round", r.id.String()),
				zap.String("field", iv.Field),
				zap.Any("local", iv.Local),
				zap.Any("authoritative", iv.Authoritative))
		} else {
			s.logger.Error("reconcile failed", zap.String("round", r.id.String()), zap.Error(err))
		}
	}

	result := newRoundResult(r.id, s.spec.ID, r.wager, res.Won, res.Multiplier, res.Delta, res.NewBalance)
	r.result = &result
	if s.cfg.Wallet != nil {
		s.cfg.Wallet.Set(res.NewBalance)
	}
	s.inFlight = false
	s.setPhaseLocked(PhaseResolved)
	s.sink.UpdateBalance(res.NewBalance)
	s.sink.Notify(result.Message, result.Severity())
	s.logger.Info("round settled",
		zap.String("round", r.id.String()),
		zap.Bool("won", res.Won),
		zap.String("delta", res.Delta.String()),
		zap.String("balance", res.NewBalance.String()))
}

// failLocked surfaces err once and returns the session to idle.
func (s *Session) failLocked(err error) {
	s.stopTimerLocked()
	s.lastErr = userMessage(err)
	s.setPhaseLocked(PhaseError)
	s.sink.Notify(s.lastErr, SeverityError)
	s.logger.Warn("round failed", zap.Error(err))
	s.inFlight = false
	s.round = nil
	s.setPhaseLocked(PhaseIdle)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) setPhaseLocked(p Phase) {
	s.phase = p
	s.publishLocked()
}

func (s *Session) publishLocked() {
	if s.phases != nil {
		s.phases.OnPhase(s.snapshotLocked())
	}
}

func (s *Session) choiceLocked(kind games.Kind) (*round, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.spec.ID != kind || s.phase != PhaseAwaitingChoice || s.round == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongPhase, s.spec.ID, s.phase)
	}
	return s.round, nil
}

// Pick selects a card and settles the round.
func (s *Session) Pick(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.choiceLocked(games.KindCards)
	if err != nil {
		return err
	}
	cards := r.narrative.(*games.CardsNarrative)
	if err := cards.Select(position); err != nil {
		return &ValidationError{Err: err}
	}
	s.setPhaseLocked(PhaseAwaitingSettlement)
	s.settleLocked(r)
	return nil
}

// Reveal uncovers a mining cell. A mine, or the last safe cell, ends the
// round and settles it.
func (s *Session) Reveal(cell int) (games.RevealResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.choiceLocked(games.KindMining)
	if err != nil {
		return games.RevealNone, err
	}
	mines := r.narrative.(*games.MinesNarrative)
	res, err := mines.Reveal(cell)
	if err != nil {
		return res, &ValidationError{Err: err}
	}
	switch {
	case res == games.RevealMine:
		s.setPhaseLocked(PhaseAwaitingSettlement)
		s.settleLocked(r)
	case res == games.RevealSafe && mines.SafeRemaining() == 0:
		_ = mines.CashOut()
		s.setPhaseLocked(PhaseAwaitingSettlement)
		s.settleLocked(r)
	case res == games.RevealSafe:
		s.publishLocked()
	}
	return res, nil
}

// CashOut ends a mining round on the current multiplier.
func (s *Session) CashOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.choiceLocked(games.KindMining)
	if err != nil {
		return err
	}
	if err := r.narrative.(*games.MinesNarrative).CashOut(); err != nil {
		return &ValidationError{Err: err}
	}
	s.setPhaseLocked(PhaseAwaitingSettlement)
	s.settleLocked(r)
	return nil
}

// Acknowledge returns a resolved session to idle.
func (s *Session) Acknowledge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseIdle:
		return nil
	case PhaseResolved:
		s.round = nil
		s.setPhaseLocked(PhaseIdle)
		return nil
	}
	return fmt.Errorf("%w: cannot acknowledge while %s", ErrWrongPhase, s.phase)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Kind:     s.spec.ID,
		Phase:    s.phase,
		InFlight: s.inFlight,
		Error:    s.lastErr,
	}
	if r := s.round; r != nil {
		snap.RoundID = r.id.String()
		snap.Wager = r.wager
		snap.Step = r.step
		snap.Steps = len(r.frames)
		if r.nonce != nil {
			nonce := *r.nonce
			snap.Nonce = &nonce
		}
		if r.narrative != nil {
			snap.Narrative = r.narrative.Clone()
		}
		if r.result != nil {
			res := *r.result
			snap.Result = &res
		}
	}
	return snap
}

// Close abandons the session. A settlement already sent still completes and
// updates the wallet.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	if r := s.round; r != nil && s.phase.Active() && !r.settling {
		s.logger.Info("round abandoned before settlement", zap.String("round", r.id.String()))
	}
}

// Settling reports whether a settlement call is still outstanding.
func (s *Session) Settling() bool {
	return s.pending.Load() > 0
}

// Await blocks until every settlement call this session sent has returned.
func (s *Session) Await(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func userMessage(err error) string {
	var (
		validation  *ValidationError
		unavailable *UnavailableError
		settlement  *SettlementError
	)
	switch {
	case errors.As(err, &unavailable):
		return unavailable.Message
	case errors.As(err, &validation):
		return capitalize(validation.Err.Error())
	case errors.As(err, &settlement):
		return settle.Message(settlement.Err)
	case errors.Is(err, ErrNoIdentity):
		return "Please sign in to play."
	}
	return "Something went wrong. Please try again."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
