package session

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MJE43/arcade-session-go/internal/availability"
	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/identity"
	"github.com/MJE43/arcade-session-go/internal/settle"
	"github.com/MJE43/arcade-session-go/internal/wager"
)

func TestNewRejectsMissingCollaborators(t *testing.T) {
	if _, err := New(Config{Kind: "dice", Settler: &fakeSettler{}, Identity: identity.Static("1")}); err == nil {
		t.Error("expected error for unknown game")
	}
	if _, err := New(Config{Kind: games.KindWheel, Identity: identity.Static("1")}); err == nil {
		t.Error("expected error without settler")
	}
	if _, err := New(Config{Kind: games.KindWheel, Settler: &fakeSettler{}}); err == nil {
		t.Error("expected error without identity")
	}
}

func TestWheelRoundPhases(t *testing.T) {
	h := newHarness(t, games.KindWheel)
	h.settler.gate = make(chan struct{})

	mustStart(t, h.s, "10")
	snap := h.s.Snapshot()
	if snap.Phase != PhaseAnimating || !snap.InFlight {
		t.Fatalf("after Start: phase %s inFlight %v", snap.Phase, snap.InFlight)
	}

	h.clock.Advance(4999 * time.Millisecond)
	if got := h.s.Snapshot().Phase; got != PhaseAnimating {
		t.Fatalf("before the spin ends: phase %s", got)
	}
	if h.settler.calls() != 0 {
		t.Fatal("wheel must not settle before the animation ends")
	}

	h.clock.Advance(time.Millisecond)
	if got := h.s.Snapshot().Phase; got != PhaseAwaitingSettlement {
		t.Fatalf("after the spin: phase %s", got)
	}
	waitFor(t, "settlement call", func() bool { return h.settler.calls() == 1 })

	req := h.settler.last()
	if req.Kind != games.KindWheel || req.Identity != "42" || !req.Wager.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected request %+v", req)
	}
	if _, ok := req.Payload["segment"]; !ok {
		t.Errorf("wheel payload missing segment: %v", req.Payload)
	}

	close(h.settler.gate)
	h.await(t)

	snap = h.s.Snapshot()
	if snap.Phase != PhaseResolved || snap.InFlight || snap.Result == nil {
		t.Fatalf("after settlement: %+v", snap)
	}
	want := []Phase{PhaseWagering, PhaseAnimating, PhaseAwaitingSettlement, PhaseResolved}
	if got := h.sink.phaseLog(); !slices.Equal(got, want) {
		t.Errorf("phases %v, want %v", got, want)
	}
	h.sink.mu.Lock()
	order := slices.Clone(h.sink.order)
	h.sink.mu.Unlock()
	if !slices.Equal(order, []string{"balance", "notify"}) {
		t.Errorf("sink order %v", order)
	}
	if bal, ok := h.wallet.Balance(); !ok || !bal.Equal(snap.Result.NewBalance) {
		t.Errorf("wallet %s, result %s", bal, snap.Result.NewBalance)
	}
}

func TestStartWhileInFlightIsIgnored(t *testing.T) {
	h := newHarness(t, games.KindPlinko)
	h.settler.gate = make(chan struct{})
	mustStart(t, h.s, "5")
	before := h.s.Snapshot()

	started, err := h.s.Start(context.Background(), StartRequest{Wager: "5"})
	if started || err != nil {
		t.Fatalf("second Start = %v, %v", started, err)
	}
	after := h.s.Snapshot()
	if after.Phase != before.Phase || after.RoundID != before.RoundID {
		t.Errorf("in-flight start changed the session: %+v -> %+v", before, after)
	}

	h.clock.Flush()
	waitFor(t, "settlement call", func() bool { return h.settler.calls() == 1 })
	if started, err := h.s.Start(context.Background(), StartRequest{Wager: "bad"}); started || err != nil {
		t.Errorf("start during settlement = %v, %v", started, err)
	}
	if got := h.s.Snapshot().Phase; got != PhaseAwaitingSettlement {
		t.Errorf("phase changed to %s", got)
	}

	close(h.settler.gate)
	h.await(t)
	if h.settler.calls() != 1 {
		t.Errorf("expected one settlement, got %d", h.settler.calls())
	}
	if n := len(h.sink.notifications()); n != 1 {
		t.Errorf("ignored starts must not notify, got %d notifications", n)
	}
}

func TestValidationErrorLeavesSessionIdle(t *testing.T) {
	h := newHarness(t, games.KindSlots)
	for _, w := range []string{"", "abc", "0", "-3", "1.234"} {
		started, err := h.s.Start(context.Background(), StartRequest{Wager: w})
		var ve *ValidationError
		if started || !errors.As(err, &ve) {
			t.Errorf("wager %q: Start = %v, %v", w, started, err)
		}
	}
	if got := h.s.Snapshot().Phase; got != PhaseIdle {
		t.Errorf("phase %s after rejected starts", got)
	}
	if n := len(h.sink.notifications()); n != 5 {
		t.Errorf("expected one notification per rejection, got %d", n)
	}
	if len(h.sink.phaseLog()) != 0 {
		t.Error("rejected starts must not transition")
	}
}

func TestWagerBoundedByWallet(t *testing.T) {
	h := newHarness(t, games.KindWheel)
	h.wallet.Set(decimal.NewFromInt(5))
	_, err := h.s.Start(context.Background(), StartRequest{Wager: "10"})
	if !errors.Is(err, wager.ErrOverBalance) {
		t.Fatalf("expected ErrOverBalance, got %v", err)
	}
	notes := h.sink.notifications()
	if len(notes) != 1 || notes[0].sev != SeverityError {
		t.Errorf("unexpected notifications %v", notes)
	}
}

func TestUnavailableGame(t *testing.T) {
	h := newHarness(t, games.KindWheel, func(c *Config) {
		c.Availability = availability.New(availability.Static{
			games.KindWheel: {Enabled: false, MaintenanceMessage: "Wheel is being repaired"},
		}, time.Minute, nil)
	})
	started, err := h.s.Start(context.Background(), StartRequest{Wager: "10"})
	var ue *UnavailableError
	if started || !errors.As(err, &ue) {
		t.Fatalf("Start = %v, %v", started, err)
	}
	notes := h.sink.notifications()
	if len(notes) != 1 || notes[0].msg != "Wheel is being repaired" {
		t.Errorf("expected the maintenance message, got %v", notes)
	}
	if h.s.Snapshot().Phase != PhaseIdle {
		t.Error("session should stay idle")
	}
}

func TestNoIdentity(t *testing.T) {
	h := newHarness(t, games.KindCards, func(c *Config) { c.Identity = identity.Static("") })
	_, err := h.s.Start(context.Background(), StartRequest{Wager: "1"})
	if !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}

func TestSettlementFailure(t *testing.T) {
	h := newHarness(t, games.KindWheel)
	h.wallet.Set(decimal.NewFromInt(100))
	h.settler.reply = func(settle.Request) (settle.Settlement, error) {
		return settle.Settlement{}, &settle.TransportError{Op: "http request", Err: errors.New("connection refused")}
	}

	mustStart(t, h.s, "10")
	h.clock.Flush()
	h.await(t)

	snap := h.s.Snapshot()
	if snap.Phase != PhaseIdle || snap.InFlight {
		t.Fatalf("after failure: %+v", snap)
	}
	if snap.Error == "" {
		t.Error("snapshot should carry the error message")
	}
	if !slices.Contains(h.sink.phaseLog(), PhaseError) {
		t.Errorf("error phase not reached: %v", h.sink.phaseLog())
	}
	if got := h.sink.balanceUpdates(); len(got) != 0 {
		t.Errorf("balance must not change, got %v", got)
	}
	if bal, _ := h.wallet.Balance(); !bal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("wallet changed to %s", bal)
	}
	notes := h.sink.notifications()
	if len(notes) != 1 || notes[0].sev != SeverityError {
		t.Fatalf("expected exactly one error notification, got %v", notes)
	}
	if h.settler.calls() != 1 {
		t.Errorf("failures must not be retried, got %d calls", h.settler.calls())
	}

	mustStart(t, h.s, "10")
	if h.s.Snapshot().Error != "" {
		t.Error("a new round clears the previous error")
	}
}

func TestMinesCashOutEndToEnd(t *testing.T) {
	h := newHarness(t, games.KindMining)
	h.settler.reply = func(req settle.Request) (settle.Settlement, error) {
		return settle.Settlement{
			Won:        true,
			Multiplier: decimal.RequireFromString("1.8"),
			Delta:      decimal.NewFromInt(8),
			NewBalance: decimal.NewFromInt(108),
		}, nil
	}

	started, err := h.s.Start(context.Background(), StartRequest{Wager: "10", MineCount: 3})
	if !started || err != nil {
		t.Fatalf("Start = %v, %v", started, err)
	}
	snap := h.s.Snapshot()
	if snap.Phase != PhaseAwaitingChoice {
		t.Fatalf("mining waits for reveals, got %s", snap.Phase)
	}
	if err := h.s.CashOut(); !errors.As(err, new(*ValidationError)) {
		t.Errorf("cash-out before a reveal: %v", err)
	}

	layout := snap.Narrative.(*games.MinesNarrative)
	revealed := 0
	for cell := 0; cell < games.MinesCells && revealed < 4; cell++ {
		if layout.IsMine(cell) {
			continue
		}
		res, err := h.s.Reveal(cell)
		if err != nil || res != games.RevealSafe {
			t.Fatalf("Reveal(%d) = %v, %v", cell, res, err)
		}
		revealed++
	}
	if err := h.s.CashOut(); err != nil {
		t.Fatalf("CashOut: %v", err)
	}
	h.await(t)

	req := h.settler.last()
	if req.Payload["revealed"] != 4 || req.Payload["hit_mine"] != false || req.Payload["mines"] != 3 {
		t.Errorf("unexpected payload %v", req.Payload)
	}
	snap = h.s.Snapshot()
	if snap.Phase != PhaseResolved || !snap.Result.Won {
		t.Fatalf("unexpected result %+v", snap)
	}
	n := snap.Narrative.(*games.MinesNarrative)
	if !n.Multiplier.Equal(decimal.RequireFromString("1.80")) {
		t.Errorf("display multiplier %s", n.Multiplier)
	}
	if got := h.sink.balanceUpdates(); len(got) != 1 || !got[0].Equal(decimal.NewFromInt(108)) {
		t.Errorf("balance updates %v", got)
	}
}

func TestMinesBustSettlesLoss(t *testing.T) {
	h := newHarness(t, games.KindMining)
	mustStart(t, h.s, "10")
	layout := h.s.Snapshot().Narrative.(*games.MinesNarrative)

	res, err := h.s.Reveal(layout.Mines[0])
	if err != nil || res != games.RevealMine {
		t.Fatalf("Reveal(mine) = %v, %v", res, err)
	}
	if _, err := h.s.Reveal(0); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("reveal after bust: %v", err)
	}
	h.await(t)
	if h.settler.last().Payload["hit_mine"] != true {
		t.Error("bust should report hit_mine")
	}
	if snap := h.s.Snapshot(); snap.Result == nil || snap.Result.Won {
		t.Errorf("bust should lose: %+v", snap.Result)
	}
}

func TestMinesAutoCashOutWhenBoardCleared(t *testing.T) {
	h := newHarness(t, games.KindMining)
	started, err := h.s.Start(context.Background(), StartRequest{Wager: "1", MineCount: 24})
	if !started || err != nil {
		t.Fatalf("Start = %v, %v", started, err)
	}
	layout := h.s.Snapshot().Narrative.(*games.MinesNarrative)
	safe := -1
	for cell := 0; cell < games.MinesCells; cell++ {
		if !layout.IsMine(cell) {
			safe = cell
		}
	}
	if _, err := h.s.Reveal(safe); err != nil {
		t.Fatal(err)
	}
	h.await(t)
	if h.settler.calls() != 1 {
		t.Fatal("clearing the board should settle")
	}
	if p := h.settler.last().Payload; p["revealed"] != 1 || p["hit_mine"] != false {
		t.Errorf("unexpected payload %v", p)
	}
}

func TestMinesMultiplierClimbsAndResets(t *testing.T) {
	h := newHarness(t, games.KindMining)
	mustStart(t, h.s, "10")

	multiplier := func() decimal.Decimal {
		return h.s.Snapshot().Narrative.(*games.MinesNarrative).Multiplier
	}
	prev := multiplier()
	if !prev.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("a fresh round starts at 1, got %s", prev)
	}

	layout := h.s.Snapshot().Narrative.(*games.MinesNarrative)
	revealed := 0
	for cell := 0; cell < games.MinesCells && revealed < 6; cell++ {
		if layout.IsMine(cell) {
			continue
		}
		if _, err := h.s.Reveal(cell); err != nil {
			t.Fatalf("Reveal(%d): %v", cell, err)
		}
		// A repeat reveal leaves the multiplier where it was.
		if _, err := h.s.Reveal(cell); err != nil {
			t.Fatalf("repeat Reveal(%d): %v", cell, err)
		}
		revealed++
		got := multiplier()
		if got.LessThan(prev) {
			t.Fatalf("multiplier fell from %s to %s", prev, got)
		}
		if want := games.MinesMultiplier(games.MinesDefaultCount, revealed); !got.Equal(want) {
			t.Errorf("after %d reveals: %s, want %s", revealed, got, want)
		}
		prev = got
	}

	if err := h.s.CashOut(); err != nil {
		t.Fatal(err)
	}
	h.await(t)
	if h.s.Snapshot().Phase != PhaseResolved {
		t.Fatal("cash-out should resolve the round")
	}

	mustStart(t, h.s, "10")
	if got := multiplier(); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("next round should reset to 1, got %s", got)
	}
}

// gatedIdentity holds the first lookup until release is closed and then
// fails it; later lookups succeed at once.
type gatedIdentity struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedIdentity) Identity(context.Context) (string, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
		return "", identity.ErrNotFound
	}
	return "42", nil
}

func TestRejectedStartRacingARoundStaysSilent(t *testing.T) {
	gate := &gatedIdentity{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, games.KindWheel, func(c *Config) { c.Identity = gate })

	type outcome struct {
		started bool
		err     error
	}
	first := make(chan outcome, 1)
	go func() {
		started, err := h.s.Start(context.Background(), StartRequest{Wager: "1"})
		first <- outcome{started, err}
	}()
	<-gate.entered

	mustStart(t, h.s, "1")
	close(gate.release)

	got := <-first
	if got.started || got.err != nil {
		t.Errorf("start overtaken by a round = %v, %v; want ignored", got.started, got.err)
	}
	if notes := h.sink.notifications(); len(notes) != 0 {
		t.Errorf("no toast expected mid-round, got %v", notes)
	}
	if snap := h.s.Snapshot(); !snap.InFlight || snap.Phase != PhaseAnimating {
		t.Errorf("the winning round should be untouched: %s inFlight=%v", snap.Phase, snap.InFlight)
	}
}

func TestMineCountValidated(t *testing.T) {
	h := newHarness(t, games.KindMining)
	_, err := h.s.Start(context.Background(), StartRequest{Wager: "1", MineCount: 25})
	if !errors.As(err, new(*ValidationError)) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCardsPickSettles(t *testing.T) {
	h := newHarness(t, games.KindCards)
	mustStart(t, h.s, "4")

	if err := h.s.Pick(0); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("pick during the shuffle: %v", err)
	}
	h.clock.Flush()
	snap := h.s.Snapshot()
	if snap.Phase != PhaseAwaitingChoice {
		t.Fatalf("after shuffle: %s", snap.Phase)
	}
	cards := snap.Narrative.(*games.CardsNarrative)
	if len(h.sink.frames) != len(cards.Swaps)+3 {
		t.Errorf("expected %d frames, observed %d", len(cards.Swaps)+3, len(h.sink.frames))
	}

	if err := h.s.Pick(5); !errors.As(err, new(*ValidationError)) {
		t.Errorf("out of range pick: %v", err)
	}
	if err := h.s.Pick(cards.JokerPosition()); err != nil {
		t.Fatalf("Pick: %v", err)
	}
	h.await(t)

	p := h.settler.last().Payload
	if p["won"] != true || p["jokerPosition"] != cards.JokerPosition() || p["initialJoker"] != cards.InitialJoker {
		t.Errorf("unexpected payload %v", p)
	}
	snap = h.s.Snapshot()
	if !snap.Result.Won || !snap.Narrative.(*games.CardsNarrative).Revealed {
		t.Errorf("unexpected final state %+v", snap)
	}
}

func TestSlotsSettleDuringAnimation(t *testing.T) {
	h := newHarness(t, games.KindSlots)
	h.settler.reply = func(settle.Request) (settle.Settlement, error) {
		return settle.Settlement{
			Won:        true,
			Multiplier: decimal.NewFromInt(10),
			Delta:      decimal.NewFromInt(45),
			NewBalance: decimal.NewFromInt(145),
		}, nil
	}
	mustStart(t, h.s, "5")
	h.await(t)

	if h.settler.calls() != 1 {
		t.Fatal("slots should settle as the reels start")
	}
	if got := h.s.Snapshot().Phase; got != PhaseAnimating {
		t.Fatalf("result must wait for the reels, phase %s", got)
	}
	if len(h.sink.balanceUpdates()) != 0 {
		t.Fatal("balance must not move before the reels stop")
	}
	if h.settler.last().Payload != nil {
		t.Error("slots payload should be omitted")
	}

	h.clock.Advance(2 * time.Second)
	snap := h.s.Snapshot()
	if snap.Phase != PhaseResolved {
		t.Fatalf("after the spin: %s", snap.Phase)
	}
	reels := snap.Narrative.(*games.SlotsNarrative).Reels
	if reels != [3]games.Symbol{games.Diamond, games.Diamond, games.Diamond} {
		t.Errorf("jackpot reels %v", reels)
	}
	if !snap.Result.Jackpot {
		t.Error("10x slots win is a jackpot")
	}
}

func TestSlotsFailureStopsAnimation(t *testing.T) {
	h := newHarness(t, games.KindSlots)
	h.settler.reply = func(settle.Request) (settle.Settlement, error) {
		return settle.Settlement{}, &settle.RemoteError{StatusCode: 400, Message: "Insufficient balance"}
	}
	mustStart(t, h.s, "5")
	h.await(t)

	snap := h.s.Snapshot()
	if snap.Phase != PhaseIdle || snap.Error != "Insufficient balance" {
		t.Fatalf("unexpected state %+v", snap)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("animation timer still pending")
	}
	if n := len(h.sink.notifications()); n != 1 {
		t.Errorf("expected one notification, got %d", n)
	}
}

func TestInvariantViolationAppliesBalance(t *testing.T) {
	core, logs := observer.New(zap.DPanicLevel)
	h := newHarness(t, games.KindWheel, func(c *Config) { c.Logger = zap.New(core) })
	h.settler.reply = func(req settle.Request) (settle.Settlement, error) {
		won, _ := req.Payload["won"].(bool)
		return settle.Settlement{Won: !won, NewBalance: decimal.NewFromInt(77)}, nil
	}
	mustStart(t, h.s, "10")
	h.clock.Flush()
	h.await(t)

	if logs.FilterMessage("narrative disagrees with settlement").Len() != 1 {
		t.Fatalf("expected a DPanic entry, got %v", logs.All())
	}
	if bal, _ := h.wallet.Balance(); !bal.Equal(decimal.NewFromInt(77)) {
		t.Errorf("authoritative balance not applied: %s", bal)
	}
	for _, n := range h.sink.notifications() {
		if n.sev == SeverityError {
			t.Errorf("violations are not shown to the player: %v", n)
		}
	}
}

func TestCloseLetsSettlementLand(t *testing.T) {
	h := newHarness(t, games.KindPlinko)
	h.settler.gate = make(chan struct{})
	mustStart(t, h.s, "10")
	h.clock.Flush()
	waitFor(t, "settlement call", func() bool { return h.settler.calls() == 1 })

	h.s.Close()
	close(h.settler.gate)
	h.await(t)

	if got := h.sink.balanceUpdates(); len(got) != 1 {
		t.Fatalf("balance should follow an abandoned round, got %v", got)
	}
	if _, ok := h.wallet.Balance(); !ok {
		t.Error("wallet not updated")
	}
	if n := len(h.sink.notifications()); n != 0 {
		t.Errorf("closed sessions do not notify, got %d", n)
	}
	if _, err := h.s.Start(context.Background(), StartRequest{Wager: "1"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close: %v", err)
	}
}

func TestCloseDuringAnimationSendsNothing(t *testing.T) {
	h := newHarness(t, games.KindWheel)
	mustStart(t, h.s, "10")
	h.s.Close()
	h.clock.Flush()
	h.await(t)
	if h.settler.calls() != 0 {
		t.Error("an abandoned animation must not settle")
	}
}

func TestAcknowledgeAndNextRound(t *testing.T) {
	h := newHarness(t, games.KindWheel)
	if err := h.s.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge while idle: %v", err)
	}
	mustStart(t, h.s, "10")
	if err := h.s.Acknowledge(); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Acknowledge mid-round: %v", err)
	}
	h.clock.Flush()
	h.await(t)
	first := h.s.Snapshot()
	if first.Phase != PhaseResolved {
		t.Fatalf("phase %s", first.Phase)
	}

	if err := h.s.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if snap := h.s.Snapshot(); snap.Phase != PhaseIdle || snap.Narrative != nil || snap.Result != nil {
		t.Errorf("acknowledge should clear the round: %+v", snap)
	}

	mustStart(t, h.s, "10")
	second := h.s.Snapshot().Narrative.(*games.WheelNarrative)
	if second.From != first.Narrative.(*games.WheelNarrative).Rotation {
		t.Errorf("wheel should continue from %v, got %v", first.Narrative.(*games.WheelNarrative).Rotation, second.From)
	}
}

func TestStartFromResolvedPassesThroughIdle(t *testing.T) {
	h := newHarness(t, games.KindPlinko)
	mustStart(t, h.s, "1")
	h.clock.Flush()
	h.await(t)
	mustStart(t, h.s, "1")

	log := h.sink.phaseLog()
	i := slices.Index(log, PhaseResolved)
	if i < 0 || i+2 >= len(log) || log[i+1] != PhaseIdle || log[i+2] != PhaseWagering {
		t.Errorf("expected resolved -> idle -> wagering, got %v", log)
	}
}

func TestWrongGameActions(t *testing.T) {
	h := newHarness(t, games.KindWheel)
	if err := h.s.Pick(0); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Pick on wheel: %v", err)
	}
	if res, err := h.s.Reveal(0); !errors.Is(err, ErrWrongPhase) || res != games.RevealNone {
		t.Errorf("Reveal on wheel = %v, %v", res, err)
	}
	if err := h.s.CashOut(); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("CashOut on wheel: %v", err)
	}
}

func TestFairSeriesDrivesNarrative(t *testing.T) {
	seeds := engine.Seeds{Server: "server-seed", Client: "client-seed"}
	play := func() (*games.PlinkoNarrative, *uint64, *harness) {
		series, err := engine.NewFairSeries(seeds, 1)
		if err != nil {
			t.Fatal(err)
		}
		h := newHarness(t, games.KindPlinko, func(c *Config) { c.Random = series })
		mustStart(t, h.s, "1")
		snap := h.s.Snapshot()
		return snap.Narrative.(*games.PlinkoNarrative), snap.Nonce, h
	}
	a, nonce, h := play()
	b, _, _ := play()
	if a.Route() != b.Route() {
		t.Errorf("same seeds should drop the same path: %s vs %s", a.Route(), b.Route())
	}
	if nonce == nil || *nonce != 1 {
		t.Fatalf("first round nonce = %v, want 1", nonce)
	}

	replayed, err := games.Generate(games.KindPlinko, engine.NewFairSource(seeds, *nonce), games.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := replayed.(*games.PlinkoNarrative).Route(); got != a.Route() {
		t.Errorf("replay of nonce %d = %s, played %s", *nonce, got, a.Route())
	}

	h.clock.Flush()
	h.await(t)
	mustStart(t, h.s, "1")
	if next := h.s.Snapshot().Nonce; next == nil || *next != 2 {
		t.Errorf("second round nonce = %v, want 2", next)
	}
}
