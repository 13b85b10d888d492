package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/identity"
	"github.com/MJE43/arcade-session-go/internal/settle"
)

type fakeSettler struct {
	mu    sync.Mutex
	reqs  []settle.Request
	gate  chan struct{}
	reply func(settle.Request) (settle.Settlement, error)
}

func (f *fakeSettler) Settle(ctx context.Context, req settle.Request) (settle.Settlement, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return settle.Settlement{}, ctx.Err()
		}
	}
	return f.reply(req)
}

func (f *fakeSettler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeSettler) last() settle.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

// agreeing settles every round the way the narrative claims, paying the
// multiplier on a stake with balance before the round.
func agreeing(balance int64) func(settle.Request) (settle.Settlement, error) {
	return func(req settle.Request) (settle.Settlement, error) {
		won := true
		mult := decimal.NewFromInt(2)
		if w, ok := req.Payload["won"].(bool); ok {
			won = w
		}
		if hit, ok := req.Payload["hit_mine"].(bool); ok {
			won = !hit
		}
		if m, ok := req.Payload["multiplier"].(float64); ok {
			mult = decimal.NewFromFloat(m)
		}
		delta := req.Wager.Neg()
		if won {
			delta = req.Wager.Mul(mult).Sub(req.Wager)
		}
		return settle.Settlement{
			Won:        won,
			Multiplier: mult,
			Delta:      delta,
			NewBalance: decimal.NewFromInt(balance).Add(delta),
		}, nil
	}
}

type note struct {
	msg string
	sev Severity
}

type recordingSink struct {
	mu       sync.Mutex
	balances []decimal.Decimal
	notes    []note
	phases   []Phase
	frames   []games.Frame
	order    []string
}

func (r *recordingSink) UpdateBalance(b decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances = append(r.balances, b)
	r.order = append(r.order, "balance")
}

func (r *recordingSink) Notify(msg string, sev Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{msg, sev})
	r.order = append(r.order, "notify")
}

func (r *recordingSink) OnPhase(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.phases); n == 0 || r.phases[n-1] != snap.Phase {
		r.phases = append(r.phases, snap.Phase)
	}
}

func (r *recordingSink) OnFrame(_ Snapshot, f games.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingSink) notifications() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

func (r *recordingSink) balanceUpdates() []decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]decimal.Decimal(nil), r.balances...)
}

func (r *recordingSink) phaseLog() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

type harness struct {
	s       *Session
	settler *fakeSettler
	sink    *recordingSink
	clock   *ManualScheduler
	wallet  *Wallet
}

func newHarness(t *testing.T, kind games.Kind, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		settler: &fakeSettler{reply: agreeing(100)},
		sink:    &recordingSink{},
		clock:   NewManualScheduler(),
		wallet:  &Wallet{},
	}
	cfg := Config{
		Kind:      kind,
		Settler:   h.settler,
		Identity:  identity.Static("42"),
		Sink:      h.sink,
		Scheduler: h.clock,
		Random:    engine.NewSeeded(7),
		Wallet:    h.wallet,
		Logger:    zap.NewNop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.s = s
	t.Cleanup(s.Close)
	return h
}

func (h *harness) await(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.s.Await(ctx); err != nil {
		t.Fatalf("Await: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func mustStart(t *testing.T, s *Session, wager string) {
	t.Helper()
	started, err := s.Start(context.Background(), StartRequest{Wager: wager})
	if err != nil || !started {
		t.Fatalf("Start(%s) = %v, %v", wager, started, err)
	}
}
