package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zalando/go-keyring"

	"github.com/MJE43/arcade-session-go/internal/config"
	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/session"
)

// fakeService speaks the settlement wire contract for player 42.
func fakeService(t *testing.T, plays *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/games/api/status/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plinko":{"is_enabled":false,"maintenance_message":"Plinko is closed"},"wheel":{"is_enabled":true}}`))
	})
	mux.HandleFunc("/api/user/42/balance/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance":"120.00"}`))
	})
	mux.HandleFunc("/games/api/play/", func(w http.ResponseWriter, r *http.Request) {
		plays.Add(1)
		var body struct {
			TelegramID json.Number    `json:"telegram_id"`
			BetAmount  string         `json:"bet_amount"`
			GameData   map[string]any `json:"game_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"bad body"}`, http.StatusBadRequest)
			return
		}
		if body.TelegramID.String() != "42" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"User not found"}`))
			return
		}
		if won, _ := body.GameData["won"].(bool); won {
			w.Write([]byte(`{"result":"win","multiplier":2,"points_change":10,"new_balance":130}`))
			return
		}
		w.Write([]byte(`{"result":"loss","multiplier":0,"points_change":-10,"new_balance":110}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.Settlement.BaseURL = baseURL
	cfg.Identity.Static = "42"
	return cfg
}

func TestAppBootstrapAndAvailability(t *testing.T) {
	var plays atomic.Int32
	srv := fakeService(t, &plays)
	a, err := New(testConfig(srv.URL), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	if bal, ok := a.Arcade.Wallet().Balance(); !ok || !bal.Equal(decimal.NewFromInt(120)) {
		t.Errorf("wallet %s %v", bal, ok)
	}
	for _, g := range a.Arcade.Games(context.Background()) {
		switch g.ID {
		case games.KindPlinko:
			if g.Enabled || g.MaintenanceMessage != "Plinko is closed" {
				t.Errorf("plinko %+v", g.GameStatus)
			}
		default:
			if !g.Enabled {
				t.Errorf("%s should default to enabled", g.ID)
			}
		}
	}
}

func TestAppPlaysWheelAgainstService(t *testing.T) {
	var plays atomic.Int32
	srv := fakeService(t, &plays)
	clock := session.NewManualScheduler()
	a, err := New(testConfig(srv.URL), nil, Options{Scheduler: clock, Random: engine.NewSeeded(5)})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Arcade.Open(games.KindWheel)
	if err != nil {
		t.Fatal(err)
	}
	if started, err := s.Start(context.Background(), session.StartRequest{Wager: "10"}); !started || err != nil {
		t.Fatalf("Start = %v, %v", started, err)
	}
	clock.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if plays.Load() != 1 {
		t.Errorf("expected one play call, got %d", plays.Load())
	}
	bal, ok := a.Arcade.Wallet().Balance()
	if !ok || !(bal.Equal(decimal.NewFromInt(130)) || bal.Equal(decimal.NewFromInt(110))) {
		t.Errorf("wallet %s %v", bal, ok)
	}
}

func TestAppFairSeries(t *testing.T) {
	var plays atomic.Int32
	srv := fakeService(t, &plays)
	cfg := testConfig(srv.URL)
	cfg.Fair = config.FairConfig{ServerSeed: "house", ClientSeed: "player", Nonce: 10}
	clock := session.NewManualScheduler()
	a, err := New(cfg, nil, Options{Scheduler: clock})
	if err != nil {
		t.Fatal(err)
	}
	if a.Fair == nil {
		t.Fatal("fair series should be built from config")
	}
	s, _ := a.Arcade.Open(games.KindWheel)
	if started, err := s.Start(context.Background(), session.StartRequest{Wager: "10"}); !started || err != nil {
		t.Fatalf("Start = %v, %v", started, err)
	}
	snap := s.Snapshot()
	if snap.Nonce == nil || *snap.Nonce != 10 {
		t.Fatalf("round nonce = %v, want 10", snap.Nonce)
	}
	replayed, err := games.Generate(games.KindWheel, engine.NewFairSource(cfg.Fair.Seeds(), 10), games.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := replayed.(*games.WheelNarrative).Segment, snap.Narrative.(*games.WheelNarrative).Segment; got != want {
		t.Errorf("replayed segment %d, played %d", got, want)
	}

	clock.Flush()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if a.Fair.Nonce() != 11 {
		t.Errorf("next nonce = %d, want 11", a.Fair.Nonce())
	}
}

func TestAppKeyringIdentity(t *testing.T) {
	keyring.MockInit()
	var plays atomic.Int32
	srv := fakeService(t, &plays)
	cfg := testConfig(srv.URL)
	cfg.Identity.Static = ""
	cfg.Identity.FallbackPath = t.TempDir() + "/identity.json"

	a, err := New(cfg, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Keyring == nil {
		t.Fatal("expected keyring identity")
	}
	if err := a.Bootstrap(context.Background()); err != nil {
		t.Fatalf("missing identity should not fail bootstrap: %v", err)
	}
	if _, ok := a.Arcade.Wallet().Balance(); ok {
		t.Error("balance loaded without an identity")
	}

	if err := a.Keyring.SetIdentity("42"); err != nil {
		t.Fatal(err)
	}
	if err := a.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Arcade.Wallet().Balance(); !ok {
		t.Error("balance should load once the identity is set")
	}
}

func TestAppRejectsBadWagerRules(t *testing.T) {
	cfg := config.Default()
	cfg.Wager.Min = "lots"
	if _, err := New(cfg, nil, Options{}); err == nil {
		t.Error("expected error")
	}
}
