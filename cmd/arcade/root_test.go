package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "dev (commit unknown") {
		t.Errorf("output %q", out)
	}
}

func TestGamesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mining":{"is_enabled":false,"maintenance_message":"Mines closed"}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "arcade.yaml")
	body := "settlement:\n  base_url: " + srv.URL + "\nidentity:\n  static: \"1\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "games", "--config", path, "--env-file", filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header plus 5 games, got %q", out)
	}
	var mining string
	for _, l := range lines {
		if strings.HasPrefix(l, "mining") {
			mining = l
		}
	}
	if !strings.Contains(mining, "false") || !strings.Contains(mining, "Mines closed") {
		t.Errorf("mining row %q", mining)
	}
}

func TestBadConfigFails(t *testing.T) {
	if _, err := run(t, "games", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestReplayCommand(t *testing.T) {
	out, err := run(t, "replay", "plinko", "--server-seed", "house", "--client-seed", "player", "--nonce", "3")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Game      string `json:"game"`
		Nonce     uint64 `json:"nonce"`
		Narrative struct {
			Bucket int `json:"bucket"`
		} `json:"narrative"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	n, _ := games.Generate(games.KindPlinko, engine.NewFairSource(engine.Seeds{Server: "house", Client: "player"}, 3), games.Options{})
	if want := n.(*games.PlinkoNarrative).Bucket; got.Game != "plinko" || got.Nonce != 3 || got.Narrative.Bucket != want {
		t.Errorf("replay = %+v, want bucket %d", got, want)
	}

	again, _ := run(t, "replay", "plinko", "--server-seed", "house", "--client-seed", "player", "--nonce", "3")
	if again != out {
		t.Errorf("replay is not deterministic:\n%s\n%s", out, again)
	}
}

func TestReplayMinesShowsLayout(t *testing.T) {
	out, err := run(t, "replay", "mining", "--server-seed", "house", "--mines", "5")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Mines []int `json:"mines"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Mines) != 5 {
		t.Errorf("expected 5 mines, got %v", got.Mines)
	}
}

func TestReplayNeedsServerSeed(t *testing.T) {
	if _, err := run(t, "replay", "wheel"); err == nil {
		t.Error("expected error without a server seed")
	}
	if _, err := run(t, "replay", "roulette", "--server-seed", "house"); err == nil {
		t.Error("expected error for an unknown game")
	}
}
