// Package settle is the client for the remote settlement service.
//
// Every call is a single HTTP round-trip. Nothing is retried here: a failed
// round is surfaced to the player, who starts a new one.
//
// # Usage
//
//	client := settle.NewClient(settle.Config{BaseURL: "http://localhost:8000"})
//	res, err := client.Settle(ctx, settle.Request{
//	    Identity: "42",
//	    Kind:     games.KindWheel,
//	    Wager:    decimal.NewFromInt(10),
//	    Payload:  narrative.Payload(),
//	})
package settle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/games"
)

const (
	playPath    = "games/api/play/"
	statusPath  = "games/api/status/"
	historyPath = "games/api/history/%s/"
	balancePath = "api/user/%s/balance/"
)

// Config holds configuration for the settlement client.
type Config struct {
	// BaseURL is the service root. Defaults to http://localhost:8000.
	BaseURL string

	// Timeout bounds each request when HTTPClient is nil. Defaults to 15s.
	Timeout time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string
}

// Client talks to the settlement service.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{config: cfg, http: httpClient}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Settle submits one round and returns the authoritative verdict.
func (c *Client) Settle(ctx context.Context, req Request) (Settlement, error) {
	if !req.Wager.IsPositive() {
		return Settlement{}, fmt.Errorf("settle: wager must be positive, got %s", req.Wager)
	}
	body := playRequest{
		TelegramID: identityValue(req.Identity),
		GameType:   req.Kind,
		BetAmount:  req.Wager,
		GameData:   req.Payload,
	}

	raw, err := c.do(ctx, http.MethodPost, playPath, body)
	if err != nil {
		return Settlement{}, err
	}

	var resp playResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Settlement{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Error != "" {
		return Settlement{}, &RemoteError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.settlement()
}

func (r playResponse) settlement() (Settlement, error) {
	if r.Result != resultWin && r.Result != resultLoss {
		return Settlement{}, fmt.Errorf("%w: result %q", ErrMalformedResponse, r.Result)
	}
	if r.NewBalance == nil || r.PointsChange == nil {
		return Settlement{}, fmt.Errorf("%w: missing balance fields", ErrMalformedResponse)
	}
	if r.NewBalance.IsNegative() {
		return Settlement{}, fmt.Errorf("%w: negative balance %s", ErrMalformedResponse, r.NewBalance)
	}
	s := Settlement{
		Won:        r.Result == resultWin,
		Delta:      *r.PointsChange,
		NewBalance: *r.NewBalance,
	}
	if r.Multiplier != nil {
		s.Multiplier = *r.Multiplier
	}
	return s, nil
}

// Balance fetches the player's current balance.
func (c *Client) Balance(ctx context.Context, identity string) (decimal.Decimal, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf(balancePath, url.PathEscape(identity)), nil)
	if err != nil {
		return decimal.Zero, err
	}
	var resp balanceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Error != "" {
		return decimal.Zero, &RemoteError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	if resp.Balance == nil {
		return decimal.Zero, fmt.Errorf("%w: missing balance", ErrMalformedResponse)
	}
	return *resp.Balance, nil
}

// Status fetches the availability flag of every game the service knows.
func (c *Client) Status(ctx context.Context) (map[games.Kind]GameStatus, error) {
	raw, err := c.do(ctx, http.MethodGet, statusPath, nil)
	if err != nil {
		return nil, err
	}
	var resp map[string]statusEntry
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out := make(map[games.Kind]GameStatus, len(resp))
	for kind, entry := range resp {
		out[games.Kind(kind)] = GameStatus{
			Enabled:            entry.IsEnabled,
			MaintenanceMessage: entry.MaintenanceMessage,
		}
	}
	return out, nil
}

// History fetches the player's most recent settled rounds, newest first.
func (c *Client) History(ctx context.Context, identity string) ([]HistoryEntry, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf(historyPath, url.PathEscape(identity)), nil)
	if err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return entries, nil
}

// do sends a single request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.config.BaseURL, "/"), strings.TrimPrefix(path, "/"))

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("settle: marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("settle: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "http request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			if msg := firstNonEmpty(eb.Error, eb.Detail); msg != "" {
				return nil, &RemoteError{StatusCode: resp.StatusCode, Message: msg}
			}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
