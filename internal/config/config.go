// Package config loads arcade settings from defaults, an optional YAML file,
// a .env file and ARCADE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/wager"
)

// Config is the full arcade configuration.
type Config struct {
	Settlement   SettlementConfig   `yaml:"settlement"`
	HTTP         HTTPConfig         `yaml:"http"`
	Timings      games.Timings      `yaml:"timings"`
	Wager        WagerConfig        `yaml:"wager"`
	Availability AvailabilityConfig `yaml:"availability"`
	Identity     IdentityConfig     `yaml:"identity"`
	Fair         FairConfig         `yaml:"fair"`
	Log          LogConfig          `yaml:"log"`
}

type SettlementConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// RoundTimeout bounds a round's settlement call; zero uses the session
	// default.
	RoundTimeout time.Duration `yaml:"round_timeout"`
	UserAgent    string        `yaml:"user_agent"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WagerConfig holds the wager bounds as decimal strings; an empty Max is
// unbounded.
type WagerConfig struct {
	Min      string `yaml:"min"`
	Max      string `yaml:"max"`
	Decimals int32  `yaml:"decimals"`
}

type AvailabilityConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// Remote disables the status endpoint lookup when false; every game is
	// then enabled.
	Remote bool `yaml:"remote"`
}

type IdentityConfig struct {
	// Static pins the player identity and skips the keyring.
	Static         string `yaml:"static"`
	KeyringService string `yaml:"keyring_service"`
	FallbackPath   string `yaml:"fallback_path"`
}

// FairConfig switches round narratives to a provably fair series when
// ServerSeed is set. Each round takes the next nonce from Nonce upward.
type FairConfig struct {
	ServerSeed string `yaml:"server_seed"`
	ClientSeed string `yaml:"client_seed"`
	Nonce      uint64 `yaml:"nonce"`
}

// Enabled reports whether a fair series is configured.
func (f FairConfig) Enabled() bool { return f.ServerSeed != "" }

// Seeds converts the section into engine seeds.
func (f FairConfig) Seeds() engine.Seeds {
	return engine.Seeds{Server: f.ServerSeed, Client: f.ClientSeed}
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Settlement: SettlementConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:           "127.0.0.1:8077",
			AllowedOrigins: []string{"localhost:*", "127.0.0.1:*", "wails.localhost"},
			RequestTimeout: 30 * time.Second,
		},
		Timings: games.DefaultTimings(),
		Wager: WagerConfig{
			Min:      "1",
			Decimals: 2,
		},
		Availability: AvailabilityConfig{
			TTL:    30 * time.Second,
			Remote: true,
		},
		Identity: IdentityConfig{
			KeyringService: "arcade-session",
		},
		Fair: FairConfig{ClientSeed: "arcade"},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty; a named file must exist.
// dotenv files are loaded if present and never override variables already
// set in the process environment.
func Load(path string, dotenv ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := LoadDotEnv(dotenv...); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads each existing file into the environment.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Environment variable names.
const (
	EnvSettlementURL     = "ARCADE_SETTLEMENT_URL"
	EnvSettlementTimeout = "ARCADE_SETTLEMENT_TIMEOUT"
	EnvHTTPAddr          = "ARCADE_HTTP_ADDR"
	EnvAllowedOrigins    = "ARCADE_ALLOWED_ORIGINS"
	EnvPlayerID          = "ARCADE_PLAYER_ID"
	EnvWagerMin          = "ARCADE_WAGER_MIN"
	EnvWagerMax          = "ARCADE_WAGER_MAX"
	EnvAvailabilityTTL   = "ARCADE_AVAILABILITY_TTL"
	EnvFairServerSeed    = "ARCADE_FAIR_SERVER_SEED"
	EnvFairClientSeed    = "ARCADE_FAIR_CLIENT_SEED"
	EnvFairNonce         = "ARCADE_FAIR_NONCE"
	EnvLogLevel          = "ARCADE_LOG_LEVEL"
	EnvLogDevelopment    = "ARCADE_LOG_DEVELOPMENT"
)

// ApplyEnv overrides fields from lookup, typically os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*dst = d
		return nil
	}

	str(EnvSettlementURL, &c.Settlement.BaseURL)
	str(EnvHTTPAddr, &c.HTTP.Addr)
	str(EnvPlayerID, &c.Identity.Static)
	str(EnvWagerMin, &c.Wager.Min)
	str(EnvWagerMax, &c.Wager.Max)
	str(EnvFairServerSeed, &c.Fair.ServerSeed)
	str(EnvFairClientSeed, &c.Fair.ClientSeed)
	str(EnvLogLevel, &c.Log.Level)
	if err := dur(EnvSettlementTimeout, &c.Settlement.Timeout); err != nil {
		return err
	}
	if err := dur(EnvAvailabilityTTL, &c.Availability.TTL); err != nil {
		return err
	}
	if v, ok := lookup(EnvAllowedOrigins); ok && strings.TrimSpace(v) != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.HTTP.AllowedOrigins = origins
	}
	if v, ok := lookup(EnvFairNonce); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvFairNonce, err)
		}
		c.Fair.Nonce = n
	}
	if v, ok := lookup(EnvLogDevelopment); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvLogDevelopment, err)
		}
		c.Log.Development = b
	}
	return nil
}

// Validate rejects settings the arcade cannot run with.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Settlement.BaseURL, "http://") && !strings.HasPrefix(c.Settlement.BaseURL, "https://") {
		return fmt.Errorf("config: settlement base_url %q must be http(s)", c.Settlement.BaseURL)
	}
	if c.Settlement.Timeout <= 0 {
		return errors.New("config: settlement timeout must be positive")
	}
	if c.HTTP.Addr == "" {
		return errors.New("config: http addr is required")
	}
	if _, err := c.Wager.Rules(); err != nil {
		return err
	}
	if c.Timings.SlotsTicks < 0 {
		return errors.New("config: timings slots_ticks must not be negative")
	}
	if c.Fair.Enabled() {
		if err := c.Fair.Seeds().Valid(); err != nil {
			return fmt.Errorf("config: fair: %w", err)
		}
	}
	return nil
}

// Rules converts the wager section into validator rules.
func (w WagerConfig) Rules() (wager.Rules, error) {
	rules := wager.Rules{Decimals: w.Decimals}
	if w.Min != "" {
		d, err := decimal.NewFromString(w.Min)
		if err != nil {
			return rules, fmt.Errorf("config: wager min %q: %w", w.Min, err)
		}
		rules.Min = d
	}
	if w.Max != "" {
		d, err := decimal.NewFromString(w.Max)
		if err != nil {
			return rules, fmt.Errorf("config: wager max %q: %w", w.Max, err)
		}
		rules.Max = d
	}
	if !rules.Max.IsZero() && rules.Max.LessThan(rules.Min) {
		return rules, fmt.Errorf("config: wager max %s below min %s", rules.Max, rules.Min)
	}
	if rules.Decimals < 0 {
		return rules, errors.New("config: wager decimals must not be negative")
	}
	return rules, nil
}
