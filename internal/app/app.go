// Package app assembles an arcade from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/api"
	"github.com/MJE43/arcade-session-go/internal/availability"
	"github.com/MJE43/arcade-session-go/internal/config"
	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/identity"
	"github.com/MJE43/arcade-session-go/internal/session"
	"github.com/MJE43/arcade-session-go/internal/settle"
	"github.com/MJE43/arcade-session-go/internal/wager"
)

// App holds the long-lived collaborators of one arcade.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Client       *settle.Client
	Availability *availability.Checker
	// Keyring is nil when the identity is pinned by configuration.
	Keyring *identity.KeyringStore
	// Fair is set when rounds are drawn from a provably fair series.
	Fair   *engine.FairSeries
	Arcade *session.Arcade
}

// Options carries the parts a shell supplies itself.
type Options struct {
	// Sinks receive every session's balance updates and notifications.
	Sinks []session.Sink
	// Scheduler defaults to the real clock. Random defaults to the configured
	// fair series, or crypto/rand without one.
	Scheduler session.Scheduler
	Random    engine.RandomSource
}

// New builds the settlement client, identity, availability cache and arcade.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules, err := cfg.Wager.Rules()
	if err != nil {
		return nil, err
	}

	userAgent := cfg.Settlement.UserAgent
	if userAgent == "" {
		userAgent = api.UserAgent()
	}
	client := settle.NewClient(settle.Config{
		BaseURL:   cfg.Settlement.BaseURL,
		Timeout:   cfg.Settlement.Timeout,
		UserAgent: userAgent,
	})

	a := &App{Config: cfg, Logger: logger, Client: client}

	var ids identity.Provider
	if cfg.Identity.Static != "" {
		ids = identity.Static(cfg.Identity.Static)
	} else {
		a.Keyring = identity.NewKeyringStore(cfg.Identity.KeyringService, cfg.Identity.FallbackPath)
		ids = a.Keyring
	}

	var src availability.Source = availability.AllEnabled()
	if cfg.Availability.Remote {
		src = client
	}
	a.Availability = availability.New(src, cfg.Availability.TTL, logger.Named("availability"))

	random := opts.Random
	if random == nil && cfg.Fair.Enabled() {
		series, err := engine.NewFairSeries(cfg.Fair.Seeds(), cfg.Fair.Nonce)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.Fair = series
		random = series
	}

	sinks := append([]session.Sink{session.LogSink{Logger: logger.Named("sink")}}, opts.Sinks...)
	a.Arcade = session.NewArcade(session.Deps{
		Validator:     wager.NewValidator(rules),
		Settler:       client,
		Ledger:        client,
		Availability:  a.Availability,
		Identity:      ids,
		Sink:          session.Tee(sinks...),
		Scheduler:     opts.Scheduler,
		Random:        random,
		Timings:       cfg.Timings,
		SettleTimeout: cfg.Settlement.RoundTimeout,
		Logger:        logger,
	})

	logger.Info("arcade ready",
		zap.String("settlement", client.BaseURL()),
		zap.Bool("remote_availability", cfg.Availability.Remote),
		zap.Bool("keyring_identity", a.Keyring != nil),
		zap.Bool("fair", a.Fair != nil),
	)
	return a, nil
}

// Bootstrap loads the starting balance. A player without an identity yet
// is not an error.
func (a *App) Bootstrap(ctx context.Context) error {
	if _, err := a.Arcade.RefreshBalance(ctx); err != nil {
		if errors.Is(err, session.ErrNoIdentity) {
			a.Logger.Info("no player identity yet, balance not loaded")
			return nil
		}
		return fmt.Errorf("app: bootstrap balance: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight settlements.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Arcade.Shutdown(ctx)
	_ = a.Logger.Sync()
	return err
}
