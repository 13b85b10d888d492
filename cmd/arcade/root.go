package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/api"
	"github.com/MJE43/arcade-session-go/internal/app"
	"github.com/MJE43/arcade-session-go/internal/config"
	"github.com/MJE43/arcade-session-go/internal/engine"
	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/identity"
	"github.com/MJE43/arcade-session-go/internal/logging"
	"github.com/MJE43/arcade-session-go/internal/session"
)

type rootFlags struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "arcade",
		Short:         "Arcade game sessions over a local HTTP and websocket API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before ARCADE_* overrides")

	root.AddCommand(
		newServeCmd(flags),
		newGamesCmd(flags),
		newPlayerCmd(flags),
		newReplayCmd(),
		newVersionCmd(),
	)
	return root
}

func (f *rootFlags) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.configPath, f.envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local arcade API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub(logger)
	a, err := app.New(cfg, logger, app.Options{Sinks: []session.Sink{hub}})
	if err != nil {
		return err
	}
	if err := a.Bootstrap(ctx); err != nil {
		logger.Warn("starting without a balance", zap.Error(err))
	}

	srv := api.NewServer(a.Arcade, hub, api.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr), zap.String("version", api.EngineVersion))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return a.Shutdown(shutdownCtx)
}

func newGamesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List games and their availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENABLED\tMESSAGE")
			for _, g := range a.Arcade.Games(cmd.Context()) {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", g.ID, g.Name, g.Enabled, g.MaintenanceMessage)
			}
			return tw.Flush()
		},
	}
}

func newPlayerCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Manage the stored player identity",
	}
	store := func() (*identity.KeyringStore, error) {
		cfg, _, err := flags.load()
		if err != nil {
			return nil, err
		}
		return identity.NewKeyringStore(cfg.Identity.KeyringService, cfg.Identity.FallbackPath), nil
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <id>",
			Short: "Store the player identity in the OS keyring",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := store()
				if err != nil {
					return err
				}
				return s.SetIdentity(args[0])
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the stored player identity",
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := store()
				if err != nil {
					return err
				}
				return s.Clear()
			},
		},
	)
	return cmd
}

type replayOutput struct {
	Game      games.Kind      `json:"game"`
	Nonce     uint64          `json:"nonce"`
	Narrative games.Narrative `json:"narrative"`
	// Mines is the full layout; the narrative hides it until a round ends.
	Mines []int `json:"mines,omitempty"`
}

func newReplayCmd() *cobra.Command {
	var (
		seeds engine.Seeds
		nonce uint64
		mines int
	)
	cmd := &cobra.Command{
		Use:   "replay <game>",
		Short: "Regenerate a fair round from its seeds and nonce",
		Long: "Regenerate the narrative a fair series drew for one round. Wheel " +
			"rotation is reported from zero; the segment does not depend on it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := games.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := seeds.Valid(); err != nil {
				return err
			}
			n, err := games.Generate(kind, engine.NewFairSource(seeds, nonce), games.Options{MineCount: mines})
			if err != nil {
				return err
			}
			out := replayOutput{Game: kind, Nonce: nonce, Narrative: n}
			if m, ok := n.(*games.MinesNarrative); ok {
				out.Mines = m.Mines
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&seeds.Server, "server-seed", "", "server seed of the series")
	cmd.Flags().StringVar(&seeds.Client, "client-seed", "arcade", "client seed of the series")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "round nonce")
	cmd.Flags().IntVar(&mines, "mines", 0, "mine count for mining rounds (default 3)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			v := api.GetVersionInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "%s (commit %s, built %s)\n", v.EngineVersion, v.GitCommit, v.BuildTime)
		},
	}
}
