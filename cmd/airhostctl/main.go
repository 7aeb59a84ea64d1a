// Command airhostctl is the operator CLI for the Airhost API: schema
// migrations, test data, WhatsApp credential checks and dev tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/config"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/store"
)

// app carries what the subcommands share. cfg and the store are resolved on
// first use so that commands like gen-verify-token need no environment.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	// openStore is replaced in tests.
	openStore func(ctx context.Context, cfg *config.Config) (store.DataStore, error)
}

func main() {
	if err := newRootCmd(&app{openStore: openStore}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "airhostctl",
		Short:         "Operate an Airhost API deployment",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(level).
				With().
				Timestamp().
				Logger()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newCheckPropertyCmd(a),
		newWhatsAppCmd(a),
		newTokenCmd(a),
		newGenVerifyTokenCmd(),
		newSendCmd(a),
	)
	return root
}

// config loads the environment once.
func (a *app) config() *config.Config {
	if a.cfg == nil {
		a.cfg = config.Load()
	}
	return a.cfg
}

// store opens the configured database. The caller closes it.
func (a *app) store(ctx context.Context) (store.DataStore, error) {
	return a.openStore(ctx, a.config())
}

// openStore mirrors the server: PostgreSQL when DATABASE_URL is set,
// the local SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.DataStore, error) {
	if cfg.DatabaseURL == "" {
		db, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return db, nil
	}
	db, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}
