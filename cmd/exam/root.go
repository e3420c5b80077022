package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/database"
	"github.com/stemsi/exstem-attempt/internal/kvstore"
	"github.com/stemsi/exstem-attempt/internal/logger"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:           "exam",
	Short:         "Take ExStem exams from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "Draft store: memory, sqlite or redis (overrides DRAFT_STORE)")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite draft database (overrides SQLITE_PATH)")

	rootCmd.AddCommand(takeCmd)
}

// loadConfig applies the persistent flags on top of the environment.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if s, _ := cmd.Flags().GetString("store"); s != "" {
		cfg.DraftStore = s
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.SQLitePath = p
	}
	return cfg
}

// newLogger writes to stderr, pretty when stderr is a terminal.
func newLogger(cfg *config.Config) zerolog.Logger {
	format := cfg.LogFormat
	if term.IsTerminal(int(os.Stderr.Fd())) {
		format = "pretty"
	}
	return logger.New(os.Stderr, cfg.LogLevel, format)
}

// openDraftStore opens the configured local draft store. The returned func
// releases it.
func openDraftStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (kvstore.Store, func(), error) {
	switch cfg.DraftStore {
	case config.DraftStoreMemory:
		return kvstore.NewMemoryStore(), func() {}, nil

	case config.DraftStoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewRedisStore(rdb, 0), func() { rdb.Close() }, nil

	case config.DraftStoreSQLite:
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := kvstore.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown draft store %q", cfg.DraftStore)
	}
}
