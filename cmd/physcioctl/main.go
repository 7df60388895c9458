package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/claude/physcio/internal/config"
	"github.com/claude/physcio/internal/content"
	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/storage"
	"github.com/claude/physcio/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "physcioctl",
	Short: "Administer a Physcio installation",
	Long: `physcioctl works directly against the configured storage backend.

It covers the admin tasks of the web dashboard (users, premium status,
messages, programs, content) plus schema migrations and legacy imports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(programCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is the set of services a command runs against.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	store   storage.Store
	tracker *tracker.Service
	content *content.Service
}

func (e *env) Close() {
	_ = e.store.Close()
}

// openEnv loads the config and opens storage. Commands log to stderr so
// stdout stays scriptable.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	dsn := ""
	if cfg.Storage.Backend == storage.BackendHosted {
		dsn = cfg.Database.DSN()
	}
	store, err := storage.Open(ctx, cfg.Storage.Backend, dsn, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	m := metrics.NewManager("physcio", "ctl", metrics.SetupPrometheus())
	return &env{
		cfg:     cfg,
		log:     log,
		store:   store,
		tracker: tracker.New(store, cfg.Program.SessionsPerWeek, m, log),
		content: content.New(store, cfg.Content.CacheSeconds, m, log),
	}, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
