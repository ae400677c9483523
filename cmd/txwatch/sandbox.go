package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/securebank/txwatch/internal/ingestion"
	"github.com/securebank/txwatch/internal/logger"
	"github.com/securebank/txwatch/internal/repository"
	"github.com/securebank/txwatch/internal/sandbox"
)

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local fraud-scoring service for development",
		Long: `sandbox serves the fraud API endpoints the watcher polls, backed by SQLite.
Transfers at or above the amount threshold are held as SUSPICIOUS until an
analyst reviews them with PUT /api/v1/transaction/review/{id}.`,
		RunE: runSandbox,
	}

	cmd.Flags().String("addr", ":8000", "listen address")
	cmd.Flags().String("db", "sandbox.db", "SQLite database path")
	cmd.Flags().String("seed", "testdata/transactions.json", "seed file loaded into an empty database")

	_ = viper.BindPFlag("sandbox.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("sandbox.db_path", cmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("sandbox.seed_file", cmd.Flags().Lookup("seed"))

	return cmd
}

func runSandbox(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.Component(logger.FromContext(ctx), "sandbox")

	log.Info().Str("path", cfg.Sandbox.DBPath).Msg("initializing database")
	db, err := repository.InitDB(cfg.Sandbox.DBPath)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer db.Close()

	repo := repository.NewTransactionRepo(db)
	scorer := sandbox.Scorer{Threshold: cfg.Sandbox.AmountThreshold}

	if _, err := ingestion.NewService(repo, scorer, log).SeedIfEmpty(cfg.Sandbox.SeedFile); err != nil {
		log.Warn().Err(err).Msg("failed to seed transactions")
	}

	srv := &http.Server{
		Addr:              cfg.Sandbox.Addr,
		Handler:           sandbox.NewRouter(repo, log, sandbox.WithScorer(scorer)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Sandbox.Addr).
		Str("amount_threshold", cfg.Sandbox.AmountThreshold.String()).
		Msg("fraud sandbox listening")

	return listenAndServe(ctx, srv, log)
}
