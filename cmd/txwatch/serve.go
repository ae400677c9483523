package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/securebank/txwatch/internal/api"
	"github.com/securebank/txwatch/internal/fraudapi"
	"github.com/securebank/txwatch/internal/logger"
	"github.com/securebank/txwatch/internal/notification"
	"github.com/securebank/txwatch/internal/scheduler"
	"github.com/securebank/txwatch/internal/watch"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher behind the customer app API",
		RunE:  runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("poll-interval", "10s", "poll interval (seconds or duration)")

	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("poll.interval", cmd.Flags().Lookup("poll-interval"))

	return cmd
}

// newWatcher builds the engine from the loaded config.
func newWatcher(log zerolog.Logger) *watch.Watcher {
	client := fraudapi.NewClient(cfg.API.BaseURL, &http.Client{Timeout: cfg.API.Timeout})
	sched := scheduler.New(
		logger.Component(log, "scheduler"),
		scheduler.WithInterval(cfg.Poll.Interval),
		scheduler.WithFetchTimeout(cfg.Poll.FetchTimeout),
	)
	return watch.NewWatcher(client, client, sched, logger.Component(log, "watch"),
		notification.WithLimit(cfg.Notifications.Limit))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	watcher := newWatcher(log)
	defer watcher.Logout()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(watcher, logger.Component(log, "api")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("fraud_api", cfg.API.BaseURL).
		Dur("poll_interval", cfg.Poll.Interval).
		Msg("txwatch listening")

	return listenAndServe(ctx, srv, log)
}

// listenAndServe runs srv until ctx is cancelled, then drains it.
func listenAndServe(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
