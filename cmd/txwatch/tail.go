package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/logger"
)

func tailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Watch one customer's transfers and print notifications as they arrive",
		RunE:  runTail,
	}

	cmd.Flags().String("user", "", "customer user id to watch")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runTail(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	userID, _ := cmd.Flags().GetString("user")

	watcher := newWatcher(log)
	defer watcher.Logout()

	session, err := watcher.Login(userID)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	ch, cancel := session.Notifications().Subscribe(16)
	defer cancel()

	out := cmd.OutOrStdout()
	printed := make(map[string]bool)

	// Anything recorded before the subscription, oldest first.
	existing := session.Notifications().List()
	for i := len(existing) - 1; i >= 0; i-- {
		printNotification(out, existing[i])
		printed[existing[i].ID] = true
	}

	log.Info().Str("user_id", session.UserID()).Dur("interval", cfg.Poll.Interval).Msg("watching transfers")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, open := <-ch:
			if !open {
				return nil
			}
			if printed[n.ID] {
				continue
			}
			printed[n.ID] = true
			printNotification(out, n)
		}
	}
}

func printNotification(w io.Writer, n domain.Notification) {
	fmt.Fprintf(w, "%s  [%s] %s: %s\n", n.CreatedAt.Format("15:04:05"), n.Kind, n.Title, n.Message)
}
