package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mealassist-backend/internal/auth"
	"mealassist-backend/internal/components/chrono"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/requestchain"
	"mealassist-backend/internal/session"

	"github.com/spf13/cobra"
)

var keepaliveSchedule string

func init() {
	keepaliveCmd.Flags().StringVar(&keepaliveSchedule, "schedule", "@every 6h", "The cron schedule to refresh the session on.")
	rootCmd.AddCommand(keepaliveCmd)
}

// refresh makes one authenticated request so the stored cookies stay fresh,
// a session the server no longer accepts is replaced by a new login.
func refresh(ctx context.Context, s *session.Session) error {
	err := s.Login(ctx)
	if errors.Is(err, auth.ErrCsrf) {
		// an expired stored cookie lands on the login page instead of the app
		slog.Info("stored session rejected, logging in again")
		return s.Reset(ctx)
	}
	if err != nil {
		return err
	}
	_, err = s.GetMealPlan(ctx)
	var rejected *requestchain.UpstreamRejected
	if errors.As(err, &rejected) && rejected.Status == http.StatusUnauthorized {
		slog.Info("stored session expired, logging in again")
		return s.Reset(ctx)
	}
	return err
}

var keepaliveCmd = &cobra.Command{
	Use:   "keepalive [--schedule <cron spec>]",
	Short: "Keeps the stored session alive by refreshing it on a schedule.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := getGlobals(cmd.Context())
		s, release, err := openSession(cmd.Context(), g.cfg)
		if err != nil {
			return err
		}
		defer release()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = refresh(ctx, s)
		if err != nil {
			return fmt.Errorf("keepalive: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session for %s is alive, refreshing on %q\n", g.cfg.Username, keepaliveSchedule)

		cron := chrono.NewCron(time.Local, telemetry.SlogAPI{})
		err = cron.Schedule(keepaliveSchedule, func() {
			err := refresh(ctx, s)
			if err != nil {
				slog.Warn("failed to refresh session", "err", err)
			}
		})
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		cron.Start()

		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cron.Stop(stopCtx)
	},
}
