package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"mealassist-backend/internal/components/telemetry"

	"github.com/spf13/cobra"
)

type ctxKey struct{}

type globals struct {
	cfg       Config
	telemetry telemetry.Telemetry
	otlp      bool
}

func getGlobals(ctx context.Context) *globals {
	return ctx.Value(ctxKey{}).(*globals)
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mealassist",
	Short:         "mealassist adds groceries to your meal planner shopping list.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		telemetry.InitSlog(cfg.Verbose)

		g := &globals{cfg: cfg}
		if cfg.Telemetry.Enabled() {
			g.telemetry, err = telemetry.Setup(cmd.Context(), "mealassist", cfg.Telemetry)
			if err != nil {
				return fmt.Errorf("setup telemetry: %w", err)
			}
			g.otlp = true
		}
		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, g))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		g := getGlobals(cmd.Context())
		if !g.otlp {
			return nil
		}
		err := g.telemetry.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mealassist.json5", "The configuration file to read.")
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
