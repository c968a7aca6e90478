package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(resetCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in, reusing stored cookies when they are still valid.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := getGlobals(cmd.Context())
		s, release, err := openSession(cmd.Context(), g.cfg)
		if err != nil {
			return err
		}
		defer release()

		err = s.Login(cmd.Context())
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", g.cfg.Username, s.State())
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discards every stored cookie and logs in from scratch.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := getGlobals(cmd.Context())
		s, release, err := openSession(cmd.Context(), g.cfg)
		if err != nil {
			return err
		}
		defer release()

		err = s.Reset(cmd.Context())
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session reset for %s (%s)\n", g.cfg.Username, s.State())
		return nil
	},
}
