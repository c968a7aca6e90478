package commands

import (
	"fmt"
	"strings"

	"mealassist-backend/internal/submission"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(itemCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <text...>",
	Short: `Adds every item of a list like "milk, eggs and bread" to the grocery list.`,
	Args:  cobra.MinimumNArgs(1),
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
		report, err := s.SubmitQuery(cmd.Context(), strings.Join(args, " "))
		renderResults(cmd.OutOrStdout(), report.Results)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		return nil
	},
}

var itemCmd = &cobra.Command{
	Use:   "item <text>",
	Short: "Adds the text to the grocery list as a single item.",
	Args:  cobra.MinimumNArgs(1),
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
		result, err := s.SubmitItem(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("item: %w", err)
		}
		renderResults(cmd.OutOrStdout(), []submission.Result{result})
		return nil
	},
}
