package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Prints the current meal plan as JSON.",
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
		plan, err := s.GetMealPlan(cmd.Context())
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}

		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")
		return out.Encode(plan)
	},
}
