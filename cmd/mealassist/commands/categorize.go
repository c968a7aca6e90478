package commands

import (
	"strings"

	"mealassist-backend/internal/category"
	"mealassist-backend/internal/submission"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(categorizeCmd)
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <text...>",
	Short: "Shows how a list would be split and categorized, without sending anything.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		classifier := category.DefaultClassifier()

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Item", "Category", "Id"})
		for _, segment := range submission.SplitQuery(strings.Join(args, " ")) {
			id := classifier.Classify(segment)
			t.AppendRow(table.Row{segment, category.Name(category.DefaultTable, id), id})
		}
		t.Render()
	},
}
