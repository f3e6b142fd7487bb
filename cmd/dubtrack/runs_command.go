package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			runs, err := st.RecentRuns(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sync runs recorded")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderRunsTable(runs))
			for _, run := range runs {
				if len(run.Errors) == 0 {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s errors:\n  %s\n",
					run.ID, strings.Join(run.Errors, "\n  "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum number of runs to show")
	return cmd
}
