package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubtrack/internal/catalog"
	"dubtrack/internal/store"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run catalog synchronization jobs",
	}
	syncCmd.AddCommand(newSeasonSyncCommand(ctx))
	syncCmd.AddCommand(newDailyUpdateCommand(ctx))
	return syncCmd
}

func newSeasonSyncCommand(ctx *commandContext) *cobra.Command {
	var seasonFlag string
	var yearFlag int

	cmd := &cobra.Command{
		Use:   "season",
		Short: "Sync one season's catalog (defaults to the current season)",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.ensureOrchestrator()
			if err != nil {
				return err
			}
			var season catalog.Season
			if strings.TrimSpace(seasonFlag) != "" {
				season, err = catalog.ParseSeason(seasonFlag)
				if err != nil {
					return err
				}
			}
			run, err := orch.SeasonSync(cmd.Context(), season, yearFlag)
			if run != nil {
				printRunSummary(cmd, run)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&seasonFlag, "season", "", "Season to sync (winter, spring, summer, fall)")
	cmd.Flags().IntVar(&yearFlag, "year", 0, "Year of the season to sync")
	return cmd
}

func newDailyUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Refresh ongoing entities and promote finished ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.ensureOrchestrator()
			if err != nil {
				return err
			}
			run, err := orch.DailyUpdate(cmd.Context())
			if run != nil {
				printRunSummary(cmd, run)
			}
			return err
		},
	}
}

func printRunSummary(cmd *cobra.Command, run *store.SyncRun) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: added=%d updated=%d errors=%d\n",
		run.JobType, run.Status, run.Added, run.Updated, len(run.Errors))
	for _, message := range run.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", message)
	}
}
