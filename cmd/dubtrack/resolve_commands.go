package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dubtrack/internal/catalog"
	"dubtrack/internal/dub"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <external-id>",
		Short: "Resolve dub status for one tracked title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			externalID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid external id %q", args[0])
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			entity, err := st.FindEntity(cmd.Context(), externalID)
			if err != nil {
				return err
			}
			if entity == nil {
				return fmt.Errorf("entity %d is not tracked; run a season sync first", externalID)
			}
			resolver, err := ctx.ensureResolver()
			if err != nil {
				return err
			}
			verdict, err := resolver.Resolve(cmd.Context(), *entity)
			if err != nil {
				return err
			}
			printVerdict(cmd, *entity, verdict)
			return nil
		},
	}
}

func newBatchResolveCommand(ctx *commandContext) *cobra.Command {
	var workersFlag int

	cmd := &cobra.Command{
		Use:   "batch-resolve",
		Short: "Resolve dub status for every ongoing title",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			entities, err := st.EntitiesByState(cmd.Context(), catalog.StateOngoing)
			if err != nil {
				return err
			}
			if len(entities) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no ongoing titles tracked")
				return nil
			}
			resolver, err := ctx.ensureResolver()
			if err != nil {
				return err
			}
			results := resolver.ResolveBatch(cmd.Context(), entities, workersFlag)
			failures := 0
			for i, result := range results {
				if result.Err != nil {
					failures++
					continue
				}
				printVerdict(cmd, entities[i], result.Verdict)
			}
			if failures > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d items failed to persist\n", failures, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Concurrent resolution workers (default from config)")
	return cmd
}

func printVerdict(cmd *cobra.Command, entity catalog.Entity, verdict dub.Verdict) {
	status := "no dub"
	if verdict.HasDub {
		status = "dubbed"
	}
	platforms := "-"
	if len(verdict.Platforms) > 0 {
		platforms = strings.Join(verdict.Platforms, ", ")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s: %s (confidence %d, platforms: %s, sources: %s)\n",
		entity.ExternalID, entity.DisplayTitle(), status, verdict.Confidence,
		platforms, strings.Join(verdict.Sources, ","))
}
