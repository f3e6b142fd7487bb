package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubtrack/internal/catalog"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var seasonFlag string
	var yearFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked titles for a season with their dub status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
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
			currentSeason, currentYear := catalog.CurrentSeason(time.Now())
			if !season.Valid() {
				season = currentSeason
			}
			year := yearFlag
			if year == 0 {
				year = currentYear
			}

			entities, err := st.EntitiesBySeason(cmd.Context(), season, year)
			if err != nil {
				return err
			}
			if len(entities) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no titles tracked for %s %d\n", season, year)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSeasonTable(entities))
			return nil
		},
	}
	cmd.Flags().StringVar(&seasonFlag, "season", "", "Season to list (winter, spring, summer, fall)")
	cmd.Flags().IntVar(&yearFlag, "year", 0, "Year of the season to list")
	return cmd
}
