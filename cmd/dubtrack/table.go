package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dubtrack/internal/catalog"
	"dubtrack/internal/store"
)

func newTableWriter(headers table.Row, rightColumns ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(headers)
	configs := make([]table.ColumnConfig, 0, len(rightColumns))
	for _, number := range rightColumns {
		configs = append(configs, table.ColumnConfig{
			Number:      number,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

// renderRunsTable lays out sync run records, newest first.
func renderRunsTable(runs []store.SyncRun) string {
	tw := newTableWriter(
		table.Row{"Started", "Job", "Status", "Added", "Updated", "Errors", "Duration"},
		4, 5, 6, 7)
	for _, run := range runs {
		tw.AppendRow(table.Row{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(run.JobType),
			string(run.Status),
			run.Added,
			run.Updated,
			len(run.Errors),
			formatRunDuration(run),
		})
	}
	return tw.Render()
}

func formatRunDuration(run store.SyncRun) string {
	if run.CompletedAt.IsZero() {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

// renderSeasonTable lays out one season bucket with its dub columns.
func renderSeasonTable(entities []catalog.Entity) string {
	tw := newTableWriter(
		table.Row{"ID", "Title", "State", "Episodes", "Dub", "Confidence", "Platforms"},
		1, 4, 6)
	for _, entity := range entities {
		tw.AppendRow(table.Row{
			entity.ExternalID,
			entity.DisplayTitle(),
			string(entity.State),
			formatEpisodes(entity),
			formatDubStatus(entity),
			formatDubConfidence(entity),
			formatPlatforms(entity.DubPlatforms),
		})
	}
	return tw.Render()
}

func formatEpisodes(entity catalog.Entity) string {
	total := "?"
	if entity.TotalEpisodes > 0 {
		total = strconv.Itoa(entity.TotalEpisodes)
	}
	return strconv.Itoa(entity.EpisodesObserved) + "/" + total
}

// formatDubStatus distinguishes "never resolved" from an explicit no.
func formatDubStatus(entity catalog.Entity) string {
	if entity.DubResolvedAt.IsZero() {
		return "?"
	}
	if entity.HasDub {
		return "yes"
	}
	return "no"
}

func formatDubConfidence(entity catalog.Entity) string {
	if entity.DubResolvedAt.IsZero() {
		return "-"
	}
	return strconv.Itoa(entity.DubConfidence)
}

func formatPlatforms(platforms []string) string {
	if len(platforms) == 0 {
		return "-"
	}
	return strings.Join(platforms, ", ")
}
