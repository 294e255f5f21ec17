package main

import (
	"strconv"

	"github.com/adampresley/albummirror/pkg/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

/*
renderSummary draws a two column table of result counters. Counts are
right aligned.
*/
func renderSummary(title string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Result", "Images"})

	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

func renderSyncSummary(result models.SyncResult) string {
	return renderSummary("Sync", [][]string{
		{"Downloaded", strconv.Itoa(result.Downloaded)},
		{"Skipped", strconv.Itoa(result.Skipped)},
		{"Failed", strconv.Itoa(result.Failed)},
		{"Removed", strconv.Itoa(result.Removed)},
	})
}

func renderConversionSummary(result models.ConversionResult) string {
	return renderSummary("Conversion", [][]string{
		{"Converted", strconv.Itoa(result.Converted)},
		{"Skipped", strconv.Itoa(result.Skipped)},
		{"Failed", strconv.Itoa(result.Failed)},
	})
}

func renderPublishSummary(result models.PublishResult) string {
	return renderSummary("Publish", [][]string{
		{"Uploaded", strconv.Itoa(result.Uploaded)},
		{"Skipped", strconv.Itoa(result.Skipped)},
		{"Failed", strconv.Itoa(result.Failed)},
	})
}
