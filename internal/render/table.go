package render

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"audiogen/internal/api"
	"audiogen/internal/reconcile"
)

// Alignment sets a column's horizontal alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// RenderTable draws a rounded table. Short rows are padded.
func RenderTable(headers []string, rows [][]string, aligns []Alignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			WidthMax:         60,
			WidthMaxEnforcer: text.WrapSoft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// ResultsTable renders completed items in list order.
func ResultsTable(items []api.CompletedItem, now time.Time) string {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.Prompt,
			ModelLabel(item.Model),
			RelativeTime(item.CreatedAt, now),
			ParamSummary(item.Parameters),
			item.AudioRef,
		})
	}
	return RenderTable(
		[]string{"#", "Prompt", "Model", "Created", "Parameters", "Audio"},
		rows,
		[]Alignment{AlignRight},
	)
}

// QueueTable renders in-flight jobs head first.
func QueueTable(entries []reconcile.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Position),
			e.Prompt,
			strconv.Itoa(e.Percent()) + "%",
		})
	}
	return RenderTable([]string{"Pos", "Prompt", "Progress"}, rows, []Alignment{AlignRight, AlignLeft, AlignRight})
}

// ParamsTable renders one parameter per row.
func ParamsTable(params api.Params) string {
	rows := make([][]string, 0, len(params))
	for _, p := range params {
		rows = append(rows, []string{p.Name, api.FormatValue(p.Value)})
	}
	return RenderTable([]string{"Parameter", "Value"}, rows, []Alignment{AlignLeft, AlignRight})
}
