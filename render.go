package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// printBundle writes a result bundle for a terminal: the summary, the SQL
// and result table when present, then the follow-up questions.
func printBundle(w io.Writer, b *models.ResultBundle) {
	fmt.Fprintln(w, b.Summary)

	if b.SQL != "" {
		fmt.Fprintf(w, "\nSQL: %s\n", b.SQL)
	}
	if b.Cached {
		fmt.Fprintln(w, "(answered from cache)")
	}

	if len(b.Results) > 0 && len(b.Columns) > 0 {
		fmt.Fprintln(w)
		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
		table.SetAutoFormatHeaders(false)
		table.SetBorder(true)
		table.SetHeader(b.Columns)
		for _, row := range b.Results {
			cells := make([]string, len(b.Columns))
			for i, col := range b.Columns {
				cells[i] = formatValue(row[col])
			}
			table.Append(cells)
		}
		table.Render()
	}

	if len(b.FollowUps) > 0 {
		fmt.Fprintln(w, "\nYou could also ask:")
		for _, q := range b.FollowUps {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
