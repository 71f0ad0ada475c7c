package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/checkfeed/checkfeed/pkg/types"
)

// render writes page in the requested format. The table format prints each
// cell's display value when it has one.
func render(w io.Writer, format string, cols []types.Column, page types.Page) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	for _, row := range page.Rows {
		vals := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			vals[i] = cellText(c)
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	return tw.Flush()
}

func cellText(c types.Cell) string {
	if c.DisplayValue != "" {
		return c.DisplayValue
	}
	if c.Value == nil {
		return ""
	}
	return fmt.Sprint(c.Value)
}
