package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/checkfeed/checkfeed/pkg/types"
	"github.com/checkfeed/checkfeed/server/internal/aggregate"
	"github.com/checkfeed/checkfeed/server/internal/feed"
)

type aggregateOptions struct {
	file     string
	timezone string
	window   windowOptions
}

func (o *aggregateOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.file, "file", "f", "", "Results table as JSON ({\"columns\": [...]}), or - for stdin.")
	fs.StringVar(&o.timezone, "timezone", "Local", "IANA time zone the result dates were recorded in.")
	o.window.BindFlags(fs)
}

func newAggregateCmd(out *outputOptions) *cobra.Command {
	opts := &aggregateOptions{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate an exported results table offline",
		Long: "Aggregate an exported results table offline.\n\n" +
			"The file holds the seven table columns in the same JSON form the\n" +
			"management system returns: index, name, result, failure rate,\n" +
			"result date (OLE Automation date), success count, failure count.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd.InOrStdin(), cmd.OutOrStdout(), opts, out)
		},
	}
	opts.BindFlags(cmd.Flags())
	markRequired(cmd, "file", "start", "end")
	return cmd
}

func runAggregate(stdin io.Reader, w io.Writer, opts *aggregateOptions, out *outputOptions) error {
	start, end, err := opts.window.parse()
	if err != nil {
		return err
	}
	loc, err := loadLocation(opts.timezone)
	if err != nil {
		return err
	}

	var r io.Reader = stdin
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("open table: %w", err)
		}
		defer f.Close()
		r = f
	}

	var table types.Table
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}

	page, stats, err := feed.BuildPage(table.Columns, aggregate.Window{Start: start, End: end}, loc)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", opts.file, err)
	}
	if stats.Skipped > 0 {
		slog.Warn("checkfeed: skipped rows with invalid result dates", "skipped", stats.Skipped, "rows", stats.Rows)
	}
	return render(w, out.format, feed.Columns(), page)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("--timezone: %w", err)
	}
	return loc, nil
}
