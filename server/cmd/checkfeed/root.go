package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// outputOptions are shared by every subcommand.
type outputOptions struct {
	format  string
	verbose bool
}

func (o *outputOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.format, "output", "o", outputTable, "Output format: table or json.")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Log debug output to stderr.")
}

func (o *outputOptions) validate() error {
	switch o.format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("--output %q unknown: want table or json", o.format)
	}
}

// windowOptions are the two required window bounds.
type windowOptions struct {
	start string
	end   string
}

func (o *windowOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.start, "start", "", "Window start (RFC 3339), inclusive.")
	fs.StringVar(&o.end, "end", "", "Window end (RFC 3339), inclusive.")
}

func (o *windowOptions) parse() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, o.start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
	}
	end, err = time.Parse(time.RFC3339, o.end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
	}
	return start.UTC(), end.UTC(), nil
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		if err := cmd.MarkFlagRequired(n); err != nil {
			panic(err)
		}
	}
}

func newRootCmd() *cobra.Command {
	out := &outputOptions{}
	cmd := &cobra.Command{
		Use:           "checkfeed",
		Short:         "Summarise health check results over a time window",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if out.verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return out.validate()
		},
	}
	out.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newPageCmd(out), newAggregateCmd(out))
	return cmd
}
