package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/checkfeed/checkfeed/pkg/types"
)

type pageOptions struct {
	server  string
	timeout time.Duration
	window  windowOptions
}

func (o *pageOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.server, "server", "http://localhost:8080", "Base URL of the checkfeed server.")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "Request timeout.")
	o.window.BindFlags(fs)
}

func newPageCmd(out *outputOptions) *cobra.Command {
	opts := &pageOptions{}
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Fetch the page for a window from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd.Context(), cmd.OutOrStdout(), opts, out)
		},
	}
	opts.BindFlags(cmd.Flags())
	markRequired(cmd, "start", "end")
	return cmd
}

func runPage(ctx context.Context, w io.Writer, opts *pageOptions, out *outputOptions) error {
	start, end, err := opts.window.parse()
	if err != nil {
		return err
	}
	base, err := url.Parse(opts.server)
	if err != nil {
		return fmt.Errorf("--server: %w", err)
	}
	client := &http.Client{Timeout: opts.timeout}

	var cols []types.Column
	if err := getJSON(ctx, client, base.JoinPath("api", "v1", "columns"), &cols); err != nil {
		return err
	}

	u := base.JoinPath("api", "v1", "page")
	q := u.Query()
	q.Set("start", start.Format(time.RFC3339Nano))
	q.Set("end", end.Format(time.RFC3339Nano))
	u.RawQuery = q.Encode()

	var page types.Page
	if err := getJSON(ctx, client, u, &page); err != nil {
		return err
	}
	slog.Debug("checkfeed: page fetched", "rows", len(page.Rows))
	return render(w, out.format, cols, page)
}

// getJSON performs one GET against the server and decodes the JSON body.
func getJSON(ctx context.Context, client *http.Client, u *url.URL, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("get %s: status %d: %s", u.Path, resp.StatusCode, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("get %s: decode: %w", u.Path, err)
	}
	return nil
}
