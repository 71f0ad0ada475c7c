package upstream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/checkfeed/checkfeed/pkg/types"
	"github.com/checkfeed/checkfeed/server/internal/config"
	"github.com/checkfeed/checkfeed/server/internal/metrics"
)

// ErrUnavailable is wrapped by every error the client returns.
var ErrUnavailable = errors.New("upstream: unavailable")

// maxBodyBytes caps how much of a response is decoded.
const maxBodyBytes = 64 << 20

// Element identifies one element on the management system.
type Element struct {
	DataMinerID int    `json:"dataminer_id"`
	ElementID   int    `json:"element_id"`
	Name        string `json:"name"`
	State       string `json:"state"`
}

// Key returns the "dma/element" form used in logs.
func (e Element) Key() string {
	return strconv.Itoa(e.DataMinerID) + "/" + strconv.Itoa(e.ElementID)
}

type elementsResponse struct {
	Elements []Element `json:"elements"`
}

// Client talks to the management system's REST API.
type Client struct {
	cfg     config.UpstreamConfig
	base    *url.URL
	http    *http.Client
	metrics *metrics.Metrics
}

// New returns a Client for cfg. m may be nil.
func New(cfg config.UpstreamConfig, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse endpoint: %w", err)
	}
	hc, err := buildHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("upstream: build http client: %w", err)
	}
	return &Client{cfg: cfg, base: base, http: hc, metrics: m}, nil
}

// Elements lists the elements running the configured protocol.
func (c *Client) Elements(ctx context.Context) ([]Element, error) {
	u := c.base.JoinPath("api", "v1", "elements")
	q := u.Query()
	q.Set("protocol", c.cfg.Protocol.Name)
	q.Set("version", c.cfg.Protocol.Version)
	q.Set("include_stopped", strconv.FormatBool(c.cfg.IncludeStopped))
	u.RawQuery = q.Encode()

	var resp elementsResponse
	if err := c.getJSON(ctx, "elements", u, &resp); err != nil {
		return nil, err
	}
	return resp.Elements, nil
}

// Table fetches the configured results table of el. The first column is the
// table's index column, followed by the configured columns in order.
func (c *Client) Table(ctx context.Context, el Element) (*types.Table, error) {
	u := c.base.JoinPath("api", "v1", "elements",
		strconv.Itoa(el.DataMinerID), strconv.Itoa(el.ElementID),
		"tables", strconv.Itoa(c.cfg.Table.ParameterID))
	q := u.Query()
	if c.cfg.Table.ForceFullTable {
		q.Add("filter", "ForceFullTable=true")
	}
	if len(c.cfg.Table.Columns) > 0 {
		ids := make([]string, len(c.cfg.Table.Columns))
		for i, id := range c.cfg.Table.Columns {
			ids[i] = strconv.Itoa(id)
		}
		q.Add("filter", "columns="+strings.Join(ids, ","))
	}
	u.RawQuery = q.Encode()

	var table *types.Table
	if err := c.getJSON(ctx, "table", u, &table); err != nil {
		return nil, err
	}
	if table == nil || table.Columns == nil {
		return nil, fmt.Errorf("%w: table: element %s returned no table", ErrUnavailable, el.Key())
	}
	return table, nil
}

// getJSON performs one GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, op string, u *url.URL, v any) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveUpstream(op, err, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %s: build request: %w", ErrUnavailable, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: http get: %w", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", ErrUnavailable, op, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: decode body: %w", ErrUnavailable, op, err)
	}
	return nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the upstream auth and TLS settings.
func buildHTTPClient(cfg config.UpstreamConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if cfg.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(cfg.Auth.CertFile, cfg.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultUpstreamTimeout
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
			auth: cfg.Auth,
		},
		Timeout: timeout,
	}, nil
}
