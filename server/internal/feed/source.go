package feed

import (
	"context"
	"errors"
		"sync/atomic"
	"time"

	"github.com/checkfeed/checkfeed/pkg/types"
	"github.com/checkfeed/checkfeed/server/internal/aggregate"
	"github.com/checkfeed/checkfeed/server/internal/logging"
	"github.com/checkfeed/checkfeed/server/internal/metrics"
	"github.com/checkfeed/checkfeed/server/internal/upstream"
)

// Client is the subset of the upstream client a Source needs.
type Client interface {
	Elements(ctx context.Context) ([]upstream.Element, error)
	Table(ctx context.Context, el upstream.Element) (*types.Table, error)
}

type clientBox struct{ Client }

// Source produces pages from the management system. It is safe for
// concurrent use; only the client and location are shared between calls.
type Source struct {
	client  atomic.Pointer[clientBox]
	loc     atomic.Pointer[time.Location]
	metrics *metrics.Metrics
}

// New returns a Source reading from client, with result dates interpreted in
// loc. A nil loc means time.Local. m may be nil.
func New(client Client, loc *time.Location, m *metrics.Metrics) *Source {
	s := &Source{metrics: m}
	s.SetClient(client)
	s.SetLocation(loc)
	return s
}

// SetClient swaps the upstream client used by subsequent calls.
func (s *Source) SetClient(c Client) {
	s.client.Store(&clientBox{c})
}

// SetLocation swaps the location result dates are interpreted in.
func (s *Source) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	s.loc.Store(loc)
}

// Location returns the location result dates are interpreted in.
func (s *Source) Location() *time.Location {
	return s.loc.Load()
}

// Columns returns the page columns.
func (s *Source) Columns() []types.Column { return Columns() }

// Arguments returns the input arguments a page request needs.
func (s *Source) Arguments() []types.Argument { return Arguments() }

// Page returns the single page for window w. HasNextPage is always false.
func (s *Source) Page(ctx context.Context, w aggregate.Window) types.Page {
	start := time.Now()
	page, outcome := s.page(ctx, w)
	s.metrics.ObservePage(outcome)
	logging.FromContext(ctx).Debug("feed: page built",
		"outcome", outcome,
		"rows", len(page.Rows),
		"start", w.Start,
		"end", w.End,
		"duration", time.Since(start),
	)
	return page
}

func (s *Source) page(ctx context.Context, w aggregate.Window) (types.Page, string) {
	log := logging.FromContext(ctx)
	box := s.client.Load()
	if box == nil || box.Client == nil {
		log.Warn("feed: no upstream client configured")
		return types.EmptyPage(), metrics.OutcomeUnavailable
	}
	c := box.Client

	elements, err := c.Elements(ctx)
	if err != nil {
		log.Warn("feed: element lookup failed", "outcome", metrics.OutcomeUnavailable, "err", err)
		return types.EmptyPage(), metrics.OutcomeUnavailable
	}
	if len(elements) != 1 {
		log.Warn("feed: expected exactly one health check element",
			"outcome", metrics.OutcomeElementCardinality, "found", len(elements))
		return types.EmptyPage(), metrics.OutcomeElementCardinality
	}
	el := elements[0]

	table, err := c.Table(ctx, el)
	if err != nil {
		log.Warn("feed: table fetch failed",
			"outcome", metrics.OutcomeUnavailable, "element", el.Key(), "err", err)
		return types.EmptyPage(), metrics.OutcomeUnavailable
	}

	page, stats, err := BuildPage(table.Columns, w, s.Location())
	s.metrics.AddSkippedRows(stats.Skipped)
	if err != nil {
		if errors.Is(err, aggregate.ErrSchemaMismatch) {
			log.Warn("feed: unexpected table layout",
				"outcome", metrics.OutcomeSchemaMismatch, "element", el.Key(), "err", err)
			return types.EmptyPage(), metrics.OutcomeSchemaMismatch
		}
		log.Warn("feed: decode failed", "element", el.Key(), "err", err)
		return types.EmptyPage(), metrics.OutcomeUnavailable
	}
	if stats.Skipped > 0 {
		log.Warn("feed: skipped rows with invalid result dates",
			"element", el.Key(), "skipped", stats.Skipped, "rows", stats.Rows)
	}
	return page, metrics.OutcomeOK
}
