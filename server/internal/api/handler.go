package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/checkfeed/checkfeed/pkg/types"
	"github.com/checkfeed/checkfeed/server/internal/aggregate"
	"github.com/checkfeed/checkfeed/server/internal/logging"
	"github.com/checkfeed/checkfeed/server/internal/metrics"
)

// RequestIDHeader carries the request id on responses (and is honoured on
// requests when the caller already has one).
const RequestIDHeader = "X-Request-Id"

// PageSource is the data source behind the API.
type PageSource interface {
	Columns() []types.Column
	Arguments() []types.Argument
	Page(ctx context.Context, w aggregate.Window) types.Page
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	src PageSource
	mux *http.ServeMux
}

// New creates a Handler wired to src and registers all routes. Every request
// is timed by m (which may be nil) and logged with a request id.
func New(src PageSource, m *metrics.Metrics) http.Handler {
	h := &Handler{src: src, mux: http.NewServeMux()}

	routes := map[string]http.HandlerFunc{
		"/api/v1/health":    h.health,
		"/api/v1/columns":   h.columns,
		"/api/v1/arguments": h.arguments,
		"/api/v1/page":      h.page,
	}
	paths := make([]string, 0, len(routes))
	for path, f := range routes {
		h.mux.Handle(path, getOnly(f))
		paths = append(paths, path)
	}

	return m.Instrument(withRequestID(h), paths...)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health: liveness of the HTTP server itself.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// columns returns GET /api/v1/columns.
func (h *Handler) columns(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.src.Columns())
}

// arguments returns GET /api/v1/arguments.
func (h *Handler) arguments(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.src.Arguments())
}

// page returns GET /api/v1/page?start=...&end=... with RFC 3339 bounds.
func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseBound(q.Get("start"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	end, err := parseBound(q.Get("end"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}

	jsonResp(w, http.StatusOK, h.src.Page(r.Context(), aggregate.Window{Start: start, End: end}))
}

var (
	errMissingBound = errors.New("required")
	errInvalidBound = errors.New("must be an RFC 3339 timestamp")
)

// getOnly answers anything but GET with a JSON 405.
func getOnly(f http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		f(w, r)
	})
}

// parseBound parses an RFC 3339 window bound and returns it in UTC.
func parseBound(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errMissingBound
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errInvalidBound
	}
	return t.UTC(), nil
}

// statusRecorder remembers the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withRequestID tags each request with an id (X-Request-Id), stores a logger
// carrying that id in the request context and logs the request once served.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		log := slog.Default().With("request_id", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logging.NewContext(r.Context(), log)))

		log.Info("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
