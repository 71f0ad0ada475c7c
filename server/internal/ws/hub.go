package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/checkfeed/checkfeed/pkg/types"
	"github.com/checkfeed/checkfeed/server/internal/aggregate"
)

// EventPage is the event name of every message the hub sends.
const EventPage = "page"

// queueDepth is how many encoded pages may wait for a slow subscriber before
// it is dropped.
const queueDepth = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 8192,
	// CORS is applied at the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// PageSource computes the page for a window.
type PageSource interface {
	Page(ctx context.Context, w aggregate.Window) types.Page
}

// Message is the JSON envelope sent to subscribers.
type Message struct {
	Event string     `json:"event"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
	Data  types.Page `json:"data"`
}

// Hub streams the page for the trailing window to every subscriber.
type Hub struct {
	src      PageSource
	interval time.Duration
	window   time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// New returns a Hub that recomputes the page for [now-window, now] every
// interval.
func New(src PageSource, interval, window time.Duration) *Hub {
	return &Hub{
		src:      src,
		interval: interval,
		window:   window,
		now:      time.Now,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run pushes a fresh page to all subscribers on every tick until ctx is done,
// then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			h.publish(ctx)
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ServeHTTP upgrades the request, sends the current page and then streams
// updates until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		return
	}
	s := newSubscriber(conn)

	// The first page goes into the queue before the subscriber becomes
	// visible to Run, which may close the queue on shutdown.
	if payload, err := h.encode(r.Context()); err == nil {
		s.queue <- payload
	} else {
		slog.Error("ws: encode page failed", "err", err)
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.drop(s)
		h.mu.Unlock()
	}()

	go s.write()
	s.read()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// publish computes one page and offers it to every subscriber. Nothing is
// computed while nobody listens.
func (h *Hub) publish(ctx context.Context) {
	if h.Count() == 0 {
		return
	}
	payload, err := h.encode(ctx)
	if err != nil {
		slog.Error("ws: encode page failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.queue <- payload:
		default:
			slog.Warn("ws: dropping slow subscriber", "remote", s.conn.RemoteAddr().String())
			h.drop(s)
		}
	}
}

// drop forgets s and closes its queue. h.mu must be held.
func (h *Hub) drop(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.queue)
}

func (h *Hub) encode(ctx context.Context) ([]byte, error) {
	end := h.now().UTC()
	w := aggregate.Window{Start: end.Add(-h.window), End: end}
	return json.Marshal(Message{
		Event: EventPage,
		Start: w.Start,
		End:   w.End,
		Data:  h.src.Page(ctx, w),
	})
}
