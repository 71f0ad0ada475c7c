package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// Keepalive timing. The ping interval stays below the pong deadline so a
// healthy peer never times out.
const (
	writeDeadline = 10 * time.Second
	pongDeadline  = time.Minute
	pingEvery     = pongDeadline * 9 / 10
	maxInbound    = 512
)

// subscriber is one WebSocket peer. queue is closed by the hub when the peer
// is dropped.
type subscriber struct {
	conn  *websocket.Conn
	queue chan []byte
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{conn: conn, queue: make(chan []byte, queueDepth)}
}

// write forwards queued pages and keepalive pings until the queue closes or
// a write fails.
func (s *subscriber) write() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case msg, open := <-s.queue:
			if !open {
				s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})  //nolint:errcheck
				return
			}
			kind, payload = websocket.TextMessage, msg
		case <-ping.C:
			kind = websocket.PingMessage
		}
		s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck
		if err := s.conn.WriteMessage(kind, payload); err != nil {
			return
		}
	}
}

// read discards inbound frames so control frames are handled, and returns
// once the peer disconnects or stops answering pings.
func (s *subscriber) read() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxInbound)
	extend := func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	}
	extend("") //nolint:errcheck
	s.conn.SetPongHandler(extend)
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}
