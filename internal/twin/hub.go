package twin

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/storesync/internal/remote"
)

const writeTimeout = 5 * time.Second

// Hub fans realtime changes out to websocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn  *websocket.Conn
	topic remote.Topic

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the connection, waits for a subscribe frame, and keeps
// the subscriber registered until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("realtime upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var msg remote.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Type != remote.MessageSubscribe || msg.Topic == nil || msg.Topic.Table == "" {
		conn.WriteJSON(remote.Message{Type: remote.MessageError, Error: "expected subscribe with topic"})
		return
	}

	// The ack must be the first frame the client sees, so it is written
	// under writeMu before any Publish can reach the new subscriber.
	sub := &subscriber{conn: conn, topic: *msg.Topic}
	sub.writeMu.Lock()
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	defer h.remove(sub)

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteJSON(remote.Message{Type: remote.MessageSubscribed, Topic: msg.Topic})
	sub.writeMu.Unlock()
	if err != nil {
		return
	}
	slog.Debug("realtime subscribed", "table", sub.topic.Table, "event", sub.topic.Event, "filter", sub.topic.Filter)

	// Drain until the client goes away; clients send nothing else.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Publish delivers a change to every matching subscriber.
func (h *Hub) Publish(c remote.Change) {
	h.mu.Lock()
	var targets []*subscriber
	for s := range h.subs {
		if s.matches(c) {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if err := s.write(remote.Message{Type: remote.MessageChange, Change: &c}); err != nil {
			slog.Debug("realtime write failed", "table", c.Table, "error", err)
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

func (s *subscriber) matches(c remote.Change) bool {
	if s.topic.Table != c.Table {
		return false
	}
	if s.topic.Event != "" && s.topic.Event != "*" && s.topic.Event != c.Event {
		return false
	}
	return remote.MatchFilter(s.topic.Filter, c.Record)
}

func (s *subscriber) write(m remote.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(m)
}
