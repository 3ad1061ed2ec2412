package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Realtime wire message types.
const (
	MessageSubscribe  = "subscribe"
	MessageSubscribed = "subscribed"
	MessageChange     = "change"
	MessageError      = "error"
)

// Message is the JSON frame exchanged on the realtime socket.
type Message struct {
	Type   string  `json:"type"`
	Topic  *Topic  `json:"topic,omitempty"`
	Change *Change `json:"change,omitempty"`
	Error  string  `json:"error,omitempty"`
}

const (
	ackTimeout   = 10 * time.Second
	closeTimeout = time.Second
)

// DefaultDialer is the gorilla dialer used by WSFeed.
var DefaultDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 10 * time.Second,
}

// WSFeed is a Feed over WebSocket. Each subscription owns one connection,
// so closing a subscription cannot affect any other.
type WSFeed struct {
	url    string
	dialer *websocket.Dialer
	token  func() string
}

// NewFeed creates a feed for a ws:// or wss:// endpoint.
func NewFeed(wsURL string, token func() string) *WSFeed {
	return &WSFeed{url: wsURL, dialer: DefaultDialer, token: token}
}

// FeedURL derives the realtime endpoint from an HTTP base URL.
func FeedURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime"
	return u.String(), nil
}

// Subscribe dials the feed, registers topic and waits for the server to
// acknowledge before returning, so no change published after Subscribe
// returns is missed.
func (f *WSFeed) Subscribe(ctx context.Context, topic Topic, handler func(Change)) (Subscription, error) {
	header := http.Header{}
	if f.token != nil {
		if tok := f.token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial realtime feed: %w", err)
	}

	if err := conn.WriteJSON(Message{Type: MessageSubscribe, Topic: &topic}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	deadline := time.Now().Add(ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	var ack Message
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("await subscribe ack: %w", err)
	}
	if ack.Type != MessageSubscribed {
		conn.Close()
		return nil, fmt.Errorf("subscribe rejected: %s", ack.Error)
	}
	conn.SetReadDeadline(time.Time{})

	s := &wsSubscription{
		conn:    conn,
		topic:   topic,
		handler: handler,
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type wsSubscription struct {
	conn    *websocket.Conn
	topic   Topic
	handler func(Change)

	// mu is held while the handler runs so that Close can guarantee no
	// delivery starts after it returns.
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *wsSubscription) readLoop() {
	defer close(s.done)
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				slog.Warn("realtime feed disconnected", "table", s.topic.Table, "filter", s.topic.Filter, "error", err)
			}
			return
		}
		if msg.Type != MessageChange || msg.Change == nil {
			continue
		}
		s.mu.Lock()
		if !s.closed {
			s.handler(*msg.Change)
		}
		s.mu.Unlock()
	}
}

// Close unsubscribes and waits for the read loop to exit.
func (s *wsSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	err := s.conn.Close()
	<-s.done
	return err
}

// MatchFilter reports whether record satisfies a "column=eq.value" filter.
// An empty filter matches everything.
func MatchFilter(filter string, record map[string]any) bool {
	if filter == "" {
		return true
	}
	column, rest, ok := strings.Cut(filter, "=")
	if !ok {
		return false
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return false
	}
	got, ok := record[column]
	if !ok {
		return false
	}
	return fmt.Sprint(got) == value
}

// ProfileFilter is the filter scoping a subscription to one profile row.
func ProfileFilter(userID string) string {
	return "id=eq." + userID
}
