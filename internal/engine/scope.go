package engine

import (
	"log/slog"
	"sync"

	"github.com/roach88/storesync/internal/remote"
)

// scope collects the realtime subscriptions opened for one identity.
// Closing it tears them all down; subscriptions added after Close are
// closed immediately, which covers a reconcile task that finishes its
// subscribe after the identity already switched away.
type scope struct {
	mu     sync.Mutex
	subs   []remote.Subscription
	closed bool
}

func newScope() *scope {
	return &scope{}
}

func (s *scope) Add(sub remote.Subscription) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		closeSubscription(sub)
		return
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

func (s *scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		closeSubscription(sub)
	}
}

func (s *scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func closeSubscription(sub remote.Subscription) {
	if err := sub.Close(); err != nil {
		slog.Debug("closing realtime subscription", "error", err)
	}
}
