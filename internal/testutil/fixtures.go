package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/identity"
	"github.com/roach88/storesync/internal/store"
)

// Epoch is the fixed wall time deterministic tests start at.
var Epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// OpenTiers opens a file-backed local store and an in-memory session
// store, both closed when the test ends.
func OpenTiers(t *testing.T) (local, session *store.Store) {
	t.Helper()
	local, err := store.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	session, err = store.OpenSession()
	require.NoError(t, err)
	t.Cleanup(func() {
		local.Close()
		session.Close()
	})
	return local, session
}

// Session builds an authentication session for userID with an unsigned
// but well-formed access token.
func Session(t *testing.T, userID, email, fullName string) identity.Session {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   Epoch.Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return identity.Session{
		AccessToken: signed,
		ExpiresAt:   Epoch.Add(time.Hour).Unix(),
		User: identity.SessionUser{
			ID:       userID,
			Email:    email,
			Metadata: map[string]any{"full_name": fullName},
		},
	}
}

// Picker returns scripted values for IntN, cycling when exhausted.
// Values are reduced modulo n.
type Picker struct {
	mu     sync.Mutex
	values []int
	idx    int
}

// NewPicker creates a scripted picker.
func NewPicker(values ...int) *Picker {
	if len(values) == 0 {
		values = []int{0}
	}
	return &Picker{values: values}
}

// IntN implements discount.Picker.
func (p *Picker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.values[p.idx%len(p.values)]
	p.idx++
	return v % n
}
