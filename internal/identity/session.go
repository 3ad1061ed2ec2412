package identity

import (
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/store"
)

// Session is the persisted authentication-session record: the token pair
// plus the user metadata returned at sign-in. It outlives the identity cache.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    int64       `json:"expires_at,omitempty"`
	User         SessionUser `json:"user"`
}

// SessionUser is the user block embedded in a Session.
type SessionUser struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Persisted records.
var (
	// SessionIdentity is the identity blob cached in the session tier.
	SessionIdentity = store.NewRecord[model.Identity]("identity:session")
	// LastIdentity is the process-wide last known identity in the local tier.
	LastIdentity = store.NewRecord[model.Identity]("identity:last")
	// AuthSession is the last known authentication session in the local tier.
	AuthSession = store.NewRecord[Session]("auth:session")
)
