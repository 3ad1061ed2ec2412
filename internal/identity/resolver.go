// Package identity resolves the active user identity from cached sources.
package identity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/store"
)

// StalePhotoPrefixes are avatar hosts that were used for guests by earlier
// releases and no longer serve images.
var StalePhotoPrefixes = []string{
	"https://i.pravatar.cc/",
	"http://i.pravatar.cc/",
	"https://avatars.legacy-cdn.example/",
}

// Source names which candidate produced an identity.
type Source string

const (
	SourceSession     Source = "session"
	SourceAuthSession Source = "auth_session"
	SourceGuest       Source = "guest"
)

// Resolver determines the current identity.
//
// Precedence, highest first:
//  1. the identity blob cached in the session tier
//  2. the persisted authentication session (token claims + user metadata)
//  3. a fresh guest identity
//
// Any parse failure falls through to the next candidate; Resolve never fails.
type Resolver struct {
	session store.KV
	local   store.KV
}

// NewResolver creates a resolver reading the session and local tiers.
func NewResolver(session, local store.KV) *Resolver {
	return &Resolver{session: session, local: local}
}

// Resolve returns the current identity and the candidate it came from.
func (r *Resolver) Resolve(ctx context.Context) (model.Identity, Source) {
	if ident, ok := SessionIdentity.Load(ctx, r.session); ok && ident.ID != "" {
		slog.Debug("identity resolved from session cache", "identity", ident.ID)
		return repairGuestPhoto(ident), SourceSession
	}

	if sess, ok := AuthSession.Load(ctx, r.local); ok {
		if ident, ok := FromSession(sess); ok {
			slog.Debug("identity resolved from auth session", "identity", ident.ID)
			return ident, SourceAuthSession
		}
		slog.Warn("auth session record unusable, falling back to guest")
	}

	return repairGuestPhoto(model.Guest()), SourceGuest
}

// Remember caches ident in the session tier and mirrors it to the local
// last-known-identity record.
func (r *Resolver) Remember(ctx context.Context, ident model.Identity) {
	SessionIdentity.Save(ctx, r.session, ident)
	LastIdentity.Save(ctx, r.local, ident)
}

// SaveSession persists an authentication session and drops the cached
// identity blob so that the next Resolve synthesizes from the new session.
func (r *Resolver) SaveSession(ctx context.Context, sess Session) {
	AuthSession.Save(ctx, r.local, sess)
	SessionIdentity.Clear(ctx, r.session)
}

// Forget drops the authentication session and every cached identity.
func (r *Resolver) Forget(ctx context.Context) {
	AuthSession.Clear(ctx, r.local)
	SessionIdentity.Clear(ctx, r.session)
	LastIdentity.Clear(ctx, r.local)
}

// FromSession synthesizes a registered identity from an authentication
// session. Claims embedded in the access token take precedence over the
// record's user block; unset fields receive defaults.
func FromSession(sess Session) (model.Identity, bool) {
	claims := tokenClaims(sess.AccessToken)

	id := firstString(claimString(claims, "sub"), sess.User.ID)
	if id == "" || id == model.GuestID {
		return model.Identity{}, false
	}

	meta := sess.User.Metadata
	if m, ok := claims["user_metadata"].(map[string]any); ok {
		meta = m
	}

	email := firstString(claimString(claims, "email"), sess.User.Email)
	ident := model.Identity{
		ID:         id,
		Registered: true,
		Email:      email,
		Membership: model.MembershipBronze,
		PhotoRef:   model.DefaultPhoto,
	}

	name := firstString(metaString(meta, "full_name"), metaString(meta, "name"))
	ident.FullName = normalizeName(name)
	ident.DisplayName = ident.FullName
	if ident.DisplayName == "" {
		ident.DisplayName = normalizeName(model.EmailLocalPart(email))
	}
	if ident.DisplayName == "" {
		ident.DisplayName = "Member"
	}

	if photo := metaString(meta, "avatar_url"); photo != "" {
		ident.PhotoRef = photo
	}
	if m := model.Membership(cases.Lower(language.Und).String(metaString(meta, "membership"))); m.Valid() {
		ident.Membership = m
	}
	return ident, true
}

// tokenClaims extracts claims from a JWT without verifying its signature.
// The token is only used to seed a local identity; anything security
// relevant re-verifies against the remote store.
func tokenClaims(token string) jwt.MapClaims {
	if token == "" {
		return jwt.MapClaims{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		slog.Debug("access token claims unreadable", "error", err)
		return jwt.MapClaims{}
	}
	return claims
}

// repairGuestPhoto rewrites known-stale guest avatars to the default asset.
func repairGuestPhoto(ident model.Identity) model.Identity {
	if ident.ID != model.GuestID {
		return ident
	}
	if ident.PhotoRef == "" {
		ident.PhotoRef = model.DefaultPhoto
		return ident
	}
	for _, prefix := range StalePhotoPrefixes {
		if strings.HasPrefix(ident.PhotoRef, prefix) {
			slog.Info("repaired stale guest photo", "old", ident.PhotoRef)
			ident.PhotoRef = model.DefaultPhoto
			break
		}
	}
	return ident
}

func normalizeName(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
