package twin

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/roach88/storesync/internal/remote"
)

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = time.Hour

// Tokens issues and verifies HS256 access tokens. The claims mirror what
// the identity resolver reads: sub, email and user_metadata.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. An empty secret generates a random one.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if secret == "" {
		secret = uuid.NewString()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates an access/refresh token pair for a user.
func (t *Tokens) Issue(userID, email string, metadata map[string]any) (remote.TokenPair, error) {
	if userID == "" {
		return remote.TokenPair{}, errors.New("user_id is required")
	}
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.MapClaims{
		"iss": "storesync-twin",
		"sub": userID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	if len(metadata) > 0 {
		claims["user_metadata"] = metadata
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return remote.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	return remote.TokenPair{
		AccessToken:  access,
		RefreshToken: uuid.Must(uuid.NewV7()).String(),
		ExpiresAt:    exp.Unix(),
	}, nil
}

// Verify checks signature and expiry and returns the subject.
func (t *Tokens) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("verify token: missing subject")
	}
	return sub, nil
}
