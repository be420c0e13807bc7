package integration

import (
	"context"
	"time"
)

// TokenRefreshMargin is how long before expiry a token stops being usable
const TokenRefreshMargin = 60 * time.Second

// AccessToken is a CRM bearer token and the moment it expires
type AccessToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UsableAt reports whether the token may still be sent at the given time
func (t AccessToken) UsableAt(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	return now.Add(TokenRefreshMargin).Before(t.ExpiresAt)
}

// TokenStore holds the single cached CRM bearer token.
// Load returns ok=false when nothing is cached.
type TokenStore interface {
	Load(ctx context.Context) (token AccessToken, ok bool, err error)
	Save(ctx context.Context, token AccessToken) error
	Clear(ctx context.Context) error
}
