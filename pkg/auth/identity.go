package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/troopfundraiser/frclient/pkg/config"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

// Identity is the caller as described by the identity provider's token.
type Identity struct {
	UserID string
	Groups []string
	// IsAdmin comes from unverified claims. See ParseIdentity.
	IsAdmin   bool
	ExpiresAt time.Time
}

// Expired reports whether the token behind the identity is no longer usable at now.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// ExpiresWithin reports whether the token expires inside the given window.
func (i Identity) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !i.ExpiresAt.IsZero() && !now.Add(window).Before(i.ExpiresAt)
}

var fallbackUsernameClaims = []string{"cognito:username", "preferred_username", "username", "sub"}

// ParseIdentity extracts the user id, groups and expiry from a bearer token issued by the
// hosted identity provider. The token is parsed without verifying its signature; the backend
// API verifies it on every call. IsAdmin is therefore advisory and only decides which
// routes this service offers. The backend still enforces admin rights itself.
func ParseIdentity(cfg config.AuthConfig, token string) (*Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, pkgerrors.ErrInvalidSession
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(trimmed, claims); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidSession, err, "invalid session")
	}

	userID := claimString(claims, cfg.UsernameClaim)
	for _, name := range fallbackUsernameClaims {
		if userID != "" {
			break
		}
		userID = claimString(claims, name)
	}
	if userID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidSession, fmt.Errorf("token has no username claim"), "invalid session")
	}

	identity := &Identity{UserID: userID, Groups: claimStrings(claims, cfg.GroupsClaim)}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	adminGroup := strings.TrimSpace(cfg.AdminGroup)
	for _, group := range identity.Groups {
		if adminGroup != "" && group == adminGroup {
			identity.IsAdmin = true
		}
	}
	return identity, nil
}

func claimString(claims jwt.MapClaims, name string) string {
	if name == "" {
		return ""
	}
	if v, ok := claims[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func claimStrings(claims jwt.MapClaims, name string) []string {
	if name == "" {
		return nil
	}
	switch raw := claims[name].(type) {
	case []any:
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(strings.ReplaceAll(raw, ",", " "))
	}
	return nil
}

type identityKey struct{}

// WithIdentity attaches the caller's identity to ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
