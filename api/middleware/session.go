package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/pkg/auth"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

// SessionHeader carries the id returned by POST /api/v1/session.
const SessionHeader = "X-FR-Session"

type sessionLoader interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

// Session resolves the session header and seeds the context with the session id and caller identity.
func Session(loader sessionLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			if sessionID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.ErrInvalidSession)
				return
			}

			sess, err := loader.Get(r.Context(), sessionID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !sess.ExpiresAt.IsZero() && !time.Now().Before(sess.ExpiresAt) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.ErrInvalidSession)
				return
			}

			ctx := session.WithID(r.Context(), sess.ID)
			ctx = auth.WithIdentity(ctx, &auth.Identity{
				UserID:    sess.UserID,
				IsAdmin:   sess.IsAdmin,
				ExpiresAt: sess.ExpiresAt,
			})
			if logg != nil {
				ctx = logg.WithUserID(logg.WithSessionID(ctx, sess.ID), sess.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers outside the admin group. It must run after Session.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.ErrInvalidSession)
				return
			}
			if !identity.IsAdmin {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
