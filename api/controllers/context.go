package controllers

import (
	"net/http"

	"github.com/troopfundraiser/frclient/api/validators"
	"github.com/troopfundraiser/frclient/pkg/auth"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

const maxUserIDLen = 128

// caller returns the session id and identity seeded by the session middleware.
func caller(r *http.Request) (string, *auth.Identity, error) {
	sessionID, ok := session.IDFromContext(r.Context())
	if !ok {
		return "", nil, pkgerrors.ErrInvalidSession
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", nil, pkgerrors.ErrInvalidSession
	}
	return sessionID, identity, nil
}

// resolveOwner picks whose data to read. Only admins may look past their own.
func resolveOwner(identity *auth.Identity, requested string) (string, error) {
	owner := validators.SanitizeString(requested, maxUserIDLen)
	if owner == "" || owner == identity.UserID {
		return identity.UserID, nil
	}
	if !identity.IsAdmin {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "only admins can view other users")
	}
	return owner, nil
}
