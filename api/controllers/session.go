package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/api/validators"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

type sessionManager interface {
	Create(ctx context.Context, tokens session.Tokens) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

type sessionRequest struct {
	AccessToken  string `json:"accessToken" validate:"required_without=IDToken"`
	IDToken      string `json:"idToken" validate:"required_without=AccessToken"`
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	IsAdmin   bool      `json:"isAdmin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionCreate registers the tokens obtained from the hosted sign-in page.
func SessionCreate(manager sessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := manager.Create(r.Context(), session.Tokens{
			AccessToken:  req.AccessToken,
			IDToken:      req.IDToken,
			RefreshToken: req.RefreshToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			IsAdmin:   sess.IsAdmin,
			ExpiresAt: sess.ExpiresAt,
		})
	}
}

// SessionDelete logs the current session out.
func SessionDelete(manager sessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, _, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := manager.Logout(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
