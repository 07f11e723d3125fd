package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/users"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

type configLoader interface {
	Load(ctx context.Context, sessionID string) (*frconfig.Config, error)
}

type userInfoSource interface {
	GetUserInfo(ctx context.Context) (*users.Info, error)
}

// loadConfig fetches the session's fundraiser configuration, from cache when possible.
func loadConfig(r *http.Request, loader configLoader) (*frconfig.Config, error) {
	sessionID, _, err := caller(r)
	if err != nil {
		return nil, err
	}
	return loader.Load(r.Context(), sessionID)
}

// FundraiserConfig returns the configuration exactly as the backend published it.
func FundraiserConfig(loader configLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := loadConfig(r, loader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, json.RawMessage(cfg.Raw()))
	}
}

func UserInfo(source userInfoSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := source.GetUserInfo(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}
