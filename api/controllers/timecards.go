package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/api/validators"
	"github.com/troopfundraiser/frclient/internal/reports"
	"github.com/troopfundraiser/frclient/internal/timecards"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

type timeCardClient interface {
	Query(ctx context.Context, deliveryID string) ([]timecards.Entry, error)
	Save(ctx context.Context, entries []timecards.Entry) error
	Delete(ctx context.Context, deliveryID, uid string) error
}

// ListTimeCards answers GET /timecards?deliveryId=&format=.
func ListTimeCards(client timeCardClient, loader configLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := parseFormat(r, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID := strings.TrimSpace(r.URL.Query().Get("deliveryId"))
		entries, err := client.Query(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if format == formatJSON {
			responses.WriteSuccess(w, entries)
			return
		}

		cfg, err := loadConfig(r, loader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		base := "timecards"
		if deliveryID != "" {
			base += "-" + deliveryID
		}
		writeTable(w, r, logg, reports.TimeCardTable(entries, cfg), format, base, reports.PlainDelimiter)
	}
}

type saveTimeCardsRequest struct {
	Entries []timecards.Entry `json:"entries" validate:"required,min=1"`
}

// SaveTimeCards adds or updates entries. Admin only.
func SaveTimeCards(client timeCardClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveTimeCardsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := client.Save(r.Context(), req.Entries); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"saved": len(req.Entries)})
	}
}

// DeleteTimeCard answers DELETE /timecards?deliveryId=&uid=. Admin only.
func DeleteTimeCard(client timeCardClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		deliveryID := validators.SanitizeString(q.Get("deliveryId"), maxUserIDLen)
		uid := validators.SanitizeString(q.Get("uid"), maxUserIDLen)
		if deliveryID == "" || uid == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"deliveryId": "is required", "uid": "is required"}))
			return
		}
		if err := client.Delete(r.Context(), deliveryID, uid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
