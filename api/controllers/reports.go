package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/internal/reports"
	"github.com/troopfundraiser/frclient/pkg/enums"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatXLSX = "xlsx"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func parseFormat(r *http.Request, raw string) (string, error) {
	if raw == "" {
		raw = r.URL.Query().Get("format")
	}
	switch f := strings.ToLower(strings.TrimSpace(raw)); f {
	case "", formatJSON:
		return formatJSON, nil
	case formatCSV, formatXLSX:
		return f, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"format": "must be one of json csv xlsx"})
	}
}

// writeTable sends t as JSON or as a download named after base.
func writeTable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, t *reports.Table, format, base string, delimiter rune) {
	switch format {
	case formatCSV:
		responses.WriteDownload(r.Context(), logg, w, contentTypeCSV, base+".csv", func(out io.Writer) error {
			return reports.WriteCSV(out, t, delimiter)
		})
	case formatXLSX:
		responses.WriteDownload(r.Context(), logg, w, contentTypeXLSX, base+".xlsx", func(out io.Writer) error {
			return reports.WriteXLSX(out, t, t.Title)
		})
	default:
		responses.WriteSuccess(w, t)
	}
}

// Report answers GET /reports/{view}?user=&format=.
func Report(stores OrderStores, loader configLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, identity, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := enums.ParseReportView(chi.URLParam(r, "view"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown report"))
			return
		}
		format, err := parseFormat(r, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scope := reports.Scope{
			ViewerID:     identity.UserID,
			IsAdmin:      identity.IsAdmin,
			SelectedUser: strings.TrimSpace(r.URL.Query().Get("user")),
		}
		owner := scope.SelectedUser
		if owner != orders.AnyOwner || !identity.IsAdmin {
			if owner, err = resolveOwner(identity, owner); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		cfg, err := loadConfig(r, loader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := store.Query(r.Context(), orders.QueryFilter{OrderOwner: owner})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		table, err := reports.Project(view, list, scope, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTable(w, r, logg, table, format, fmt.Sprintf("%s-report", view), reports.TableDelimiter)
	}
}
