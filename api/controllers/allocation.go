package controllers

import (
	"context"
	"net/http"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/api/validators"
	"github.com/troopfundraiser/frclient/internal/allocation"
	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/reports"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/money"
)

type allocator interface {
	Compute(ctx context.Context, cfg *frconfig.Config, amounts allocation.Amounts) (*allocation.Report, error)
	Release(ctx context.Context, cfg *frconfig.Config, amounts allocation.Amounts, releasedBy string) (*allocation.Report, error)
}

type allocationRequest struct {
	BankDeposited string `json:"bankDeposited" validate:"required"`
	MulchCost     string `json:"mulchCost" validate:"required"`
	Format        string `json:"format" validate:"omitempty,oneof=json csv xlsx"`
}

func (req allocationRequest) amounts() (allocation.Amounts, error) {
	details := map[string]string{}
	bank, err := money.Parse(req.BankDeposited)
	if err != nil {
		details["bankDeposited"] = "must be a currency amount"
	}
	mulch, err := money.Parse(req.MulchCost)
	if err != nil {
		details["mulchCost"] = "must be a currency amount"
	}
	if len(details) > 0 {
		return allocation.Amounts{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return allocation.Amounts{BankDeposited: bank, MulchCost: mulch}, nil
}

// ComputeAllocation runs the allocation without saving it. Admin only.
func ComputeAllocation(svc allocator, loader configLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req allocationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amounts, err := req.amounts()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		format, err := parseFormat(r, req.Format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cfg, err := loadConfig(r, loader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Compute(r.Context(), cfg, amounts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if format == formatJSON {
			responses.WriteSuccess(w, report)
			return
		}
		writeTable(w, r, logg, report.Table(), format, "allocation", reports.PlainDelimiter)
	}
}

// ReleaseFunds computes the allocation and persists it as released by the caller. Admin only.
func ReleaseFunds(svc allocator, loader configLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, identity, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req allocationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amounts, err := req.amounts()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cfg, err := loadConfig(r, loader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Release(r.Context(), cfg, amounts, identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}
