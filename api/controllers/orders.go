package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/api/validators"
	"github.com/troopfundraiser/frclient/internal/orders"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

// OrderStore is the order API surface used by the handlers.
type OrderStore interface {
	Query(ctx context.Context, filter orders.QueryFilter) ([]*orders.Order, error)
	Upsert(ctx context.Context, o *orders.Order) error
	Delete(ctx context.Context, orderID, orderOwner string) error
	SubmitSpreadingComplete(ctx context.Context, orderID, orderOwner string, spreaders []string) error
	SubmitVerification(ctx context.Context, update orders.VerificationUpdate) error
	SubmitVerifications(ctx context.Context, updates []orders.VerificationUpdate) error
}

// OrderStores returns the store bound to a session.
type OrderStores func(sessionID string) OrderStore

func (s OrderStores) forRequest(r *http.Request) (OrderStore, error) {
	sessionID, _, err := caller(r)
	if err != nil {
		return nil, err
	}
	return s(sessionID), nil
}

// ListOrders answers GET /orders?owner=&fields=.
func ListOrders(stores OrderStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, identity, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := strings.TrimSpace(r.URL.Query().Get("owner"))
		if owner != orders.AnyOwner || !identity.IsAdmin {
			if owner, err = resolveOwner(identity, owner); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := store.Query(r.Context(), orders.QueryFilter{
			Fields:     validators.ParseQueryList(r, "fields"),
			OrderOwner: owner,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type upsertOrderRequest struct {
	Order orders.Order `json:"order"`
	// OriginalOwner is set when an existing order is being moved to another owner.
	OriginalOwner string `json:"originalOwner"`
}

// UpsertOrder prices the order against the session configuration, validates it and saves it.
func UpsertOrder(stores OrderStores, loader configLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, identity, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req upsertOrderRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		o := &req.Order
		existing := strings.TrimSpace(o.OrderID) != ""
		if !existing {
			o.OrderID = uuid.NewString()
		}
		if strings.TrimSpace(o.OrderOwner) == "" {
			o.OrderOwner = identity.UserID
		}
		if !identity.IsAdmin && (o.OrderOwner != identity.UserID || (req.OriginalOwner != "" && req.OriginalOwner != identity.UserID)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "orders can only be saved for yourself"))
			return
		}
		if !identity.IsAdmin && o.IsVerified {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can verify orders"))
			return
		}
		if req.OriginalOwner != "" {
			o.FromDB = true
			o.OriginalOwner = req.OriginalOwner
		}

		cfg, err := loadConfig(r, loader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		o.Recalculate(cfg)
		if err := orders.Validate(o, cfg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if existing && !identity.IsAdmin {
			owner := o.OrderOwner
			if req.OriginalOwner != "" {
				owner = req.OriginalOwner
			}
			locked, err := verifiedOnRecord(r.Context(), store, o.OrderID, owner)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if locked {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order is read-only"))
				return
			}
		}
		if err := store.Upsert(r.Context(), o); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, o)
	}
}

// verifiedOnRecord reports whether the stored copy of the order has already been verified.
func verifiedOnRecord(ctx context.Context, store OrderStore, orderID, owner string) (bool, error) {
	list, err := store.Query(ctx, orders.QueryFilter{Fields: []string{"orderId", "isVerified"}, OrderOwner: owner})
	if err != nil {
		return false, err
	}
	for _, o := range list {
		if o.OrderID == orderID {
			return o.IsVerified, nil
		}
	}
	return false, nil
}

// DeleteOrder answers DELETE /orders/{orderId}?owner=.
func DeleteOrder(stores OrderStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, identity, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := resolveOwner(identity, r.URL.Query().Get("owner"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Delete(r.Context(), chi.URLParam(r, "orderId"), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type spreadingRequest struct {
	OrderOwner string   `json:"orderOwner"`
	Spreaders  []string `json:"spreaders" validate:"required,min=1,dive,required"`
}

// SpreadingComplete records the spreaders of one order.
func SpreadingComplete(stores OrderStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, identity, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req spreadingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := resolveOwner(identity, req.OrderOwner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SubmitSpreadingComplete(r.Context(), chi.URLParam(r, "orderId"), owner, req.Spreaders); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "spreading_complete"})
	}
}

type verificationRequest struct {
	OrderOwner string `json:"orderOwner" validate:"required"`
	IsVerified bool   `json:"isVerified"`
}

// VerifyOrder sets the verified flag of one order. Admin only.
func VerifyOrder(stores OrderStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verificationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		update := orders.VerificationUpdate{
			OrderID:    chi.URLParam(r, "orderId"),
			OrderOwner: req.OrderOwner,
			IsVerified: req.IsVerified,
		}
		if err := store.SubmitVerification(r.Context(), update); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, update)
	}
}

type verificationBatchRequest struct {
	Updates []orders.VerificationUpdate `json:"updates" validate:"required,min=1,dive"`
}

// VerifyOrders patches a batch of verification flags. Admin only.
func VerifyOrders(stores OrderStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verificationBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := stores.forRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SubmitVerifications(r.Context(), req.Updates); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"updated": len(req.Updates)})
	}
}
