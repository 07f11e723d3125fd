package orders

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/troopfundraiser/frclient/pkg/auth"
	"github.com/troopfundraiser/frclient/pkg/backend"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

// ErrSubmissionInProgress rejects a submission while another one is pending on the same Store.
var ErrSubmissionInProgress = pkgerrors.New(pkgerrors.CodeConflict, "an order submission is already in progress")

// IdentitySource resolves the caller behind ctx.
type IdentitySource interface {
	Identity(ctx context.Context) (*auth.Identity, error)
}

// QueryFilter selects orders. An empty OrderOwner means the caller; AnyOwner means everyone.
type QueryFilter struct {
	Fields     []string
	OrderOwner string
}

// VerificationUpdate sets the verified flag of one order.
type VerificationUpdate struct {
	OrderID    string `json:"orderId" validate:"required"`
	OrderOwner string `json:"orderOwner" validate:"required"`
	IsVerified bool   `json:"isVerified"`
}

// Store reads and writes orders through /queryorders and /upsertorder.
// Reads may run concurrently; writes are one at a time and never queued.
type Store struct {
	caller   backend.Caller
	identity IdentitySource
	logg     *logger.Logger
	inflight sync.Mutex
}

func NewStore(caller backend.Caller, identity IdentitySource, logg *logger.Logger) (*Store, error) {
	if caller == nil {
		return nil, fmt.Errorf("backend caller is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity source is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{caller: caller, identity: identity, logg: logg}, nil
}

type queryRequest struct {
	Fields     []string `json:"fields,omitempty"`
	OrderOwner string   `json:"orderOwner"`
}

// Query returns the matching orders, hydrated. Verified orders are read-only for non-admins.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]*Order, error) {
	identity, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(filter.OrderOwner)
	if owner == "" {
		owner = identity.UserID
	}

	var found []Order
	if err := s.caller.Post(ctx, backend.EndpointQueryOrders, queryRequest{Fields: filter.Fields, OrderOwner: owner}, &found); err != nil {
		return nil, err
	}
	out := make([]*Order, 0, len(found))
	for _, o := range found {
		out = append(out, Hydrate(o, o.IsVerified && !identity.IsAdmin))
	}
	return out, nil
}

// Upsert validates and saves the order. When the owner changed since the order was loaded,
// the record is first deleted under the original owner and then written under the new one.
// The two calls are not atomic: if the write fails after the delete, the error has code
// PARTIAL_FAILURE and the order exists under neither owner.
func (s *Store) Upsert(ctx context.Context, o *Order) error {
	if !s.inflight.TryLock() {
		return ErrSubmissionInProgress
	}
	defer s.inflight.Unlock()

	if err := Validate(o, nil); err != nil {
		return err
	}
	if o.ReadOnly {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is read-only")
	}
	ctx = s.logg.WithOrderID(ctx, o.OrderID)

	moved := false
	if o.OwnerChanged() {
		if err := s.moveOwner(ctx, o); err != nil {
			return err
		}
		moved = true
	}

	if err := s.put(ctx, o); err != nil {
		if moved {
			s.logg.Error(ctx, "order deleted from previous owner but not recreated", err)
			return pkgerrors.Wrap(pkgerrors.CodePartialFailure, err,
				fmt.Sprintf("order %s was deleted from %s but could not be saved for %s", o.OrderID, o.OriginalOwner, o.OrderOwner)).
				WithDetails(map[string]string{
					"orderId":       o.OrderID,
					"previousOwner": o.OriginalOwner,
					"orderOwner":    o.OrderOwner,
				})
		}
		return err
	}

	o.FromDB = true
	o.OriginalOwner = o.OrderOwner
	s.logg.Info(ctx, "order saved")
	return nil
}

func (s *Store) moveOwner(ctx context.Context, o *Order) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"from": o.OriginalOwner, "to": o.OrderOwner}), "moving order to new owner")
	return s.deleteRemote(ctx, o.OrderID, o.OriginalOwner)
}

func (s *Store) put(ctx context.Context, o *Order) error {
	return s.caller.Post(ctx, backend.EndpointUpsertOrder, o, nil)
}

type deleteRequest struct {
	OrderID       string `json:"orderId"`
	OrderOwner    string `json:"orderOwner"`
	DoDeleteOrder bool   `json:"doDeleteOrder"`
}

// Delete removes one order.
func (s *Store) Delete(ctx context.Context, orderID, orderOwner string) error {
	if !s.inflight.TryLock() {
		return ErrSubmissionInProgress
	}
	defer s.inflight.Unlock()

	if err := requireKey(orderID, orderOwner); err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, orderID)
	if err := s.deleteRemote(ctx, orderID, orderOwner); err != nil {
		return err
	}
	s.logg.Info(ctx, "order deleted")
	return nil
}

func (s *Store) deleteRemote(ctx context.Context, orderID, orderOwner string) error {
	return s.caller.Post(ctx, backend.EndpointUpsertOrder, deleteRequest{
		OrderID:       orderID,
		OrderOwner:    orderOwner,
		DoDeleteOrder: true,
	}, nil)
}

type spreadingPatch struct {
	OrderID    string   `json:"orderId"`
	OrderOwner string   `json:"orderOwner"`
	Spreaders  []string `json:"spreaders"`
}

// SubmitSpreadingComplete records who spread the mulch for an order.
func (s *Store) SubmitSpreadingComplete(ctx context.Context, orderID, orderOwner string, spreaders []string) error {
	if !s.inflight.TryLock() {
		return ErrSubmissionInProgress
	}
	defer s.inflight.Unlock()

	if err := requireKey(orderID, orderOwner); err != nil {
		return err
	}
	clean := make([]string, 0, len(spreaders))
	for _, sp := range spreaders {
		if trimmed := strings.TrimSpace(sp); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"spreaders": "at least one spreader is required"})
	}
	return s.caller.Post(ctx, backend.EndpointUpsertOrder, spreadingPatch{
		OrderID:    orderID,
		OrderOwner: orderOwner,
		Spreaders:  clean,
	}, nil)
}

// SubmitVerification sets the verified flag of one order.
func (s *Store) SubmitVerification(ctx context.Context, update VerificationUpdate) error {
	if !s.inflight.TryLock() {
		return ErrSubmissionInProgress
	}
	defer s.inflight.Unlock()
	return s.verify(ctx, update)
}

// SubmitVerifications patches a batch. Every update is attempted; failures are combined.
func (s *Store) SubmitVerifications(ctx context.Context, updates []VerificationUpdate) error {
	if !s.inflight.TryLock() {
		return ErrSubmissionInProgress
	}
	defer s.inflight.Unlock()

	var errs error
	for _, update := range updates {
		if err := s.verify(ctx, update); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", update.OrderID, err))
			if pkgerrors.IsInvalidSession(err) {
				break
			}
		}
	}
	return errs
}

func (s *Store) verify(ctx context.Context, update VerificationUpdate) error {
	if err := requireKey(update.OrderID, update.OrderOwner); err != nil {
		return err
	}
	return s.caller.Post(ctx, backend.EndpointUpsertOrder, update, nil)
}

func requireKey(orderID, orderOwner string) error {
	problems := map[string]string{}
	if strings.TrimSpace(orderID) == "" {
		problems["orderId"] = "is required"
	}
	if strings.TrimSpace(orderOwner) == "" {
		problems["orderOwner"] = "is required"
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(problems)
	}
	return nil
}
