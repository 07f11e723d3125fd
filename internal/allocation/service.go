package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/internal/timecards"
	"github.com/troopfundraiser/frclient/internal/users"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

type orderSource interface {
	Query(ctx context.Context, filter orders.QueryFilter) ([]*orders.Order, error)
}

type timeCardSource interface {
	Query(ctx context.Context, deliveryID string) ([]timecards.Entry, error)
}

type fundsReleaser interface {
	ReleaseFunds(ctx context.Context, release users.FundsRelease) error
}

// Amounts are the two figures an admin enters before running the allocation.
type Amounts struct {
	BankDeposited decimal.Decimal `json:"bankDeposited"`
	MulchCost     decimal.Decimal `json:"mulchCost"`
}

type ServiceParams struct {
	Engine    *Engine
	Orders    orderSource
	TimeCards timeCardSource
	Releaser  fundsReleaser
	Logger    *logger.Logger
}

// Service gathers the inputs of an allocation run from the backend.
type Service struct {
	engine    *Engine
	orders    orderSource
	timeCards timeCardSource
	releaser  fundsReleaser
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("allocation engine is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order source is required")
	}
	if params.TimeCards == nil {
		return nil, fmt.Errorf("time card source is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		engine:    params.Engine,
		orders:    params.Orders,
		timeCards: params.TimeCards,
		releaser:  params.Releaser,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Compute loads every owner's orders and all time cards, then runs the engine.
func (s *Service) Compute(ctx context.Context, cfg *frconfig.Config, amounts Amounts) (*Report, error) {
	var (
		all     []*orders.Order
		entries []timecards.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.orders.Query(gctx, orders.QueryFilter{OrderOwner: orders.AnyOwner})
		if err != nil {
			return err
		}
		all = list
		return nil
	})
	g.Go(func() error {
		list, err := s.timeCards.Query(gctx, "")
		if err != nil {
			return err
		}
		entries = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	minutes, err := timecards.MinutesByUser(entries)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "skipping malformed time cards")
	}

	return s.engine.Compute(Input{
		Orders:          all,
		DeliveryMinutes: minutes,
		BankDeposited:   amounts.BankDeposited,
		MulchCost:       amounts.MulchCost,
		Config:          cfg,
	})
}

// Release computes the allocation and persists it as released by releasedBy.
func (s *Service) Release(ctx context.Context, cfg *frconfig.Config, amounts Amounts, releasedBy string) (*Report, error) {
	if s.releaser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "funds releaser not configured")
	}
	report, err := s.Compute(ctx, cfg, amounts)
	if err != nil {
		return nil, err
	}
	if err := s.releaser.ReleaseFunds(ctx, report.Release(releasedBy, s.now())); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"released_by": releasedBy,
		"users":       len(report.Users),
		"troop_share": report.Summary.TroopShare.StringFixed(2),
	})
	s.logg.Info(ctx, "funds released")
	return report, nil
}
