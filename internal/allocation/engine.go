// Package allocation splits a fundraiser's proceeds between the troop and its scouts.
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/pkg/config"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/money"
)

var two = decimal.NewFromInt(2)

// Policy holds the knobs of the split.
type Policy struct {
	// TroopShare is the fraction of gross profit kept by the troop.
	TroopShare decimal.Decimal
	// InferDonations treats the excess of TotalAmt over ProductsCost on a delivery
	// order without an explicit donation as a donation, as older reports did.
	InferDonations bool
}

// DefaultPolicy keeps 20% for the troop and infers donations.
func DefaultPolicy() Policy {
	return Policy{TroopShare: decimal.RequireFromString("0.20"), InferDonations: true}
}

// PolicyFromConfig builds the policy from the allocation settings.
func PolicyFromConfig(cfg config.AllocationConfig) Policy {
	return Policy{TroopShare: decimal.NewFromFloat(cfg.TroopShare), InferDonations: cfg.InferDonations}
}

// Input is everything one run needs. The engine keeps nothing between runs.
type Input struct {
	Orders          []*orders.Order
	DeliveryMinutes map[string]int
	BankDeposited   decimal.Decimal
	MulchCost       decimal.Decimal
	Config          *frconfig.Config
}

// Summary is the campaign-wide result, rounded to cents.
type Summary struct {
	TotalBagsSold             int             `json:"totalBagsSold"`
	TotalBagsSpread           int             `json:"totalBagsSpread"`
	UnassignedBagsSpread      int             `json:"unassignedBagsSpread"`
	TotalDeliveryMinutes      int             `json:"totalDeliveryMinutes"`
	TotalDonations            decimal.Decimal `json:"totalDonations"`
	BankDeposited             decimal.Decimal `json:"bankDeposited"`
	MulchCost                 decimal.Decimal `json:"mulchCost"`
	SpreadingTotal            decimal.Decimal `json:"spreadingTotal"`
	PerBagAvgEarnings         decimal.Decimal `json:"perBagAvgEarnings"`
	PerBagCost                decimal.Decimal `json:"perBagCost"`
	GrossProfit               decimal.Decimal `json:"grossProfit"`
	TroopShare                decimal.Decimal `json:"troopShare"`
	ScoutShare                decimal.Decimal `json:"scoutShare"`
	BagSalesShare             decimal.Decimal `json:"bagSalesShare"`
	DeliveryShare             decimal.Decimal `json:"deliveryShare"`
	DeliveryEarningsPerMinute decimal.Decimal `json:"deliveryEarningsPerMinute"`
}

// UserReport is one participant's share, rounded to cents.
type UserReport struct {
	UID                     string          `json:"uid"`
	Name                    string          `json:"name"`
	BagsSold                int             `json:"bagsSold"`
	BagsSpread              decimal.Decimal `json:"bagsSpread"`
	DeliveryMinutes         int             `json:"deliveryMinutes"`
	Donations               decimal.Decimal `json:"donations"`
	AllocationFromBags      decimal.Decimal `json:"allocationFromBags"`
	AllocationFromSpreading decimal.Decimal `json:"allocationFromSpreading"`
	AllocationFromDelivery  decimal.Decimal `json:"allocationFromDelivery"`
	AllocationTotal         decimal.Decimal `json:"allocationTotal"`
}

type Report struct {
	Summary Summary      `json:"summary"`
	Users   []UserReport `json:"users"`
}

// User returns the report for uid.
func (r *Report) User(uid string) (UserReport, bool) {
	for _, u := range r.Users {
		if u.UID == uid {
			return u, true
		}
	}
	return UserReport{}, false
}

// Engine computes allocation reports. It is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine returns an engine applying policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// tally accumulates one user's unrounded figures.
type tally struct {
	bagsSold        int
	bagsSpread      decimal.Decimal
	minutes         int
	revenue         decimal.Decimal
	donations       decimal.Decimal
	spreadingPayout decimal.Decimal
}

// Compute runs the allocation. Values stay unrounded until the end, where each reported
// amount is rounded to the cent once. Zero bags, profit or minutes give zero rates.
func (e *Engine) Compute(in Input) (*Report, error) {
	if in.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfigUnavailable, "configuration unavailable")
	}
	details := map[string]string{}
	if in.BankDeposited.IsNegative() {
		details["bankDeposited"] = "must not be negative"
	}
	if in.MulchCost.IsNegative() {
		details["mulchCost"] = "must not be negative"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	mulch, _ := in.Config.Product(in.Config.MulchProductID())
	spreading, _ := in.Config.Product(in.Config.SpreadingProductID())
	spreadPrice := spreading.UnitPrice

	tallies := map[string]*tally{}
	get := func(uid string) *tally {
		t, ok := tallies[uid]
		if !ok {
			t = &tally{}
			tallies[uid] = t
		}
		return t
	}

	totalBagsSold, totalBagsSpread, unassignedSpread := 0, 0, 0
	totalDonations := decimal.Zero
	for _, o := range in.Orders {
		if o == nil {
			continue
		}
		owner := get(o.OrderOwner)

		if bags := o.Quantity(mulch.ID); bags > 0 && mulch.ID != "" {
			owner.bagsSold += bags
			owner.revenue = owner.revenue.Add(mulch.Cost(bags))
			totalBagsSold += bags
		}

		qty := 0
		if spreading.ID != "" {
			qty = o.Quantity(spreading.ID)
		}
		// Only spreading with recorded spreaders counts toward the total and its deduction.
		if qty > 0 && len(o.Spreaders) == 0 {
			unassignedSpread += qty
		} else if qty > 0 {
			totalBagsSpread += qty
			n := decimal.NewFromInt(int64(len(o.Spreaders)))
			payout := spreadPrice.Mul(decimal.NewFromInt(int64(qty))).Div(n)
			bagsEach := decimal.NewFromInt(int64(qty)).Div(n)
			for _, uid := range o.Spreaders {
				sp := get(uid)
				sp.spreadingPayout = sp.spreadingPayout.Add(payout)
				sp.bagsSpread = sp.bagsSpread.Add(bagsEach)
			}
		}

		donation := e.donation(o)
		owner.donations = owner.donations.Add(donation)
		totalDonations = totalDonations.Add(donation)
	}

	totalMinutes := 0
	for uid, minutes := range in.DeliveryMinutes {
		if minutes <= 0 {
			continue
		}
		get(uid).minutes += minutes
		totalMinutes += minutes
	}

	spreadingTotal := spreadPrice.Mul(decimal.NewFromInt(int64(totalBagsSpread)))
	gross := in.BankDeposited.Sub(spreadingTotal).Sub(in.MulchCost).Sub(totalDonations)
	troop := gross.Mul(e.policy.TroopShare)
	scouts := gross.Sub(troop)
	bagShare := scouts.Div(two)
	deliveryShare := scouts.Sub(bagShare)

	perBagCost := ratio(in.MulchCost, totalBagsSold)
	perBagAvg := ratio(bagShare, totalBagsSold)
	perMinute := ratio(deliveryShare, totalMinutes)

	profits := make(map[string]decimal.Decimal, len(tallies))
	totalProfit := decimal.Zero
	for uid, t := range tallies {
		p := t.revenue.Sub(perBagCost.Mul(decimal.NewFromInt(int64(t.bagsSold))))
		profits[uid] = p
		totalProfit = totalProfit.Add(p)
	}

	report := &Report{Summary: Summary{
		TotalBagsSold:             totalBagsSold,
		TotalBagsSpread:           totalBagsSpread,
		UnassignedBagsSpread:      unassignedSpread,
		TotalDeliveryMinutes:      totalMinutes,
		TotalDonations:            money.Cents(totalDonations),
		BankDeposited:             money.Cents(in.BankDeposited),
		MulchCost:                 money.Cents(in.MulchCost),
		SpreadingTotal:            money.Cents(spreadingTotal),
		PerBagAvgEarnings:         money.Cents(perBagAvg),
		PerBagCost:                money.Cents(perBagCost),
		GrossProfit:               money.Cents(gross),
		TroopShare:                money.Cents(troop),
		ScoutShare:                money.Cents(scouts),
		BagSalesShare:             money.Cents(bagShare),
		DeliveryShare:             money.Cents(deliveryShare),
		DeliveryEarningsPerMinute: money.Cents(perMinute),
	}}

	for uid, t := range tallies {
		fromBags := decimal.Zero
		if !totalProfit.IsZero() {
			fromBags = bagShare.Mul(profits[uid]).Div(totalProfit)
		}
		fromDelivery := decimal.Zero
		if totalMinutes > 0 {
			fromDelivery = deliveryShare.Mul(decimal.NewFromInt(int64(t.minutes))).Div(decimal.NewFromInt(int64(totalMinutes)))
		}
		total := fromBags.Add(t.spreadingPayout).Add(fromDelivery).Add(t.donations)
		report.Users = append(report.Users, UserReport{
			UID:                     uid,
			Name:                    in.Config.UserName(uid),
			BagsSold:                t.bagsSold,
			BagsSpread:              t.bagsSpread.Round(2),
			DeliveryMinutes:         t.minutes,
			Donations:               money.Cents(t.donations),
			AllocationFromBags:      money.Cents(fromBags),
			AllocationFromSpreading: money.Cents(t.spreadingPayout),
			AllocationFromDelivery:  money.Cents(fromDelivery),
			AllocationTotal:         money.Cents(total),
		})
	}
	sort.Slice(report.Users, func(i, j int) bool { return report.Users[i].UID < report.Users[j].UID })
	return report, nil
}

// donation credits the order's explicit donation, or the inferred one when enabled.
func (e *Engine) donation(o *orders.Order) decimal.Decimal {
	if o.Donation != nil {
		return *o.Donation
	}
	if !e.policy.InferDonations {
		return decimal.Zero
	}
	if o.IsDonationOnly() || !o.ProductsCost.IsPositive() || !o.TotalAmt.GreaterThan(o.ProductsCost) {
		return decimal.Zero
	}
	return o.TotalAmt.Sub(o.ProductsCost)
}

func ratio(amount decimal.Decimal, units int) decimal.Decimal {
	if units <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(units)))
}
