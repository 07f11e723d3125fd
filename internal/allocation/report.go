package allocation

import (
	"strconv"
	"time"

	"github.com/troopfundraiser/frclient/internal/reports"
	"github.com/troopfundraiser/frclient/internal/users"
	"github.com/troopfundraiser/frclient/pkg/money"
)

var userColumns = []reports.Column{
	{Key: "uid", Title: "Uid"},
	{Key: "name", Title: "Name"},
	{Key: "bagsSold", Title: "Bags Sold"},
	{Key: "bagsSpread", Title: "Bags Spread"},
	{Key: "deliveryMinutes", Title: "Delivery Minutes"},
	{Key: "donations", Title: "Donations"},
	{Key: "allocationFromBags", Title: "Allocation From Bags Sold"},
	{Key: "allocationFromSpreading", Title: "Allocation From Spreading"},
	{Key: "allocationFromDelivery", Title: "Allocation From Delivery"},
	{Key: "allocationTotal", Title: "Total Allocation"},
}

// Table renders the per-user rows for export.
func (r *Report) Table() *reports.Table {
	t := &reports.Table{Title: "Allocation", Columns: userColumns}
	for _, u := range r.Users {
		t.Rows = append(t.Rows, reports.Row{
			Key: u.UID,
			Values: map[string]string{
				"uid":                     u.UID,
				"name":                    u.Name,
				"bagsSold":                strconv.Itoa(u.BagsSold),
				"bagsSpread":              u.BagsSpread.String(),
				"deliveryMinutes":         strconv.Itoa(u.DeliveryMinutes),
				"donations":               u.Donations.StringFixed(2),
				"allocationFromBags":      u.AllocationFromBags.StringFixed(2),
				"allocationFromSpreading": u.AllocationFromSpreading.StringFixed(2),
				"allocationFromDelivery":  u.AllocationFromDelivery.StringFixed(2),
				"allocationTotal":         u.AllocationTotal.StringFixed(2),
			},
		})
	}
	return t
}

// SummaryTable renders the campaign totals as label/value pairs.
func (r *Report) SummaryTable() *reports.Table {
	s := r.Summary
	pairs := [][2]string{
		{"Bank Deposited", money.Format(s.BankDeposited)},
		{"Mulch Cost", money.Format(s.MulchCost)},
		{"Spreading Total", money.Format(s.SpreadingTotal)},
		{"Total Donations", money.Format(s.TotalDonations)},
		{"Gross Profit", money.Format(s.GrossProfit)},
		{"Troop Share", money.Format(s.TroopShare)},
		{"Scout Share", money.Format(s.ScoutShare)},
		{"Bag Sales Share", money.Format(s.BagSalesShare)},
		{"Delivery Share", money.Format(s.DeliveryShare)},
		{"Total Bags Sold", strconv.Itoa(s.TotalBagsSold)},
		{"Total Bags Spread", strconv.Itoa(s.TotalBagsSpread)},
		{"Unassigned Bags Spread", strconv.Itoa(s.UnassignedBagsSpread)},
		{"Total Delivery Minutes", strconv.Itoa(s.TotalDeliveryMinutes)},
		{"Per Bag Cost", money.Format(s.PerBagCost)},
		{"Per Bag Avg Earnings", money.Format(s.PerBagAvgEarnings)},
		{"Delivery Earnings Per Minute", money.Format(s.DeliveryEarningsPerMinute)},
	}
	t := &reports.Table{
		Title:   "Allocation Summary",
		Columns: []reports.Column{{Key: "label", Title: "Item"}, {Key: "value", Title: "Value"}},
	}
	for _, p := range pairs {
		t.Rows = append(t.Rows, reports.Row{Key: p[0], Values: map[string]string{"label": p[0], "value": p[1]}})
	}
	return t
}

// Release converts the report into the record persisted by the funds-release command.
func (r *Report) Release(releasedBy string, at time.Time) users.FundsRelease {
	out := users.FundsRelease{
		ReleasedBy:    releasedBy,
		ReleasedAt:    at.UTC(),
		BankDeposited: r.Summary.BankDeposited,
		MulchCost:     r.Summary.MulchCost,
		GrossProfit:   r.Summary.GrossProfit,
		TroopShare:    r.Summary.TroopShare,
		ScoutShare:    r.Summary.ScoutShare,
		Users:         make([]users.ReleasedUser, 0, len(r.Users)),
	}
	for _, u := range r.Users {
		out.Users = append(out.Users, users.ReleasedUser{
			UID:                     u.UID,
			Name:                    u.Name,
			BagsSold:                u.BagsSold,
			BagsSpread:              u.BagsSpread,
			DeliveryMinutes:         u.DeliveryMinutes,
			Donations:               u.Donations,
			AllocationFromBags:      u.AllocationFromBags,
			AllocationFromSpreading: u.AllocationFromSpreading,
			AllocationFromDelivery:  u.AllocationFromDelivery,
			AllocationTotal:         u.AllocationTotal,
		})
	}
	return out
}
