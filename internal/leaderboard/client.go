// Package leaderboard reads the per-seller sales summary the backend aggregates.
package leaderboard

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/pkg/backend"
)

// Entry is one seller's standing.
type Entry struct {
	UID        string          `json:"uid"`
	Name       string          `json:"name,omitempty"`
	BagsSold   int             `json:"bags"`
	BagsSpread decimal.Decimal `json:"spreading"`
	Donations  decimal.Decimal `json:"donations"`
	AmountSold decimal.Decimal `json:"totalAmt"`
}

// Board is the leaderboard as returned by /leaderboard.
type Board struct {
	Entries []Entry `json:"users"`
}

// Totals sums every entry.
func (b *Board) Totals() Entry {
	total := Entry{UID: "total"}
	for _, e := range b.Entries {
		total.BagsSold += e.BagsSold
		total.BagsSpread = total.BagsSpread.Add(e.BagsSpread)
		total.Donations = total.Donations.Add(e.Donations)
		total.AmountSold = total.AmountSold.Add(e.AmountSold)
	}
	return total
}

// Top returns up to n entries ranked by bags sold, then amount sold. n <= 0 returns all.
func (b *Board) Top(n int) []Entry {
	ranked := append([]Entry(nil), b.Entries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].BagsSold != ranked[j].BagsSold {
			return ranked[i].BagsSold > ranked[j].BagsSold
		}
		return ranked[i].AmountSold.GreaterThan(ranked[j].AmountSold)
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

type Client struct {
	caller backend.Caller
}

func NewClient(caller backend.Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) Get(ctx context.Context) (*Board, error) {
	var board Board
	if err := c.caller.Post(ctx, backend.EndpointLeaderboard, struct{}{}, &board); err != nil {
		return nil, err
	}
	return &board, nil
}
