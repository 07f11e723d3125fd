// Package users wraps the administrative /users command channel.
package users

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/pkg/backend"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

const (
	cmdGetUserInfo  = "get_user_info"
	cmdReleaseFunds = "release_funds"
)

// Info describes the signed-in user as the backend knows them.
type Info struct {
	UID       string   `json:"uid"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Groups    []string `json:"groups,omitempty"`
}

// ReleasedUser is one seller's finalized allocation.
type ReleasedUser struct {
	UID                     string          `json:"uid"`
	Name                    string          `json:"name,omitempty"`
	BagsSold                int             `json:"bagsSold"`
	BagsSpread              decimal.Decimal `json:"bagsSpread"`
	DeliveryMinutes         int             `json:"deliveryMinutes"`
	Donations               decimal.Decimal `json:"donations"`
	AllocationFromBags      decimal.Decimal `json:"allocationFromBags"`
	AllocationFromSpreading decimal.Decimal `json:"allocationFromSpreading"`
	AllocationFromDelivery  decimal.Decimal `json:"allocationFromDelivery"`
	AllocationTotal         decimal.Decimal `json:"allocationTotal"`
}

// FundsRelease is the summary persisted when an admin releases funds.
type FundsRelease struct {
	ReleasedBy    string          `json:"releasedBy"`
	ReleasedAt    time.Time       `json:"releasedAt"`
	BankDeposited decimal.Decimal `json:"bankDeposited"`
	MulchCost     decimal.Decimal `json:"mulchCost"`
	GrossProfit   decimal.Decimal `json:"grossProfit"`
	TroopShare    decimal.Decimal `json:"troopShare"`
	ScoutShare    decimal.Decimal `json:"scoutShare"`
	Users         []ReleasedUser  `json:"users"`
}

type command struct {
	Cmd     string `json:"cmd"`
	Payload any    `json:"payload,omitempty"`
}

type Client struct {
	caller backend.Caller
}

func NewClient(caller backend.Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) GetUserInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.caller.Post(ctx, backend.EndpointUsers, command{Cmd: cmdGetUserInfo}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ReleaseFunds persists the finalized allocation.
func (c *Client) ReleaseFunds(ctx context.Context, release FundsRelease) error {
	if strings.TrimSpace(release.ReleasedBy) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "releasedBy is required")
	}
	if len(release.Users) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing to release")
	}
	return c.caller.Post(ctx, backend.EndpointUsers, command{Cmd: cmdReleaseFunds, Payload: release}, nil)
}
