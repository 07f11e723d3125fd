package timecards

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/troopfundraiser/frclient/pkg/backend"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

const (
	cmdQuery       = "query"
	cmdAddOrUpdate = "add_or_update"
	cmdDelete      = "delete"
)

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

type command struct {
	Cmd     string `json:"cmd"`
	Payload any    `json:"payload,omitempty"`
}

// Client talks to /timecards.
type Client struct {
	caller backend.Caller
}

// NewClient returns a time card client that posts through caller.
func NewClient(caller backend.Caller) *Client {
	return &Client{caller: caller}
}

// Query lists the time cards of one delivery date, or all of them when deliveryID is blank.
func (c *Client) Query(ctx context.Context, deliveryID string) ([]Entry, error) {
	payload := map[string]string{}
	if id := strings.TrimSpace(deliveryID); id != "" {
		payload["deliveryId"] = id
	}
	var entries []Entry
	if err := c.caller.Post(ctx, backend.EndpointTimeCards, command{Cmd: cmdQuery, Payload: payload}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save adds or updates entries. Totals are recomputed from the clock times, and nothing is
// sent when any entry is invalid.
func (c *Client) Save(ctx context.Context, entries []Entry) error {
	problems := map[string]string{}
	prepared := make([]Entry, 0, len(entries))
	for i, e := range entries {
		key := fmt.Sprintf("entries[%d]", i)
		if err := validate.Struct(e); err != nil {
			problems[key] = err.Error()
			continue
		}
		withTotal, err := e.WithTotal()
		if err != nil {
			problems[key] = pkgerrors.As(err).Message()
			continue
		}
		prepared = append(prepared, withTotal)
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(problems)
	}
	if len(prepared) == 0 {
		return nil
	}
	return c.caller.Post(ctx, backend.EndpointTimeCards, command{Cmd: cmdAddOrUpdate, Payload: prepared}, nil)
}

// Delete removes one user's entry for a delivery date.
func (c *Client) Delete(ctx context.Context, deliveryID, uid string) error {
	if strings.TrimSpace(deliveryID) == "" || strings.TrimSpace(uid) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "deliveryId and uid are required")
	}
	return c.caller.Post(ctx, backend.EndpointTimeCards, command{
		Cmd:     cmdDelete,
		Payload: Entry{DeliveryID: deliveryID, UID: uid},
	}, nil)
}
