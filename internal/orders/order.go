package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/pkg/money"
)

// AnyOwner asks the backend for every owner's orders.
const AnyOwner = "any"

// Order is one customer order or donation as stored by the backend.
type Order struct {
	OrderID    string `json:"orderId" validate:"required,uuid"`
	OrderOwner string `json:"orderOwner" validate:"required,max=128"`

	Name                string `json:"name" validate:"required,max=128"`
	Phone               string `json:"phone,omitempty" validate:"max=32"`
	Email               string `json:"email,omitempty" validate:"omitempty,email"`
	AddrStreet          string `json:"addr1,omitempty" validate:"max=256"`
	AddrCity            string `json:"addr2,omitempty" validate:"max=256"`
	Neighborhood        string `json:"neighborhood,omitempty"`
	SpecialInstructions string `json:"specialInstructions,omitempty" validate:"max=1024"`
	Comments            string `json:"comments,omitempty" validate:"max=1024"`

	Products     map[string]int   `json:"products,omitempty" validate:"dive,gte=0"`
	ProductsCost decimal.Decimal  `json:"productsCost"`
	Donation     *decimal.Decimal `json:"donation,omitempty"`
	TotalAmt     decimal.Decimal  `json:"totalAmt"`

	CashPaid            decimal.Decimal `json:"cashPaid"`
	CheckPaid           decimal.Decimal `json:"checkPaid"`
	CheckNums           string          `json:"checkNums,omitempty" validate:"max=256"`
	DoCollectMoneyLater bool            `json:"doCollectMoneyLater,omitempty"`

	DeliveryID string   `json:"deliveryId,omitempty"`
	Spreaders  []string `json:"spreaders,omitempty" validate:"dive,required"`
	IsVerified bool     `json:"isVerified,omitempty"`

	LastModifiedTime string `json:"lastModifiedTime,omitempty"`

	FromDB        bool   `json:"-"`
	ReadOnly      bool   `json:"-"`
	OriginalOwner string `json:"-"`
}

// New starts a blank order for owner with a fresh id.
func New(owner string) *Order {
	return &Order{
		OrderID:    uuid.NewString(),
		OrderOwner: owner,
		Products:   map[string]int{},
	}
}

// Hydrate marks an order returned by a query as loaded from the backend.
func Hydrate(o Order, readOnly bool) *Order {
	o.FromDB = true
	o.ReadOnly = readOnly
	o.OriginalOwner = o.OrderOwner
	if o.Products == nil {
		o.Products = map[string]int{}
	}
	return &o
}

// OwnerChanged reports whether the order must be removed from its original owner before it is saved.
func (o *Order) OwnerChanged() bool {
	return o.FromDB && o.OriginalOwner != "" && o.OriginalOwner != o.OrderOwner
}

func (o *Order) DonationAmount() decimal.Decimal {
	if o.Donation == nil {
		return decimal.Zero
	}
	return *o.Donation
}

func (o *Order) HasDonation() bool {
	return o.Donation != nil && o.Donation.IsPositive()
}

// HasProducts reports whether any product has a positive quantity.
func (o *Order) HasProducts() bool {
	for _, qty := range o.Products {
		if qty > 0 {
			return true
		}
	}
	return false
}

// IsDonationOnly is true for orders with nothing to deliver.
func (o *Order) IsDonationOnly() bool {
	return o.DeliveryID == "" || o.DeliveryID == frconfig.DonationDeliveryID
}

func (o *Order) Quantity(productID string) int {
	return o.Products[productID]
}

// ProductIDs lists the ordered products in sorted order.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Products))
	for id, qty := range o.Products {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (o *Order) AmountPaid() decimal.Decimal {
	return o.CashPaid.Add(o.CheckPaid)
}

func (o *Order) AmountDue() decimal.Decimal {
	return o.TotalAmt.Sub(o.AmountPaid())
}

// SetProduct sets the quantity of productID and recomputes the totals with tiered pricing.
func (o *Order) SetProduct(cfg *frconfig.Config, productID string, qty int) error {
	if _, ok := cfg.Product(productID); !ok {
		return fmt.Errorf("unknown product %q", productID)
	}
	if qty < 0 {
		return fmt.Errorf("quantity for %q must not be negative", productID)
	}
	if o.Products == nil {
		o.Products = map[string]int{}
	}
	if qty == 0 {
		delete(o.Products, productID)
	} else {
		o.Products[productID] = qty
	}
	o.Recalculate(cfg)
	return nil
}

// SetDonation sets or clears the donation and recomputes the total.
func (o *Order) SetDonation(amount *decimal.Decimal) {
	if amount == nil || amount.IsZero() {
		o.Donation = nil
	} else {
		v := money.Cents(*amount)
		o.Donation = &v
	}
	o.TotalAmt = o.ProductsCost.Add(o.DonationAmount())
}

// Recalculate derives ProductsCost and TotalAmt from the product quantities.
func (o *Order) Recalculate(cfg *frconfig.Config) {
	o.ProductsCost = ProductsCost(cfg, o.Products)
	o.TotalAmt = o.ProductsCost.Add(o.DonationAmount())
}

// ProductsCost prices quantities against the catalog. Unknown products cost nothing.
func ProductsCost(cfg *frconfig.Config, quantities map[string]int) decimal.Decimal {
	total := decimal.Zero
	for id, qty := range quantities {
		p, ok := cfg.Product(id)
		if !ok {
			continue
		}
		total = total.Add(p.Cost(qty))
	}
	return money.Cents(total)
}

// UnmarshalJSON accepts currency fields as numbers, strings or blanks.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	aux := struct {
		*plain
		ProductsCost json.RawMessage `json:"productsCost"`
		Donation     json.RawMessage `json:"donation"`
		TotalAmt     json.RawMessage `json:"totalAmt"`
		CashPaid     json.RawMessage `json:"cashPaid"`
		CheckPaid    json.RawMessage `json:"checkPaid"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if o.ProductsCost, err = money.FromJSON(aux.ProductsCost); err != nil {
		return fmt.Errorf("productsCost: %w", err)
	}
	if o.TotalAmt, err = money.FromJSON(aux.TotalAmt); err != nil {
		return fmt.Errorf("totalAmt: %w", err)
	}
	if o.CashPaid, err = money.FromJSON(aux.CashPaid); err != nil {
		return fmt.Errorf("cashPaid: %w", err)
	}
	if o.CheckPaid, err = money.FromJSON(aux.CheckPaid); err != nil {
		return fmt.Errorf("checkPaid: %w", err)
	}
	o.Donation = nil
	if raw := bytes.TrimSpace(aux.Donation); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) && !bytes.Equal(raw, []byte(`""`)) {
		donation, err := money.FromJSON(raw)
		if err != nil {
			return fmt.Errorf("donation: %w", err)
		}
		o.Donation = &donation
	}
	return nil
}
