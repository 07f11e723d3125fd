// Package frconfig models the fundraiser configuration served by /getconfig.
package frconfig

import (
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/pkg/enums"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/money"
)

const (
	// DonationDeliveryID is the pseudo delivery date every configuration carries.
	DonationDeliveryID = "donation"

	DefaultMulchProductID     = "bags"
	DefaultSpreadingProductID = "spreading"
)

// PriceBreak lowers the unit price once an order's quantity exceeds Gt.
type PriceBreak struct {
	Gt        int
	UnitPrice decimal.Decimal
}

type Product struct {
	ID              string
	Label           string
	CostDescription string
	UnitPrice       decimal.Decimal
	PriceBreaks     []PriceBreak
}

// PriceFor is the lowest price among the breaks whose threshold qty exceeds, or the
// base price when none apply. Breaks are order-level, not cumulative.
func (p Product) PriceFor(qty int) decimal.Decimal {
	price := p.UnitPrice
	for _, br := range p.PriceBreaks {
		if qty > br.Gt && br.UnitPrice.LessThan(price) {
			price = br.UnitPrice
		}
	}
	return price
}

// Cost is qty at the tiered price.
func (p Product) Cost(qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return p.PriceFor(qty).Mul(decimal.NewFromInt(int64(qty)))
}

type Neighborhood struct {
	Name              string
	DistributionPoint string
	ZipCode           string
	IsVisible         bool
}

type DeliveryDate struct {
	ID           string
	Date         string
	DisabledDate string
}

// IsDonation reports whether this is the synthetic donation entry.
func (d DeliveryDate) IsDonation() bool {
	return d.ID == DonationDeliveryID
}

type User struct {
	ID        string
	FirstName string
	LastName  string
	Group     string
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Config is immutable once decoded.
type Config struct {
	kind               enums.FundraiserKind
	description        string
	products           map[string]Product
	neighborhoods      []Neighborhood
	deliveryDates      []DeliveryDate
	users              []User
	mulchProductID     string
	spreadingProductID string
	raw                []byte
}

// Kind reports whether the campaign is a mulch or a product sale.
func (c *Config) Kind() enums.FundraiserKind { return c.kind }

// Description is the campaign's display text.
func (c *Config) Description() string { return c.description }

// MulchProductID is the id of the bag product, or "" when the campaign has none.
func (c *Config) MulchProductID() string { return c.mulchProductID }

// SpreadingProductID is the id of the spreading product, or "" when the campaign has none.
func (c *Config) SpreadingProductID() string { return c.spreadingProductID }

// Raw returns the payload the configuration was decoded from.
func (c *Config) Raw() []byte { return append([]byte(nil), c.raw...) }

// Products returns a copy of the catalog.
func (c *Config) Products() map[string]Product {
	out := make(map[string]Product, len(c.products))
	for id, p := range c.products {
		out[id] = p
	}
	return out
}

func (c *Config) Product(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// ProductIDs lists product ids in sorted order.
func (c *Config) ProductIDs() []string {
	ids := make([]string, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UnitPrice returns the tiered unit price of productID for an order of qty units.
func (c *Config) UnitPrice(productID string, qty int) (decimal.Decimal, bool) {
	p, ok := c.products[productID]
	if !ok {
		return decimal.Zero, false
	}
	return p.PriceFor(qty), true
}

func (c *Config) Neighborhoods() []Neighborhood {
	return append([]Neighborhood(nil), c.neighborhoods...)
}

func (c *Config) Neighborhood(name string) (Neighborhood, bool) {
	for _, n := range c.neighborhoods {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Neighborhood{}, false
}

// DeliveryDates yields the configured dates followed by the donation entry.
// The sequence can be ranged over any number of times.
func (c *Config) DeliveryDates() iter.Seq[DeliveryDate] {
	return func(yield func(DeliveryDate) bool) {
		for _, d := range c.deliveryDates {
			if !yield(d) {
				return
			}
		}
		yield(DeliveryDate{ID: DonationDeliveryID, Date: DonationDeliveryID})
	}
}

func (c *Config) DeliveryDate(id string) (DeliveryDate, bool) {
	for d := range c.DeliveryDates() {
		if d.ID == id {
			return d, true
		}
	}
	return DeliveryDate{}, false
}

func (c *Config) Users() []User {
	return append([]User(nil), c.users...)
}

// UserName returns the roster name for id, or id itself when unknown.
func (c *Config) UserName(id string) string {
	for _, u := range c.users {
		if u.ID == id {
			if name := u.FullName(); name != "" {
				return name
			}
			break
		}
	}
	return id
}

type wireConfig struct {
	Kind               string                 `json:"kind"`
	Description        string                 `json:"description"`
	Products           map[string]wireProduct `json:"products"`
	Neighborhoods      []wireNeighborhood     `json:"neighborhoods"`
	DeliveryDates      []wireDeliveryDate     `json:"deliveryDates"`
	Users              []wireUser             `json:"users"`
	MulchProductID     string                 `json:"mulchProductId"`
	SpreadingProductID string                 `json:"spreadingProductId"`
}

type wireProduct struct {
	ID              string           `json:"id"`
	Label           string           `json:"label"`
	CostDescription string           `json:"costDescription"`
	UnitPrice       json.RawMessage  `json:"unitPrice"`
	PriceBreaks     []wirePriceBreak `json:"priceBreaks"`
}

type wirePriceBreak struct {
	Gt        int             `json:"gt"`
	UnitPrice json.RawMessage `json:"unitPrice"`
}

type wireNeighborhood struct {
	Name              string `json:"name"`
	DistributionPoint string `json:"distributionPt"`
	ZipCode           string `json:"zipcode"`
	IsVisible         *bool  `json:"isVisible"`
}

type wireDeliveryDate struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	DisabledDate string `json:"disabledDate"`
}

type wireUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Group     string `json:"group"`
}

// Decode parses a /getconfig payload. Prices given as numbers or strings become decimals.
func Decode(raw []byte) (*Config, error) {
	var wire wireConfig
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode fundraiser config")
	}

	problems := map[string]string{}
	kind, err := enums.ParseFundraiserKind(wire.Kind)
	if err != nil {
		problems["kind"] = err.Error()
	}

	cfg := &Config{
		kind:               kind,
		description:        wire.Description,
		products:           make(map[string]Product, len(wire.Products)),
		mulchProductID:     firstNonEmpty(wire.MulchProductID, DefaultMulchProductID),
		spreadingProductID: firstNonEmpty(wire.SpreadingProductID, DefaultSpreadingProductID),
		raw:                append([]byte(nil), raw...),
	}

	for id, wp := range wire.Products {
		if wp.ID != "" {
			id = wp.ID
		}
		price, err := money.FromJSON(wp.UnitPrice)
		if err != nil {
			problems[fmt.Sprintf("products.%s.unitPrice", id)] = err.Error()
			continue
		}
		product := Product{ID: id, Label: wp.Label, CostDescription: wp.CostDescription, UnitPrice: price}
		for i, wb := range wp.PriceBreaks {
			bp, err := money.FromJSON(wb.UnitPrice)
			if err != nil {
				problems[fmt.Sprintf("products.%s.priceBreaks[%d]", id, i)] = err.Error()
				continue
			}
			product.PriceBreaks = append(product.PriceBreaks, PriceBreak{Gt: wb.Gt, UnitPrice: bp})
		}
		sort.Slice(product.PriceBreaks, func(i, j int) bool {
			return product.PriceBreaks[i].Gt < product.PriceBreaks[j].Gt
		})
		cfg.products[id] = product
	}

	for _, wn := range wire.Neighborhoods {
		visible := true
		if wn.IsVisible != nil {
			visible = *wn.IsVisible
		}
		cfg.neighborhoods = append(cfg.neighborhoods, Neighborhood{
			Name:              wn.Name,
			DistributionPoint: wn.DistributionPoint,
			ZipCode:           wn.ZipCode,
			IsVisible:         visible,
		})
	}

	for _, wd := range wire.DeliveryDates {
		// The donation entry is synthetic and never stored.
		if wd.ID == DonationDeliveryID {
			continue
		}
		cfg.deliveryDates = append(cfg.deliveryDates, DeliveryDate(wd))
	}

	for _, wu := range wire.Users {
		cfg.users = append(cfg.users, User(wu))
	}

	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fundraiser config").WithDetails(problems)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
