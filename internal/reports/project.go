package reports

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/pkg/enums"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/money"
)

// Scope says who is looking and whose orders they selected.
// SelectedUser is a user id, orders.AnyOwner, or blank for the viewer.
type Scope struct {
	ViewerID     string
	IsAdmin      bool
	SelectedUser string
}

func (s Scope) selected() string {
	if strings.TrimSpace(s.SelectedUser) == "" {
		return s.ViewerID
	}
	return s.SelectedUser
}

// ShowOwner reports whether the order owner column is visible. It is hidden when the
// viewer looks at their own orders and shown when an admin looks at anyone else's.
func (s Scope) ShowOwner() bool {
	return s.IsAdmin && s.selected() != s.ViewerID
}

func (s Scope) includes(o *orders.Order) bool {
	sel := s.selected()
	return sel == orders.AnyOwner || o.OrderOwner == sel
}

const (
	colOrderID          = "orderId"
	colOwner            = "orderOwner"
	colName             = "name"
	colPhone            = "phone"
	colEmail            = "email"
	colAddr1            = "addr1"
	colAddr2            = "addr2"
	colNeighborhood     = "neighborhood"
	colDistribution     = "distributionPoint"
	colInstructions     = "specialInstructions"
	colComments         = "comments"
	colDeliveryDate     = "deliveryDate"
	colProducts         = "products"
	colProductsCost     = "productsCost"
	colDonation         = "donation"
	colTotal            = "totalAmt"
	colCash             = "cashPaid"
	colCheck            = "checkPaid"
	colCheckNums        = "checkNums"
	colAmountPaid       = "amountPaid"
	colAmountDue        = "amountDue"
	colCollectLater     = "doCollectMoneyLater"
	colSpreaders        = "spreaders"
	colVerified         = "isVerified"
	colLastModified     = "lastModifiedTime"
	colSpreadingQty     = "spreadingQty"
	colOrderCount       = "orderCount"
	productColumnPrefix = "product:"
)

// Project renders orders as the given view for scope. It never modifies the orders.
func Project(view enums.ReportView, all []*orders.Order, scope Scope, cfg *frconfig.Config) (*Table, error) {
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfigUnavailable, "configuration unavailable")
	}
	sel := scope.selected()
	if !scope.IsAdmin && sel != scope.ViewerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can view other users' orders")
	}

	selected := make([]*orders.Order, 0, len(all))
	for _, o := range all {
		if o != nil && scope.includes(o) {
			selected = append(selected, o)
		}
	}
	sortOrders(selected)

	p := projector{cfg: cfg, scope: scope}
	switch view {
	case enums.ReportViewDefault:
		return p.defaultView(selected), nil
	case enums.ReportViewFull:
		return p.fullView(selected), nil
	case enums.ReportViewVerification:
		return p.verificationView(selected), nil
	case enums.ReportViewSpreadingJobs:
		return p.spreadingJobsView(selected), nil
	case enums.ReportViewMoneyCollection:
		return p.moneyCollectionView(selected), nil
	case enums.ReportViewDistributionPoints:
		return p.distributionPointsView(selected), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown report view %q", view))
}

type projector struct {
	cfg   *frconfig.Config
	scope Scope
}

func (p projector) columns(cols ...Column) []Column {
	out := make([]Column, 0, len(cols)+1)
	for _, c := range cols {
		if c.Key == colOwner && !p.scope.ShowOwner() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (p projector) defaultView(list []*orders.Order) *Table {
	t := &Table{Title: "Orders", Columns: p.columns(
		Column{Key: colOwner, Title: "Order Owner"},
		Column{Key: colName, Title: "Name"},
		Column{Key: colAddr1, Title: "Address"},
		Column{Key: colNeighborhood, Title: "Neighborhood"},
		Column{Key: colDeliveryDate, Title: "Delivery Date"},
		Column{Key: colProducts, Title: "Products"},
		Column{Key: colTotal, Title: "Total"},
		actionsColumn,
	)}
	for _, o := range list {
		t.Rows = append(t.Rows, p.row(o, p.editActions(o)))
	}
	return t
}

func (p projector) fullView(list []*orders.Order) *Table {
	cols := []Column{
		{Key: colOrderID, Title: "Order ID"},
		{Key: colOwner, Title: "Order Owner"},
		{Key: colName, Title: "Name"},
		{Key: colPhone, Title: "Phone"},
		{Key: colEmail, Title: "Email"},
		{Key: colAddr1, Title: "Address 1"},
		{Key: colAddr2, Title: "Address 2"},
		{Key: colNeighborhood, Title: "Neighborhood"},
		{Key: colInstructions, Title: "Special Instructions"},
		{Key: colDeliveryDate, Title: "Delivery Date"},
	}
	for _, id := range p.cfg.ProductIDs() {
		product, _ := p.cfg.Product(id)
		cols = append(cols, Column{Key: productColumnPrefix + id, Title: firstNonEmpty(product.Label, id)})
	}
	cols = append(cols,
		Column{Key: colProductsCost, Title: "Products Cost"},
		Column{Key: colDonation, Title: "Donation"},
		Column{Key: colTotal, Title: "Total"},
		Column{Key: colCash, Title: "Cash"},
		Column{Key: colCheck, Title: "Check"},
		Column{Key: colCheckNums, Title: "Check Numbers"},
		Column{Key: colCollectLater, Title: "Collect Later"},
		Column{Key: colSpreaders, Title: "Spreaders"},
		Column{Key: colVerified, Title: "Verified"},
		Column{Key: colComments, Title: "Comments"},
		Column{Key: colLastModified, Title: "Last Modified"},
		actionsColumn,
	)
	t := &Table{Title: "Full Report", Columns: p.columns(cols...)}
	for _, o := range list {
		t.Rows = append(t.Rows, p.row(o, p.editActions(o)))
	}
	return t
}

func (p projector) verificationView(list []*orders.Order) *Table {
	t := &Table{Title: "Verification", Columns: p.columns(
		Column{Key: colOwner, Title: "Order Owner"},
		Column{Key: colName, Title: "Name"},
		Column{Key: colDeliveryDate, Title: "Delivery Date"},
		Column{Key: colTotal, Title: "Total"},
		Column{Key: colCash, Title: "Cash"},
		Column{Key: colCheck, Title: "Check"},
		Column{Key: colCheckNums, Title: "Check Numbers"},
		Column{Key: colAmountDue, Title: "Amount Due"},
		Column{Key: colVerified, Title: "Verified"},
		actionsColumn,
	)}
	for _, o := range list {
		var actions []Action
		if p.scope.IsAdmin {
			actions = append(actions, ActionVerify)
		}
		t.Rows = append(t.Rows, p.row(o, actions))
	}
	return t
}

func (p projector) spreadingJobsView(list []*orders.Order) *Table {
	t := &Table{Title: "Spreading Jobs", Columns: p.columns(
		Column{Key: colOwner, Title: "Order Owner"},
		Column{Key: colName, Title: "Name"},
		Column{Key: colPhone, Title: "Phone"},
		Column{Key: colAddr1, Title: "Address"},
		Column{Key: colNeighborhood, Title: "Neighborhood"},
		Column{Key: colDeliveryDate, Title: "Delivery Date"},
		Column{Key: colSpreadingQty, Title: "Bags to Spread"},
		Column{Key: colSpreaders, Title: "Spreaders"},
		Column{Key: colInstructions, Title: "Special Instructions"},
		actionsColumn,
	)}
	spreadingID := p.cfg.SpreadingProductID()
	for _, o := range list {
		if o.Quantity(spreadingID) <= 0 {
			continue
		}
		var actions []Action
		if len(o.Spreaders) == 0 {
			actions = append(actions, ActionSpreadingComplete)
		}
		t.Rows = append(t.Rows, p.row(o, actions))
	}
	return t
}

func (p projector) moneyCollectionView(list []*orders.Order) *Table {
	t := &Table{Title: "Money Collection", Columns: p.columns(
		Column{Key: colOwner, Title: "Order Owner"},
		Column{Key: colName, Title: "Name"},
		Column{Key: colPhone, Title: "Phone"},
		Column{Key: colTotal, Title: "Total"},
		Column{Key: colAmountPaid, Title: "Amount Paid"},
		Column{Key: colAmountDue, Title: "Amount Due"},
		Column{Key: colCheckNums, Title: "Check Numbers"},
		actionsColumn,
	)}
	for _, o := range list {
		if !o.DoCollectMoneyLater && o.AmountDue().IsZero() {
			continue
		}
		t.Rows = append(t.Rows, p.row(o, p.editActions(o)))
	}
	return t
}

// distributionPointsView counts bags per distribution point and delivery date.
func (p projector) distributionPointsView(list []*orders.Order) *Table {
	t := &Table{Title: "Distribution Points", Columns: []Column{
		{Key: colDistribution, Title: "Distribution Point"},
		{Key: colDeliveryDate, Title: "Delivery Date"},
		{Key: colOrderCount, Title: "Orders"},
		{Key: productColumnPrefix + p.cfg.MulchProductID(), Title: "Bags"},
		{Key: colSpreadingQty, Title: "Bags to Spread"},
	}}

	type bucket struct {
		point, date          string
		orders, bags, spread int
	}
	buckets := map[string]*bucket{}
	for _, o := range list {
		if o.IsDonationOnly() {
			continue
		}
		point := "Unassigned"
		if n, ok := p.cfg.Neighborhood(o.Neighborhood); ok && n.DistributionPoint != "" {
			point = n.DistributionPoint
		}
		date := p.deliveryLabel(o.DeliveryID)
		key := point + "\x00" + date
		b, ok := buckets[key]
		if !ok {
			b = &bucket{point: point, date: date}
			buckets[key] = b
		}
		b.orders++
		b.bags += o.Quantity(p.cfg.MulchProductID())
		b.spread += o.Quantity(p.cfg.SpreadingProductID())
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b := buckets[k]
		t.Rows = append(t.Rows, Row{Key: k, Values: map[string]string{
			colDistribution: b.point,
			colDeliveryDate: b.date,
			colOrderCount:   strconv.Itoa(b.orders),
			productColumnPrefix + p.cfg.MulchProductID(): strconv.Itoa(b.bags),
			colSpreadingQty: strconv.Itoa(b.spread),
		}})
	}
	return t
}

func (p projector) editActions(o *orders.Order) []Action {
	if o.ReadOnly {
		return []Action{ActionView}
	}
	return []Action{ActionEdit, ActionDelete}
}

// row renders every known column for o; columns absent from the table are ignored on export.
func (p projector) row(o *orders.Order, actions []Action) Row {
	values := map[string]string{
		colOrderID:      o.OrderID,
		colOwner:        o.OrderOwner,
		colName:         o.Name,
		colPhone:        o.Phone,
		colEmail:        o.Email,
		colAddr1:        o.AddrStreet,
		colAddr2:        o.AddrCity,
		colNeighborhood: o.Neighborhood,
		colInstructions: o.SpecialInstructions,
		colComments:     o.Comments,
		colDeliveryDate: p.deliveryLabel(o.DeliveryID),
		colProducts:     p.productSummary(o),
		colProductsCost: money.Format(o.ProductsCost),
		colDonation:     formatOptional(o.Donation),
		colTotal:        money.Format(o.TotalAmt),
		colCash:         money.Format(o.CashPaid),
		colCheck:        money.Format(o.CheckPaid),
		colCheckNums:    o.CheckNums,
		colAmountPaid:   money.Format(o.AmountPaid()),
		colAmountDue:    money.Format(o.AmountDue()),
		colCollectLater: yesNo(o.DoCollectMoneyLater),
		colSpreaders:    p.names(o.Spreaders),
		colVerified:     yesNo(o.IsVerified),
		colLastModified: o.LastModifiedTime,
		colSpreadingQty: strconv.Itoa(o.Quantity(p.cfg.SpreadingProductID())),
	}
	for _, id := range p.cfg.ProductIDs() {
		values[productColumnPrefix+id] = strconv.Itoa(o.Quantity(id))
	}
	return Row{Key: o.OrderID, Values: values, Actions: actions}
}

func (p projector) deliveryLabel(id string) string {
	if id == "" || id == frconfig.DonationDeliveryID {
		return "Donation"
	}
	if d, ok := p.cfg.DeliveryDate(id); ok && d.Date != "" {
		return d.Date
	}
	return id
}

func (p projector) productSummary(o *orders.Order) string {
	ids := o.ProductIDs()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		label := id
		if product, ok := p.cfg.Product(id); ok && product.Label != "" {
			label = product.Label
		}
		parts = append(parts, fmt.Sprintf("%s: %d", label, o.Quantity(id)))
	}
	return strings.Join(parts, "; ")
}

func (p projector) names(ids []string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = p.cfg.UserName(id)
	}
	return strings.Join(names, "; ")
}

func sortOrders(list []*orders.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.OrderOwner != b.OrderOwner {
			return a.OrderOwner < b.OrderOwner
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.OrderID < b.OrderID
	})
}

func formatOptional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return money.Format(*d)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
