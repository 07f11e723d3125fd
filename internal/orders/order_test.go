package orders

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

const testConfig = `{
  "kind": "mulch",
  "products": {
    "bags": {"label": "Bags", "unitPrice": "10.00", "priceBreaks": [{"gt": 50, "unitPrice": "8.00"}]},
    "spreading": {"label": "Spreading", "unitPrice": "2.00"}
  },
  "neighborhoods": [{"name": "Bancroft", "distributionPt": "Church"}],
  "deliveryDates": [{"id": "1", "date": "3/9/2024"}]
}`

func loadConfig(t *testing.T) *frconfig.Config {
	t.Helper()
	cfg, err := frconfig.Decode([]byte(testConfig))
	require.NoError(t, err)
	return cfg
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func deliveryOrder(t *testing.T, cfg *frconfig.Config, bags int) *Order {
	t.Helper()
	o := New("jdoe")
	o.Name = "Pat Customer"
	o.AddrStreet = "1 Main St"
	o.Neighborhood = "Bancroft"
	o.DeliveryID = "1"
	require.NoError(t, o.SetProduct(cfg, "bags", bags))
	o.CashPaid = o.TotalAmt
	return o
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	return details
}

func TestNewOrderHasIDAndZeroTotal(t *testing.T) {
	o := New("jdoe")
	assert.Len(t, o.OrderID, 36)
	assert.True(t, o.TotalAmt.IsZero())
	assert.False(t, o.FromDB)
	assert.NotEqual(t, o.OrderID, New("jdoe").OrderID)
}

func TestValidateRejectsEmptyOrder(t *testing.T) {
	o := New("jdoe")
	o.Name = "Pat Customer"

	details := validationDetails(t, Validate(o, nil))
	assert.Contains(t, details, "products")
}

func TestValidateRejectsUnbalancedPayment(t *testing.T) {
	cfg := loadConfig(t)
	o := deliveryOrder(t, cfg, 5)
	donation := dec("20")
	o.SetDonation(&donation)
	o.CashPaid = dec("40")
	o.CheckPaid = dec("10")
	o.CheckNums = "1001"

	details := validationDetails(t, Validate(o, cfg))
	assert.Contains(t, details, "amountPaid")

	o.DoCollectMoneyLater = true
	assert.NoError(t, Validate(o, cfg))
}

func TestValidateAcceptsBalancedOrders(t *testing.T) {
	cfg := loadConfig(t)
	o := deliveryOrder(t, cfg, 51)
	assert.True(t, o.ProductsCost.Equal(dec("408")))
	assert.NoError(t, Validate(o, cfg))

	donationOnly := New("jdoe")
	donationOnly.Name = "Generous Neighbor"
	amount := dec("25")
	donationOnly.SetDonation(&amount)
	donationOnly.CheckPaid = amount
	donationOnly.CheckNums = "2002"
	assert.True(t, donationOnly.IsDonationOnly())
	assert.NoError(t, Validate(donationOnly, cfg))
}

func TestValidateChecksCatalog(t *testing.T) {
	cfg := loadConfig(t)
	o := deliveryOrder(t, cfg, 50)
	assert.True(t, o.ProductsCost.Equal(dec("500")))
	o.ProductsCost = dec("400")
	o.TotalAmt = o.ProductsCost
	o.CashPaid = o.TotalAmt
	o.DeliveryID = "99"

	details := validationDetails(t, Validate(o, cfg))
	assert.Contains(t, details, "productsCost")
	assert.Contains(t, details, "deliveryId")
}

func TestValidateRequiresCheckNumbersAndAddress(t *testing.T) {
	cfg := loadConfig(t)
	o := deliveryOrder(t, cfg, 2)
	o.CashPaid = decimal.Zero
	o.CheckPaid = o.TotalAmt
	o.AddrStreet = ""
	o.Email = "not-an-email"

	details := validationDetails(t, Validate(o, nil))
	assert.Contains(t, details, "checkNums")
	assert.Contains(t, details, "addr1")
	assert.Contains(t, details, "email")
}

func TestSetProductRemovesZeroQuantities(t *testing.T) {
	cfg := loadConfig(t)
	o := deliveryOrder(t, cfg, 3)
	require.NoError(t, o.SetProduct(cfg, "bags", 0))
	assert.False(t, o.HasProducts())
	assert.True(t, o.TotalAmt.IsZero())
	assert.Error(t, o.SetProduct(cfg, "gravel", 1))
}

func TestUnmarshalAcceptsLooseCurrency(t *testing.T) {
	raw := `{"orderId":"5b1f5b2e-3a55-4c8a-9b0e-8f8c2f9d1a10","orderOwner":"jdoe","name":"Pat",
		"products":{"bags":3},"productsCost":"30.00","donation":"","totalAmt":30,"cashPaid":"$30.00","checkPaid":null,"isVerified":true}`
	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	assert.True(t, o.ProductsCost.Equal(dec("30")))
	assert.True(t, o.CashPaid.Equal(dec("30")))
	assert.True(t, o.CheckPaid.IsZero())
	assert.Nil(t, o.Donation)
	assert.True(t, o.IsVerified)

	hydrated := Hydrate(o, true)
	assert.True(t, hydrated.FromDB)
	assert.True(t, hydrated.ReadOnly)
	assert.Equal(t, "jdoe", hydrated.OriginalOwner)
	assert.False(t, hydrated.OwnerChanged())
	hydrated.OrderOwner = "asmith"
	assert.True(t, hydrated.OwnerChanged())

	out, err := json.Marshal(hydrated)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "FromDB")
	assert.NotContains(t, string(out), "OriginalOwner")
}
