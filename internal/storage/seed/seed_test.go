package seed

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const sample = `
products:
  - id: p1
    name: Dog Food
    price: "499.50"
    category: c-food
promotions:
  - code: SAVE10
    name: Ten percent
    percentage: true
    value: 10
    min_order_value: 500
    max_discount: 100
    categories: [c-food]
    start_date: "2025-01-01T00:00:00Z"
    per_user_limit: 1
  - id: promo-flat
    code: FLAT50
    value: 50
    active: false
pincodes:
  - pincode: "560034"
    city: Bengaluru
    state: Karnataka
    cod: true
    delivery_days: 2
    delivery_charge: 40
  - pincode: "400001"
    active: false
`

func TestLoad(t *testing.T) {
	data, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, data.Products, 1)
	assert.Equal(t, money.Amount(49950), data.Products[0].Price)
	assert.Equal(t, "c-food", data.Products[0].CategoryID)

	require.Len(t, data.Promotions, 2)
	pct := data.Promotions[0]
	assert.Equal(t, "SAVE10", pct.ID, "id defaults to code")
	assert.Equal(t, promotion.TypePercentage, pct.Type)
	assert.True(t, pct.IsPercentage)
	assert.True(t, decimal.NewFromInt(10).Equal(pct.Percent))
	assert.Equal(t, money.FromMajor(500), pct.MinOrderValue)
	assert.Equal(t, money.FromMajor(100), pct.MaxDiscount)
	assert.Equal(t, []string{"c-food"}, pct.ApplicableCategories)
	require.NotNil(t, pct.StartDate)
	assert.True(t, pct.StartDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, pct.EndDate)
	assert.Equal(t, 1, pct.PerUserLimit)
	assert.True(t, pct.IsActive)

	flat := data.Promotions[1]
	assert.Equal(t, "promo-flat", flat.ID)
	assert.Equal(t, promotion.TypeFlat, flat.Type)
	assert.Equal(t, money.FromMajor(50), flat.Amount)
	assert.Zero(t, flat.MaxDiscount)
	assert.False(t, flat.IsActive)

	require.Len(t, data.Pincodes, 2)
	assert.True(t, data.Pincodes[0].IsActive)
	assert.True(t, data.Pincodes[0].CODAvailable)
	assert.Equal(t, money.FromMajor(40), data.Pincodes[0].DeliveryCharge)
	assert.False(t, data.Pincodes[1].IsActive)
}

func TestLoad_Empty(t *testing.T) {
	data, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, data.Products)
	assert.Empty(t, data.Promotions)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown field", doc: "products:\n  - id: p1\n    colour: red\n"},
		{name: "promotion without code", doc: "promotions:\n  - value: 10\n"},
		{name: "negative value", doc: "promotions:\n  - code: X\n    value: -1\n"},
		{name: "percentage over 100", doc: "promotions:\n  - code: X\n    percentage: true\n    value: 150\n"},
		{name: "product without id", doc: "products:\n  - name: nameless\n"},
		{name: "pincode missing", doc: "pincodes:\n  - city: Pune\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestLoadFile_BundledSeed(t *testing.T) {
	data, err := LoadFile("../../../db/seed/seed.yaml")
	require.NoError(t, err)

	assert.NotEmpty(t, data.Products)
	assert.NotEmpty(t, data.Pincodes)

	byCode := make(map[string]promotion.Promotion, len(data.Promotions))
	for _, p := range data.Promotions {
		byCode[p.Code] = p
	}
	require.Contains(t, byCode, "WELCOME10")
	assert.Equal(t, promotion.TypePercentage, byCode["WELCOME10"].Type)
	assert.Equal(t, money.FromMajor(200), byCode["WELCOME10"].MaxDiscount)
	assert.Equal(t, 1, byCode["WELCOME10"].PerUserLimit)
	assert.False(t, byCode["RETIRED"].IsActive)
	assert.Equal(t, []string{"p-leash"}, byCode["LEASH50"].ApplicableProducts)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open seed file")
}
