// Package seed loads catalog, promotion and pincode fixtures from YAML.
package seed

import (
	"io"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// Data is a decoded seed file.
type Data struct {
	Products   []product.Product
	Promotions []promotion.Promotion
	Pincodes   []pincode.ServiceablePincode
}

type fileYAML struct {
	Products   []productYAML   `yaml:"products"`
	Promotions []promotionYAML `yaml:"promotions"`
	Pincodes   []pincodeYAML   `yaml:"pincodes"`
}

type productYAML struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Price    decimal.Decimal `yaml:"price"`
	Category string          `yaml:"category"`
}

type promotionYAML struct {
	ID            string           `yaml:"id"`
	Code          string           `yaml:"code"`
	Name          string           `yaml:"name"`
	Description   string           `yaml:"description"`
	Type          string           `yaml:"type"`
	IsPercentage  bool             `yaml:"percentage"`
	Value         decimal.Decimal  `yaml:"value"`
	MinOrderValue decimal.Decimal  `yaml:"min_order_value"`
	MaxDiscount   *decimal.Decimal `yaml:"max_discount"`
	Products      []string         `yaml:"products"`
	Categories    []string         `yaml:"categories"`
	StartDate     *time.Time       `yaml:"start_date"`
	EndDate       *time.Time       `yaml:"end_date"`
	PerUserLimit  int              `yaml:"per_user_limit"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

type pincodeYAML struct {
	Pincode        string          `yaml:"pincode"`
	City           string          `yaml:"city"`
	State          string          `yaml:"state"`
	Active         *bool           `yaml:"active"`
	COD            bool            `yaml:"cod"`
	DeliveryDays   int             `yaml:"delivery_days"`
	DeliveryTime   string          `yaml:"delivery_time"`
	DeliveryCharge decimal.Decimal `yaml:"delivery_charge"`
}

// LoadFile reads and decodes the seed file at path.
func LoadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Load decodes a seed document. Unknown fields are rejected.
func Load(r io.Reader) (*Data, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw fileYAML
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode seed")
	}

	data := &Data{
		Products:   make([]product.Product, 0, len(raw.Products)),
		Promotions: make([]promotion.Promotion, 0, len(raw.Promotions)),
		Pincodes:   make([]pincode.ServiceablePincode, 0, len(raw.Pincodes)),
	}
	for _, p := range raw.Products {
		if p.ID == "" {
			return nil, errors.New("product without id")
		}
		data.Products = append(data.Products, product.Product{
			ID:         p.ID,
			Name:       p.Name,
			Price:      money.FromDecimal(p.Price),
			CategoryID: p.Category,
		})
	}
	for _, p := range raw.Promotions {
		promo, err := p.toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "promotion %q", p.Code)
		}
		data.Promotions = append(data.Promotions, promo)
	}
	for _, p := range raw.Pincodes {
		if p.Pincode == "" {
			return nil, errors.New("pincode entry without pincode")
		}
		data.Pincodes = append(data.Pincodes, pincode.ServiceablePincode{
			Pincode:        p.Pincode,
			City:           p.City,
			State:          p.State,
			IsActive:       p.Active == nil || *p.Active,
			CODAvailable:   p.COD,
			DeliveryDays:   p.DeliveryDays,
			DeliveryTime:   p.DeliveryTime,
			DeliveryCharge: money.FromDecimal(p.DeliveryCharge),
		})
	}

	return data, nil
}

func (p promotionYAML) toDomain() (promotion.Promotion, error) {
	if p.Code == "" {
		return promotion.Promotion{}, errors.New("code required")
	}
	if p.Value.IsNegative() {
		return promotion.Promotion{}, errors.New("value must not be negative")
	}
	if p.IsPercentage && p.Value.GreaterThan(decimal.NewFromInt(100)) {
		return promotion.Promotion{}, errors.New("percentage must be within 0-100")
	}

	id := p.ID
	if id == "" {
		id = p.Code
	}
	typ := promotion.Type(p.Type)
	if typ == "" {
		typ = promotion.TypeFlat
		if p.IsPercentage {
			typ = promotion.TypePercentage
		}
	}

	promo := promotion.Promotion{
		ID:                   id,
		Code:                 p.Code,
		Name:                 p.Name,
		Description:          p.Description,
		Type:                 typ,
		IsPercentage:         p.IsPercentage,
		MinOrderValue:        money.FromDecimal(p.MinOrderValue),
		ApplicableProducts:   p.Products,
		ApplicableCategories: p.Categories,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		PerUserLimit:         p.PerUserLimit,
		IsActive:             p.Active == nil || *p.Active,
	}
	if p.IsPercentage {
		promo.Percent = p.Value
	} else {
		promo.Amount = money.FromDecimal(p.Value)
	}
	if p.MaxDiscount != nil {
		promo.MaxDiscount = money.FromDecimal(*p.MaxDiscount)
	}
	return promo, nil
}
