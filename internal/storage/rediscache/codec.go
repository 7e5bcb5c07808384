package rediscache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// Cached records are compact JSON. Amounts are minor units.

func encodePromotion(p *promotion.Promotion) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("code")
	e.Str(p.Code)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("type")
	e.Str(string(p.Type))
	e.FieldStart("is_percentage")
	e.Bool(p.IsPercentage)
	e.FieldStart("percent")
	e.Str(p.Percent.String())
	e.FieldStart("amount")
	e.Int64(int64(p.Amount))
	e.FieldStart("min_order_value")
	e.Int64(int64(p.MinOrderValue))
	e.FieldStart("max_discount")
	e.Int64(int64(p.MaxDiscount))
	e.FieldStart("products")
	encodeStrings(&e, p.ApplicableProducts)
	e.FieldStart("categories")
	encodeStrings(&e, p.ApplicableCategories)
	e.FieldStart("start")
	encodeTime(&e, p.StartDate)
	e.FieldStart("end")
	encodeTime(&e, p.EndDate)
	e.FieldStart("per_user_limit")
	e.Int(p.PerUserLimit)
	e.FieldStart("active")
	e.Bool(p.IsActive)
	e.ObjEnd()
	return e.Bytes()
}

func decodePromotion(b []byte) (*promotion.Promotion, error) {
	var p promotion.Promotion
	err := jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "code":
			p.Code, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			p.Type = promotion.Type(s)
		case "is_percentage":
			p.IsPercentage, err = d.Bool()
		case "percent":
			var s string
			if s, err = d.Str(); err == nil {
				p.Percent, err = decimal.NewFromString(s)
			}
		case "amount":
			p.Amount, err = decodeAmount(d)
		case "min_order_value":
			p.MinOrderValue, err = decodeAmount(d)
		case "max_discount":
			p.MaxDiscount, err = decodeAmount(d)
		case "products":
			p.ApplicableProducts, err = decodeStrings(d)
		case "categories":
			p.ApplicableCategories, err = decodeStrings(d)
		case "start":
			p.StartDate, err = decodeTime(d)
		case "end":
			p.EndDate, err = decodeTime(d)
		case "per_user_limit":
			p.PerUserLimit, err = d.Int()
		case "active":
			p.IsActive, err = d.Bool()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode promotion")
	}
	return &p, nil
}

func encodePincode(p *pincode.ServiceablePincode) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("pincode")
	e.Str(p.Pincode)
	e.FieldStart("city")
	e.Str(p.City)
	e.FieldStart("state")
	e.Str(p.State)
	e.FieldStart("active")
	e.Bool(p.IsActive)
	e.FieldStart("cod")
	e.Bool(p.CODAvailable)
	e.FieldStart("delivery_days")
	e.Int(p.DeliveryDays)
	e.FieldStart("delivery_time")
	e.Str(p.DeliveryTime)
	e.FieldStart("delivery_charge")
	e.Int64(int64(p.DeliveryCharge))
	e.ObjEnd()
	return e.Bytes()
}

func decodePincode(b []byte) (*pincode.ServiceablePincode, error) {
	var p pincode.ServiceablePincode
	err := jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "pincode":
			p.Pincode, err = d.Str()
		case "city":
			p.City, err = d.Str()
		case "state":
			p.State, err = d.Str()
		case "active":
			p.IsActive, err = d.Bool()
		case "cod":
			p.CODAvailable, err = d.Bool()
		case "delivery_days":
			p.DeliveryDays, err = d.Int()
		case "delivery_time":
			p.DeliveryTime, err = d.Str()
		case "delivery_charge":
			p.DeliveryCharge, err = decodeAmount(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode pincode")
	}
	return &p, nil
}

func decodeAmount(d *jx.Decoder) (money.Amount, error) {
	v, err := d.Int64()
	return money.Amount(v), err
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
