package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// errBadBody is reported for unreadable or malformed request bodies.
var errBadBody = errors.New("invalid request body")

type validateRequest struct {
	Code  string
	Items []order.OrderItem
}

type orderRequest struct {
	Items         []order.OrderItem
	CouponCode    string
	Pincode       string
	PaymentMethod string
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

func decodeValidateRequest(body []byte) (validateRequest, error) {
	var req validateRequest
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			return decodeOptStr(d, &req.Code)
		case "items":
			items, err := decodeItems(d)
			req.Items = items
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeOrderRequest(body []byte) (orderRequest, error) {
	var req orderRequest
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			items, err := decodeItems(d)
			req.Items = items
			return err
		case "couponCode":
			return decodeOptStr(d, &req.CouponCode)
		case "pincode":
			return decodeOptStr(d, &req.Pincode)
		case "paymentMethod":
			return decodeOptStr(d, &req.PaymentMethod)
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeItems(d *jx.Decoder) ([]order.OrderItem, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var items []order.OrderItem
	err := d.Arr(func(d *jx.Decoder) error {
		var item order.OrderItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				item.ProductID, err = d.Str()
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// decodeOptStr reads a string field that may be null.
func decodeOptStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	*dst = s
	return err
}

// amount writes a money value as a JSON number in major units.
func amount(e *jx.Encoder, a money.Amount) {
	e.Num(jx.Num(a.Decimal().String()))
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}
