package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// PlaceOrder serves POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}
	req, err := decodeOrderRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	result, err := h.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		Items:         req.Items,
		CouponCode:    req.CouponCode,
		Pincode:       req.Pincode,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		UserID:        h.userID(r),
	})
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	o := result.Order
	h.metrics.orderPlaced(ctx, string(o.PaymentMethod), int64(o.Discounts))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.String()),
		zap.String("coupon", o.CouponCode),
	)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("unitPrice")
		amount(&e, item.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	amount(&e, o.Subtotal)
	e.FieldStart("discounts")
	amount(&e, o.Discounts)
	e.FieldStart("deliveryCharge")
	amount(&e, o.DeliveryCharge)
	e.FieldStart("total")
	amount(&e, o.Total)
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	e.FieldStart("pincode")
	e.Str(o.Pincode)
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// orderError maps order placement failures to responses.
func (h *Handler) orderError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := promotion.AsRejection(err); ok {
		h.metrics.promotionValidated(r.Context(), string(rej.Reason))
		writeRejection(w, rej)
		return
	}

	var (
		iqErr  *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
		nsErr  *order.NotServiceableError
		codErr *order.CODUnavailableError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrPincodeRequired),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.As(err, &iqErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pnfErr), errors.As(err, &nsErr), errors.As(err, &codErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Place order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
