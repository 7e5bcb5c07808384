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

// ValidatePromotion serves POST /api/promotions/validate. The cart is priced
// from the catalog; clients only send product IDs and quantities.
func (h *Handler) ValidatePromotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}
	req, err := decodeValidateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	var cart promotion.Cart
	if req.Code != "" && len(req.Items) > 0 {
		quote, err := h.orders.Quote(ctx, req.Items)
		if err != nil {
			h.promotionError(w, r, quoteRejection(req.Code, err))
			return
		}
		cart = quote.Cart
	}

	pricing, err := h.promos.ValidateAndPrice(ctx, req.Code, cart, h.user(r))
	if err != nil {
		h.promotionError(w, r, err)
		return
	}
	h.metrics.promotionValidated(ctx, "valid")

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(true)
	e.FieldStart("promotion")
	e.ObjStart()
	e.FieldStart("code")
	e.Str(pricing.Code)
	e.FieldStart("name")
	e.Str(pricing.Name)
	e.FieldStart("type")
	e.Str(string(pricing.Type))
	e.FieldStart("scope")
	e.Str(string(pricing.Scope))
	e.FieldStart("discount")
	amount(&e, pricing.Discount)
	e.FieldStart("applicableSubtotal")
	amount(&e, pricing.ApplicableSubtotal)
	e.FieldStart("applicableItems")
	e.ArrStart()
	for _, id := range pricing.MatchedItemIDs {
		e.Str(id)
	}
	e.ArrEnd()
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// quoteRejection turns cart pricing failures into INVALID_CART rejections.
func quoteRejection(code string, err error) error {
	var (
		iqErr  *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
	)
	if errors.As(err, &iqErr) || errors.As(err, &pnfErr) || errors.Is(err, order.ErrEmptyItems) {
		return &promotion.Rejection{Reason: promotion.ReasonInvalidCart, Code: code, Detail: err.Error()}
	}
	return err
}

func (h *Handler) promotionError(w http.ResponseWriter, r *http.Request, err error) {
	rej, ok := promotion.AsRejection(err)
	if !ok {
		zctx.From(r.Context()).Error("Promotion validation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.metrics.promotionValidated(r.Context(), string(rej.Reason))
	writeRejection(w, rej)
}

// rejectionStatus maps a rejection reason to its HTTP status.
func rejectionStatus(reason promotion.Reason) int {
	switch reason {
	case promotion.ReasonCodeRequired, promotion.ReasonInvalidCart:
		return http.StatusBadRequest
	case promotion.ReasonInvalidCode:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeRejection(w http.ResponseWriter, rej *promotion.Rejection) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(rej.Error())
	e.FieldStart("reason")
	e.Str(string(rej.Reason))
	if rej.Reason == promotion.ReasonBelowMinimum {
		e.FieldStart("minOrderValue")
		amount(&e, rej.MinOrderValue)
		e.FieldStart("shortfall")
		amount(&e, rej.Shortfall)
	}
	if rej.Reason == promotion.ReasonUsageLimitReached {
		e.FieldStart("limit")
		e.Int(rej.Limit)
	}
	e.ObjEnd()
	writeJSON(w, rejectionStatus(rej.Reason), &e)
}
