package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckPincode serves GET /api/pincodes/check?pincode=.
func (h *Handler) CheckPincode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("pincode")
	if code == "" {
		writeError(w, http.StatusBadRequest, "pincode query parameter is required")
		return
	}

	res, err := h.pincodes.Check(r.Context(), code)
	if err != nil {
		zctx.From(r.Context()).Error("Pincode check failed", zap.String("pincode", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.metrics.pincodeChecked(r.Context(), res.Serviceable)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("isServiceable")
	e.Bool(res.Serviceable)
	if res.Pincode != "" {
		e.FieldStart("pincode")
		e.Str(res.Pincode)
	}
	if !res.Serviceable {
		e.FieldStart("message")
		e.Str(res.Message)
		e.ObjEnd()
		writeJSON(w, http.StatusOK, &e)
		return
	}

	e.FieldStart("city")
	e.Str(res.City)
	e.FieldStart("state")
	e.Str(res.State)
	if res.DeliveryDays > 0 {
		e.FieldStart("deliveryDays")
		e.Int(res.DeliveryDays)
	}
	if res.DeliveryTime != "" {
		e.FieldStart("deliveryTime")
		e.Str(res.DeliveryTime)
	}
	e.FieldStart("codAvailable")
	e.Bool(res.CODAvailable)
	e.FieldStart("deliveryCharge")
	amount(&e, res.DeliveryCharge)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
