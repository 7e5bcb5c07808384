package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	pincodeChecks metric.Int64Counter
	validations   metric.Int64Counter
	discount      metric.Int64Counter
	orders        metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.pincodeChecks, err = meter.Int64Counter("checkout.pincode.checks",
		metric.WithDescription("Pincode eligibility checks by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "pincode checks")
	}
	if m.validations, err = meter.Int64Counter("checkout.promotion.validations",
		metric.WithDescription("Promotion validations by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "promotion validations")
	}
	if m.discount, err = meter.Int64Counter("checkout.promotion.discount",
		metric.WithDescription("Discount granted on placed orders"),
		metric.WithUnit("{paise}"),
	); err != nil {
		return nil, errors.Wrap(err, "promotion discount")
	}
	if m.orders, err = meter.Int64Counter("checkout.orders.placed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed")
	}
	return &m, nil
}

func (m *metrics) pincodeChecked(ctx context.Context, serviceable bool) {
	m.pincodeChecks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("serviceable", serviceable)))
}

// promotionValidated records "valid" or the rejection reason.
func (m *metrics) promotionValidated(ctx context.Context, outcome string) {
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) orderPlaced(ctx context.Context, paymentMethod string, discount int64) {
	attrs := metric.WithAttributes(
		attribute.String("payment_method", paymentMethod),
		attribute.Bool("promotion", discount > 0),
	)
	m.orders.Add(ctx, 1, attrs)
	if discount > 0 {
		m.discount.Add(ctx, discount)
	}
}
