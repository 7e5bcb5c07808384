package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems           = errors.New("items required")
	ErrPincodeRequired      = errors.New("delivery pincode required")
	ErrInvalidPaymentMethod = errors.New("payment method must be prepaid or cod")
	// ErrUsageLimitReached is returned by a Repository when committing the
	// redemption would exceed the promotion's per-user limit.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// NotServiceableError indicates the store does not deliver to the pincode.
type NotServiceableError struct {
	Pincode string
	Reason  string
}

func (e *NotServiceableError) Error() string {
	return fmt.Sprintf("pincode %s: %s", e.Pincode, e.Reason)
}

// CODUnavailableError indicates cash on delivery is not offered at the pincode.
type CODUnavailableError struct {
	Pincode string
}

func (e *CODUnavailableError) Error() string {
	return fmt.Sprintf("cash on delivery is not available for pincode %s", e.Pincode)
}

// PromotionPricer validates and prices promotion codes.
type PromotionPricer interface {
	ValidateAndPrice(ctx context.Context, code string, cart promotion.Cart, user *promotion.User) (*promotion.Pricing, error)
}

// EligibilityChecker reports delivery eligibility for a pincode.
type EligibilityChecker interface {
	Check(ctx context.Context, code string) (pincode.Result, error)
}

// Quote is a cart priced from the catalog.
type Quote struct {
	Cart     promotion.Cart
	Items    []OrderItem
	Products []product.Product
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items         []OrderItem
	CouponCode    string
	Pincode       string
	PaymentMethod PaymentMethod
	// UserID is empty for guest checkout.
	UserID string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order     *Order
	Products  []product.Product
	Promotion *promotion.Pricing
	Delivery  pincode.Result
}

// Service encapsulates checkout pricing and order placement.
type Service struct {
	products product.Repository
	promos   PromotionPricer
	pincodes EligibilityChecker
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	promos PromotionPricer,
	pincodes EligibilityChecker,
	orders Repository,
) *Service {
	return &Service{
		products: products,
		promos:   promos,
		pincodes: pincodes,
		orders:   orders,
		now:      time.Now,
	}
}

// Quote validates items, fetches their products in a single batch and builds
// a cart with catalog prices and categories.
func (s *Service) Quote(ctx context.Context, items []OrderItem) (*Quote, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	q := &Quote{
		Items:    make([]OrderItem, len(items)),
		Products: make([]product.Product, 0, len(items)),
	}
	q.Cart.Items = make([]promotion.LineItem, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		q.Products = append(q.Products, p)

		line := promotion.LineItem{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			UnitPrice:  p.Price,
			Quantity:   item.Quantity,
		}
		q.Cart.Items[i] = line
		q.Cart.Subtotal += line.Total()
		q.Items[i] = OrderItem{ProductID: p.ID, Quantity: item.Quantity, UnitPrice: p.Price}
	}

	return q, nil
}

// PlaceOrder prices the cart, checks delivery eligibility, applies the
// promotion code if any, and persists the order with its redemption.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.Pincode == "" {
		return nil, ErrPincodeRequired
	}
	method := req.PaymentMethod
	switch method {
	case "":
		method = PaymentPrepaid
	case PaymentPrepaid, PaymentCOD:
	default:
		return nil, ErrInvalidPaymentMethod
	}

	quote, err := s.Quote(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	delivery, err := s.pincodes.Check(ctx, req.Pincode)
	if err != nil {
		return nil, errors.Wrap(err, "check pincode")
	}
	if !delivery.Serviceable {
		return nil, &NotServiceableError{Pincode: req.Pincode, Reason: delivery.Message}
	}
	if method == PaymentCOD && !delivery.CODAvailable {
		return nil, &CODUnavailableError{Pincode: req.Pincode}
	}

	var (
		pricing    *promotion.Pricing
		redemption *Redemption
		discount   money.Amount
	)
	if req.CouponCode != "" {
		var user *promotion.User
		if req.UserID != "" {
			user = &promotion.User{ID: req.UserID}
		}
		pricing, err = s.promos.ValidateAndPrice(ctx, req.CouponCode, quote.Cart, user)
		if err != nil {
			return nil, errors.Wrap(err, "validate promotion")
		}
		discount = pricing.Discount
		redemption = &Redemption{
			PromotionID:  pricing.PromotionID,
			UserID:       req.UserID,
			PerUserLimit: pricing.PerUserLimit,
		}
	}

	// Total = subtotal - discount floored at zero, plus delivery.
	total := quote.Cart.Subtotal - discount
	if total < 0 {
		total = 0
	}
	total += delivery.DeliveryCharge

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Items:          quote.Items,
		Subtotal:       quote.Cart.Subtotal,
		Discounts:      discount,
		DeliveryCharge: delivery.DeliveryCharge,
		Total:          total,
		CouponCode:     req.CouponCode,
		Pincode:        req.Pincode,
		PaymentMethod:  method,
		CreatedAt:      s.now().UTC(),
	}
	if pricing != nil {
		o.PromotionID = pricing.PromotionID
	}

	if err := s.orders.Create(ctx, o, redemption); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return nil, &promotion.Rejection{
				Reason: promotion.ReasonUsageLimitReached,
				Code:   req.CouponCode,
				Limit:  pricing.PerUserLimit,
			}
		}
		return nil, errors.Wrap(err, "create order")
	}

	return &PlaceOrderResult{
		Order:     o,
		Products:  quote.Products,
		Promotion: pricing,
		Delivery:  delivery,
	}, nil
}
