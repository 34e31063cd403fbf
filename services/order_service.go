package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
	"storefront/payment"
)

// CheckoutItem is one cart entry submitted at checkout. Prices come from
// the client's cart snapshot, not from a catalog reference.
type CheckoutItem struct {
	ProductID string
	Name      string
	UnitPrice float64
	Image     string
	Quantity  int
}

// OrderStore is the persistence contract the lifecycle service depends on.
// FindByID and UpdateStatus return (nil, nil) when no order matches.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error)
}

// OrderService owns the order lifecycle: creation from a checkout
// submission, ownership-scoped reads, and operator status transitions.
type OrderService interface {
	CreateOrder(ctx context.Context, principal models.Principal, items []CheckoutItem, totalPrice float64, addr models.ShippingAddress) (*models.Order, error)
	GetOrder(ctx context.Context, principal models.Principal, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, principal models.Principal) ([]models.Order, error)
	UpdateStatus(ctx context.Context, principal models.Principal, orderID string, next models.OrderStatus) (*models.Order, error)
}

type orderService struct {
	store   OrderStore
	gateway payment.Gateway
}

func NewOrderService(store OrderStore, gateway payment.Gateway) OrderService {
	return &orderService{store: store, gateway: gateway}
}

func (s *orderService) CreateOrder(ctx context.Context, principal models.Principal, items []CheckoutItem, totalPrice float64, addr models.ShippingAddress) (*models.Order, error) {
	if principal.IsZero() {
		return nil, ErrUnauthenticated
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidRequest)
	}

	var total float64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price must not be negative", ErrInvalidRequest)
		}
		total += item.UnitPrice * float64(item.Quantity)
	}

	if err := validateAddress(addr); err != nil {
		return nil, err
	}

	// The total is recomputed from the line items rather than trusted from
	// the client; a disagreeing client total is rejected.
	if math.Abs(total-totalPrice) > 0.01 {
		return nil, fmt.Errorf("%w: total price does not match cart items", ErrInvalidRequest)
	}

	info, err := s.gateway.Charge(ctx, total)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}

	lineItems := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, models.LineItem{
			Product: models.ProductSnapshot{
				ID:        item.ProductID,
				Name:      item.Name,
				UnitPrice: item.UnitPrice,
				Image:     item.Image,
			},
			Quantity: item.Quantity,
		})
	}

	order := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          principal.ID,
		Products:        lineItems,
		TotalAmount:     total,
		PaymentInfo:     info,
		Status:          models.OrderPending,
		ShippingAddress: addr,
		CreatedAt:       time.Now(),
	}

	if err := s.store.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID.Hex(),
		"owner_id", principal.ID.Hex(),
		"total", order.TotalAmount,
		"payment_id", info.ConfirmationID,
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, principal models.Principal, orderID string) (*models.Order, error) {
	if principal.IsZero() {
		return nil, ErrUnauthenticated
	}

	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, ErrNotFound
	}

	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}

	if order.UserID != principal.ID {
		return nil, ErrForbidden
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, principal models.Principal) ([]models.Order, error) {
	if principal.IsZero() {
		return nil, ErrUnauthenticated
	}

	orders, err := s.store.FindByOwner(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, principal models.Principal, orderID string, next models.OrderStatus) (*models.Order, error) {
	if principal.IsZero() {
		return nil, ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, next)
	}

	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, ErrNotFound
	}

	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot change status from %s to %s", ErrInvalidRequest, order.Status, next)
	}

	updated, err := s.store.UpdateStatus(ctx, id, order.Status, next)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if updated == nil {
		// The order moved off the status we read; the write matched nothing.
		return nil, fmt.Errorf("%w: order status changed, cannot move to %s", ErrInvalidRequest, next)
	}

	slog.InfoContext(ctx, "order status updated",
		"order_id", updated.ID.Hex(),
		"from", order.Status,
		"to", next,
		"operator_id", principal.ID.Hex(),
	)

	return updated, nil
}

func validateAddress(addr models.ShippingAddress) error {
	fields := map[string]string{
		"address":    addr.Address,
		"city":       addr.City,
		"state":      addr.State,
		"postalCode": addr.PostalCode,
		"country":    addr.Country,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: shipping address %s is required", ErrInvalidRequest, name)
		}
	}
	return nil
}
