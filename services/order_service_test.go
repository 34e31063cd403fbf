package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
	"storefront/payment"
)

type fakeStore struct {
	orders    map[primitive.ObjectID]*models.Order
	insertErr error
	calls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[primitive.ObjectID]*models.Order)}
}

func (f *fakeStore) Insert(ctx context.Context, order *models.Order) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.calls++
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (f *fakeStore) FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Order, error) {
	f.calls++
	var result []models.Order
	for _, order := range f.orders {
		if order.UserID == owner {
			result = append(result, *order)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	f.calls++
	order, ok := f.orders[id]
	if !ok || order.Status != from {
		return nil, nil
	}
	order.Status = to
	copied := *order
	return &copied, nil
}

func newTestService(store OrderStore) OrderService {
	return NewOrderService(store, payment.NewDummyGateway())
}

func customerPrincipal() models.Principal {
	return models.Principal{
		ID:    primitive.NewObjectID(),
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Role:  models.RoleCustomer,
	}
}

func validAddress() models.ShippingAddress {
	return models.ShippingAddress{
		Address:    "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
	}
}

func validItems() []CheckoutItem {
	return []CheckoutItem{
		{ProductID: "p1", Name: "Widget", UnitPrice: 10, Image: "widget.png", Quantity: 2},
	}
}

func TestCreateOrder(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	principal := customerPrincipal()

	order, err := svc.CreateOrder(context.Background(), principal, validItems(), 20, validAddress())
	require.NoError(t, err)

	assert.Equal(t, principal.ID, order.UserID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, 20.0, order.TotalAmount)
	assert.Equal(t, models.PaymentSuccess, order.PaymentInfo.Status)
	assert.Equal(t, "dummy", order.PaymentInfo.Method)
	assert.NotEmpty(t, order.PaymentInfo.ConfirmationID)
	assert.False(t, order.ID.IsZero())

	require.Len(t, order.Products, 1)
	assert.Equal(t, "p1", order.Products[0].Product.ID)
	assert.Equal(t, "Widget", order.Products[0].Product.Name)
	assert.Equal(t, 10.0, order.Products[0].Product.UnitPrice)
	assert.Equal(t, 2, order.Products[0].Quantity)

	persisted, err := store.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, order.ID, persisted.ID)
}

func TestCreateOrderSnapshotIsACopy(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	items := validItems()
	order, err := svc.CreateOrder(context.Background(), customerPrincipal(), items, 20, validAddress())
	require.NoError(t, err)

	// Mutating the submitted cart item must not reach into the order.
	items[0].Name = "Renamed"
	items[0].UnitPrice = 999

	persisted, err := store.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", persisted.Products[0].Product.Name)
	assert.Equal(t, 10.0, persisted.Products[0].Product.UnitPrice)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.CreateOrder(context.Background(), customerPrincipal(), nil, 0, validAddress())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrderInvalidQuantity(t *testing.T) {
	svc := newTestService(newFakeStore())
	items := []CheckoutItem{{ProductID: "p1", Name: "Widget", UnitPrice: 10, Quantity: 0}}

	_, err := svc.CreateOrder(context.Background(), customerPrincipal(), items, 0, validAddress())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrderIncompleteAddress(t *testing.T) {
	svc := newTestService(newFakeStore())

	addr := validAddress()
	addr.PostalCode = "  "

	_, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 20, addr)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrderTotalMismatch(t *testing.T) {
	svc := newTestService(newFakeStore())

	// Cart sums to 20; a client claiming 1 is not trusted.
	_, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 1, validAddress())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrderUnauthenticated(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), models.Principal{}, validItems(), 20, validAddress())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, store.calls)
}

func TestCreateOrderStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 20, validAddress())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetOrderOwnership(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := customerPrincipal()
	other := customerPrincipal()

	order, err := svc.CreateOrder(context.Background(), owner, validItems(), 20, validAddress())
	require.NoError(t, err)

	got, err := svc.GetOrder(context.Background(), owner, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(context.Background(), other, order.ID.Hex())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.GetOrder(context.Background(), customerPrincipal(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetOrder(context.Background(), customerPrincipal(), "not-a-hex-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := customerPrincipal()
	other := customerPrincipal()

	first, err := svc.CreateOrder(context.Background(), owner, validItems(), 20, validAddress())
	require.NoError(t, err)
	second, err := svc.CreateOrder(context.Background(), owner, validItems(), 20, validAddress())
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), other, validItems(), 20, validAddress())
	require.NoError(t, err)

	// Listing order depends on createdAt, which the service stamps; force
	// distinct timestamps so recency is unambiguous.
	store.orders[first.ID].CreatedAt = time.Now().Add(-time.Hour)
	store.orders[second.ID].CreatedAt = time.Now()

	orders, err := svc.ListOrders(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	for _, o := range orders {
		assert.Equal(t, owner.ID, o.UserID)
	}
}

func TestListOrdersEmptyHistory(t *testing.T) {
	svc := newTestService(newFakeStore())

	orders, err := svc.ListOrders(context.Background(), customerPrincipal())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestCheckoutThenCrossPrincipalRead(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	p1 := customerPrincipal()
	p2 := customerPrincipal()

	items := []CheckoutItem{{ProductID: "p1", Name: "Widget", UnitPrice: 10, Quantity: 2}}
	order, err := svc.CreateOrder(context.Background(), p1, items, 20, validAddress())
	require.NoError(t, err)
	assert.Equal(t, 20.0, order.TotalAmount)
	assert.Equal(t, models.PaymentSuccess, order.PaymentInfo.Status)

	_, err = svc.GetOrder(context.Background(), p2, order.ID.Hex())
	assert.ErrorIs(t, err, ErrForbidden)
}

func adminPrincipal() models.Principal {
	p := customerPrincipal()
	p.Role = models.RoleAdmin
	return p
}

func TestUpdateStatusTransitions(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	admin := adminPrincipal()

	order, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 20, validAddress())
	require.NoError(t, err)

	for _, next := range []models.OrderStatus{models.OrderProcessing, models.OrderShipped, models.OrderDelivered} {
		updated, err := svc.UpdateStatus(context.Background(), admin, order.ID.Hex(), next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	// delivered is terminal
	_, err = svc.UpdateStatus(context.Background(), admin, order.ID.Hex(), models.OrderCancelled)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateStatusSkippingStates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	order, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 20, validAddress())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), adminPrincipal(), order.ID.Hex(), models.OrderDelivered)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := customerPrincipal()

	order, err := svc.CreateOrder(context.Background(), owner, validItems(), 20, validAddress())
	require.NoError(t, err)

	// Not even the owning customer may move the status.
	_, err = svc.UpdateStatus(context.Background(), owner, order.ID.Hex(), models.OrderCancelled)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.UpdateStatus(context.Background(), adminPrincipal(), primitive.NewObjectID().Hex(), models.OrderProcessing)
	assert.ErrorIs(t, err, ErrNotFound)
}

// staleReadStore reports a fixed status on reads while writes go against
// the real stored order, mimicking another operator committing a
// transition between this operator's read and write.
type staleReadStore struct {
	*fakeStore
	reportStatus models.OrderStatus
}

func (s *staleReadStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := s.fakeStore.FindByID(ctx, id)
	if order != nil {
		order.Status = s.reportStatus
	}
	return order, err
}

func TestUpdateStatusConcurrentTransition(t *testing.T) {
	store := newFakeStore()
	stale := &staleReadStore{fakeStore: store, reportStatus: models.OrderPending}
	svc := newTestService(stale)

	order, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 20, validAddress())
	require.NoError(t, err)

	// Another operator cancelled the order after our read of pending; the
	// guarded write must not pull it out of the terminal state.
	store.orders[order.ID].Status = models.OrderCancelled

	_, err = svc.UpdateStatus(context.Background(), adminPrincipal(), order.ID.Hex(), models.OrderProcessing)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	persisted, err := store.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, persisted.Status)
}

func TestUpdateStatusUnknownValue(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	order, err := svc.CreateOrder(context.Background(), customerPrincipal(), validItems(), 20, validAddress())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), adminPrincipal(), order.ID.Hex(), models.OrderStatus("refunded"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
