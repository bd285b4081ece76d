package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantora/plantstore/internal/config"
	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/order"
	"github.com/plantora/plantstore/internal/pricing"
	"github.com/plantora/plantstore/internal/product"
)

// memRepo is an in-memory order.Repository with the same atomicity
// guarantees as the Postgres implementation: the ledger claim, the
// conditional per-item decrements and the restore all happen under one
// lock, all-or-nothing.
type memRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*order.Order
	stock      map[uuid.UUID]int
	deductions int
	restores   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders: make(map[uuid.UUID]*order.Order),
		stock:  make(map[uuid.UUID]int),
	}
}

func (m *memRepo) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		o.ID = id
	}
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp, nil
}

func (m *memRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]order.Order, 0)
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *memRepo) ListAll(ctx context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		result = append(result, *o)
	}
	return result, nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status, trackingNumber, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	if notes != "" {
		o.Notes = notes
	}
	return nil
}

func (m *memRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, ps order.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentStatus = ps
	return nil
}

func (m *memRepo) ApplyStockDeduction(ctx context.Context, orderID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.StockDeducted {
		return false, nil
	}
	for _, item := range o.Items {
		if m.stock[item.ProductID] < item.Quantity {
			return false, fmt.Errorf("%w for product %s", order.ErrInsufficientStock, item.ProductID)
		}
	}
	for _, item := range o.Items {
		m.stock[item.ProductID] -= item.Quantity
	}
	o.StockDeducted = true
	m.deductions++
	return true, nil
}

func (m *memRepo) Cancel(ctx context.Context, orderID uuid.UUID, refund bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.StockDeducted {
		for _, item := range o.Items {
			m.stock[item.ProductID] += item.Quantity
		}
		o.StockDeducted = false
		m.restores++
	}
	o.Status = order.StatusCancelled
	if refund {
		o.PaymentStatus = order.PaymentRefunded
	}
	return nil
}

// memProducts serves catalog reads from the same stock map the order repo
// mutates.
type memProducts struct {
	repo     *memRepo
	products map[uuid.UUID]*product.Product
}

func (m *memProducts) Create(ctx context.Context, p *product.Product) error { return nil }
func (m *memProducts) Update(ctx context.Context, p *product.Product) error { return nil }
func (m *memProducts) Delete(ctx context.Context, id uuid.UUID) error       { return nil }
func (m *memProducts) List(ctx context.Context, category string) ([]product.Product, error) {
	return nil, nil
}

func (m *memProducts) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	m.repo.mu.Lock()
	defer m.repo.mu.Unlock()
	cp := *p
	cp.Stock = m.repo.stock[id]
	return &cp, nil
}

type recordedPurchase struct {
	customerID uuid.UUID
	total      decimal.Decimal
}

type mockCustomerService struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customer.Customer
	recorded  []recordedPurchase
}

func (m *mockCustomerService) Register(ctx context.Context, c *customer.Customer, password string) (*customer.Customer, error) {
	return nil, nil
}

func (m *mockCustomerService) Login(ctx context.Context, email, password string) (*customer.Customer, error) {
	return nil, nil
}

func (m *mockCustomerService) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCustomerService) RecordPurchase(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	m.recorded = append(m.recorded, recordedPurchase{customerID: id, total: orderTotal})
	c.TotalSpent = c.TotalSpent.Add(orderTotal)
	c.TotalPurchases++
	c.LoyaltyPoints += customer.PointsForOrder(orderTotal)
	c.MembershipLevel = customer.LevelForSpend(c.TotalSpent)
	return c, nil
}

type fixture struct {
	repo      *memRepo
	products  *memProducts
	customers *mockCustomerService
	svc       order.Service
	shopper   *customer.Customer
	admin     *customer.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	products := &memProducts{repo: repo, products: make(map[uuid.UUID]*product.Product)}
	customers := &mockCustomerService{customers: make(map[uuid.UUID]*customer.Customer)}

	calc := pricing.NewCalculator(config.PricingConfig{
		TaxRate:               decimal.RequireFromString("0.02"),
		FreeShippingThreshold: decimal.NewFromInt(10000),
		StandardShippingFee:   decimal.NewFromInt(350),
	})

	shopper := &customer.Customer{
		ID:              mustUUID(t),
		Name:            "Fern Whittle",
		Role:            customer.RoleCustomer,
		TotalSpent:      decimal.NewFromInt(9000),
		MembershipLevel: customer.LevelBronze,
	}
	admin := &customer.Customer{
		ID:   mustUUID(t),
		Name: "Admin",
		Role: customer.RoleAdmin,
	}
	customers.customers[shopper.ID] = shopper
	customers.customers[admin.ID] = admin

	return &fixture{
		repo:      repo,
		products:  products,
		customers: customers,
		svc:       order.NewService(repo, products, customers, calc),
		shopper:   shopper,
		admin:     admin,
	}
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func (f *fixture) addProduct(t *testing.T, price int64, stock int) uuid.UUID {
	t.Helper()
	id := mustUUID(t)
	f.products.products[id] = &product.Product{
		ID:    id,
		Name:  "Monstera deliciosa",
		Price: decimal.NewFromInt(price),
	}
	f.repo.stock[id] = stock
	return id
}

func (f *fixture) placeOrder(t *testing.T, productID uuid.UUID, quantity int) *order.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), order.NewOrderInput{
		CustomerID:      f.shopper.ID,
		Items:           []order.NewOrderItem{{ProductID: productID, Quantity: quantity}},
		PaymentMethod:   "card",
		ShippingAddress: "12 Fern Lane",
	})
	require.NoError(t, err)
	return o
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   order.NewOrderInput
		wantErr error
	}{
		{
			name:    "empty_items",
			input:   order.NewOrderInput{CustomerID: f.shopper.ID},
			wantErr: order.ErrEmptyOrder,
		},
		{
			name: "unknown_product",
			input: order.NewOrderInput{
				CustomerID: f.shopper.ID,
				Items:      []order.NewOrderItem{{ProductID: mustUUID(t), Quantity: 1}},
			},
			wantErr: order.ErrProductNotFound,
		},
		{
			name: "insufficient_stock_soft_check",
			input: order.NewOrderInput{
				CustomerID: f.shopper.ID,
				Items:      []order.NewOrderItem{{ProductID: productID, Quantity: 6}},
			},
			wantErr: order.ErrInsufficientStock,
		},
		{
			name: "unknown_customer",
			input: order.NewOrderInput{
				CustomerID: mustUUID(t),
				Items:      []order.NewOrderItem{{ProductID: productID, Quantity: 1}},
			},
			wantErr: customer.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.customers.recorded, "no purchase may be recorded on a rejected order")
		})
	}

	t.Run("non_positive_quantity", func(t *testing.T) {
		_, err := f.svc.Create(ctx, order.NewOrderInput{
			CustomerID: f.shopper.ID,
			Items:      []order.NewOrderItem{{ProductID: productID, Quantity: 0}},
		})
		assert.Error(t, err)
	})
}

func TestService_Create_PricesWithPriorTier(t *testing.T) {
	// A Bronze shopper with 9000 spent places a 2000-unit order. The order
	// itself is priced at Bronze (0% discount) even though the purchase
	// pushes the shopper to Silver.
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)

	o := f.placeOrder(t, productID, 1)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.False(t, o.StockDeducted)
	assert.Equal(t, order.LedgerReserved, o.Ledger())

	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(2000)), "subtotal = %s", o.Subtotal)
	assert.Equal(t, int64(0), o.DiscountPercentage, "discount must use the pre-purchase tier")
	assert.True(t, o.Discount.IsZero())
	assert.True(t, o.Tax.Equal(decimal.NewFromInt(40)), "tax = %s", o.Tax)
	assert.True(t, o.ShippingCost.Equal(decimal.NewFromInt(350)), "shipping = %s", o.ShippingCost)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(2390)), "total = %s", o.Total)

	// Stock is untouched at placement; only the purchase tallies moved.
	assert.Equal(t, 5, f.repo.stock[productID])
	require.Len(t, f.customers.recorded, 1)
	assert.True(t, f.customers.recorded[0].total.Equal(o.Total))

	after, err := f.customers.GetByID(context.Background(), f.shopper.ID)
	require.NoError(t, err)
	assert.True(t, after.TotalSpent.Equal(decimal.NewFromInt(11390)))
	assert.Equal(t, customer.LevelSilver, after.MembershipLevel)
}

func TestService_UpdateStatus_DeductsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 10)
	o := f.placeOrder(t, productID, 3)
	ctx := context.Background()

	confirmed, err := f.svc.UpdateStatus(ctx, f.admin, o.ID, order.StatusUpdate{Status: order.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.StockDeducted)
	assert.Equal(t, order.LedgerDeducted, confirmed.Ledger())
	assert.Equal(t, 7, f.repo.stock[productID])

	// Moving on to Processing must not deduct again.
	processing, err := f.svc.UpdateStatus(ctx, f.admin, o.ID, order.StatusUpdate{Status: order.StatusProcessing})
	require.NoError(t, err)
	assert.True(t, processing.StockDeducted)
	assert.Equal(t, 7, f.repo.stock[productID])
	assert.Equal(t, 1, f.repo.deductions)
}

func TestService_UpdateStatus_InsufficientStockAtConfirmation(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 2)
	o := f.placeOrder(t, productID, 2)

	// Stock drains between placement and confirmation: the soft check
	// passed, the hard check must now fail.
	f.repo.mu.Lock()
	f.repo.stock[productID] = 1
	f.repo.mu.Unlock()

	_, err := f.svc.UpdateStatus(context.Background(), f.admin, o.ID, order.StatusUpdate{Status: order.StatusConfirmed})
	assert.ErrorIs(t, err, order.ErrInsufficientStock)

	// Nothing moved: order stays Pending, ledger stays Reserved, stock
	// untouched.
	current, getErr := f.svc.GetByID(context.Background(), f.admin, o.ID)
	require.NoError(t, getErr)
	assert.Equal(t, order.StatusPending, current.Status)
	assert.False(t, current.StockDeducted)
	assert.Equal(t, 1, f.repo.stock[productID])
}

func TestService_UpdateStatus_InvalidTransition(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.admin, o.ID, order.StatusUpdate{Status: order.StatusShipped})
	assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
}

func TestService_UpdateStatus_AdminOnly(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.shopper, o.ID, order.StatusUpdate{Status: order.StatusConfirmed})
	assert.ErrorIs(t, err, order.ErrForbidden)
}

func TestService_Cancel_PendingLeavesStockAlone(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 2)

	cancelled, err := f.svc.Cancel(context.Background(), f.shopper, o.ID)
	require.NoError(t, err)

	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.repo.stock[productID], "stock was never deducted, so nothing to restore")
	assert.Equal(t, 0, f.repo.restores)
}

func TestService_Cancel_ConfirmedRestoresStock(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 2)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.admin, o.ID, order.StatusUpdate{Status: order.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, 3, f.repo.stock[productID])

	cancelled, err := f.svc.Cancel(ctx, f.shopper, o.ID)
	require.NoError(t, err)

	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.StockDeducted)
	assert.Equal(t, 5, f.repo.stock[productID], "exactly the ordered quantity comes back")
	assert.Equal(t, 1, f.repo.restores)
}

func TestService_Cancel_AlreadyCancelledIsNoop(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 2)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.admin, o.ID, order.StatusUpdate{Status: order.StatusConfirmed})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.shopper, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.shopper, o.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, f.repo.stock[productID], "second cancel must not restore again")
	assert.Equal(t, 1, f.repo.restores)
}

func TestService_Cancel_RejectedOnceShipped(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 1)
	ctx := context.Background()

	for _, st := range []order.Status{order.StatusConfirmed, order.StatusProcessing, order.StatusShipped} {
		_, err := f.svc.UpdateStatus(ctx, f.admin, o.ID, order.StatusUpdate{Status: st})
		require.NoError(t, err)
	}

	_, err := f.svc.Cancel(ctx, f.shopper, o.ID)
	assert.ErrorIs(t, err, order.ErrNotCancellable)
}

func TestService_Cancel_RefundsPaidOrder(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 1)
	ctx := context.Background()

	_, err := f.svc.UpdatePaymentStatus(ctx, f.admin, o.ID, order.PaymentPaid)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.shopper, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentRefunded, cancelled.PaymentStatus)
}

func TestService_ConcurrentConfirmations_NoOversell(t *testing.T) {
	// Two orders each want the single unit in stock. Confirming both
	// concurrently must yield exactly one success and one insufficient
	// stock failure, never negative stock.
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 2)

	first := f.placeOrder(t, productID, 1)
	second := f.placeOrder(t, productID, 1)

	// Only one unit left by confirmation time.
	f.repo.mu.Lock()
	f.repo.stock[productID] = 1
	f.repo.mu.Unlock()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(orderID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.UpdateStatus(context.Background(), f.admin, orderID, order.StatusUpdate{Status: order.StatusConfirmed})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var successes, stockFailures int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, order.ErrInsufficientStock):
			stockFailures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockFailures)
	assert.Equal(t, 0, f.repo.stock[productID], "stock must never go negative")
}

func TestService_GetByID_Ownership(t *testing.T) {
	f := newFixture(t)
	productID := f.addProduct(t, 2000, 5)
	o := f.placeOrder(t, productID, 1)
	ctx := context.Background()

	stranger := &customer.Customer{ID: mustUUID(t), Role: customer.RoleCustomer}
	f.customers.customers[stranger.ID] = stranger

	_, err := f.svc.GetByID(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, order.ErrForbidden)

	got, err := f.svc.GetByID(ctx, f.shopper, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	got, err = f.svc.GetByID(ctx, f.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestService_ListAll_AdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListAll(context.Background(), f.shopper)
	assert.ErrorIs(t, err, order.ErrForbidden)

	_, err = f.svc.ListAll(context.Background(), f.admin)
	assert.NoError(t, err)
}
