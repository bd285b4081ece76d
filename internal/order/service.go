package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/pricing"
	"github.com/plantora/plantstore/internal/product"
)

var (
	ErrForbidden               = errors.New("not allowed to access this order")
	ErrNotCancellable          = errors.New("order can no longer be cancelled")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrInvalidPaymentStatus    = errors.New("invalid payment status")
	ErrProductNotFound         = errors.New("product not found")
	ErrEmptyOrder              = errors.New("order must contain at least one item")
)

type Service interface {
	Create(ctx context.Context, input NewOrderInput) (*Order, error)
	GetByID(ctx context.Context, actor *customer.Customer, id uuid.UUID) (*Order, error)
	ListByCustomer(ctx context.Context, actor *customer.Customer, customerID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context, actor *customer.Customer) ([]Order, error)
	UpdateStatus(ctx context.Context, actor *customer.Customer, id uuid.UUID, upd StatusUpdate) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, actor *customer.Customer, id uuid.UUID, ps PaymentStatus) (*Order, error)
	Cancel(ctx context.Context, actor *customer.Customer, id uuid.UUID) (*Order, error)
}

type service struct {
	orders     Repository
	products   product.Repository
	customers  customer.Service
	calculator *pricing.Calculator
}

func NewService(orders Repository, products product.Repository, customers customer.Service, calculator *pricing.Calculator) Service {
	return &service{
		orders:     orders,
		products:   products,
		customers:  customers,
		calculator: calculator,
	}
}

// Create runs the checkout pipeline: validate the cart, soft-check stock,
// price against the customer's current tier, persist the order, then record
// the purchase on the customer's membership tallies.
//
// Pricing deliberately happens before RecordPurchase: the order that pushes
// a customer into a higher tier is still discounted at the old tier.
func (s *service) Create(ctx context.Context, input NewOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	cust, err := s.customers.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch customer for order: %w", err)
	}

	cartItems := make([]pricing.CartItem, 0, len(input.Items))
	orderItems := make([]Item, 0, len(input.Items))
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return nil, fmt.Errorf("service: product id in order item cannot be nil")
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("service: order item quantity for product %s must be greater than zero", line.ProductID)
		}

		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return nil, fmt.Errorf("service: failed to fetch product %s: %w", line.ProductID, err)
		}

		// Soft check only: stock is not reserved until the order is
		// confirmed, so availability can still change before then.
		if p.Stock < line.Quantity {
			return nil, fmt.Errorf("%w for product %s (requested %d, available %d)",
				ErrInsufficientStock, p.Name, line.Quantity, p.Stock)
		}

		cartItems = append(cartItems, pricing.CartItem{Quantity: line.Quantity, UnitPrice: p.Price})
		orderItems = append(orderItems, Item{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
	}

	quote, err := s.calculator.Quote(cartItems, cust.MembershipLevel)
	if err != nil {
		return nil, err
	}

	o := &Order{
		CustomerID:         cust.ID,
		Items:              orderItems,
		Subtotal:           quote.Subtotal,
		Discount:           quote.Discount,
		DiscountPercentage: quote.DiscountPercentage,
		Tax:                quote.Tax,
		ShippingCost:       quote.ShippingCost,
		Total:              quote.Total,
		Status:             StatusPending,
		PaymentStatus:      PaymentPending,
		PaymentMethod:      input.PaymentMethod,
		ShippingAddress:    input.ShippingAddress,
		StockDeducted:      false,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		log.Error().Err(err).Stringer("customer_id", cust.ID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	if _, err := s.customers.RecordPurchase(ctx, cust.ID, o.Total); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Stringer("customer_id", cust.ID).
			Msg("service: order persisted but purchase was not recorded")
		return nil, fmt.Errorf("service: failed to record purchase for order %s: %w", o.ID, err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Stringer("customer_id", cust.ID).
		Str("total", o.Total.String()).
		Str("membership_level", cust.MembershipLevel.String()).
		Msg("service: order created")

	return o, nil
}

func (s *service) GetByID(ctx context.Context, actor *customer.Customer, id uuid.UUID) (*Order, error) {
	o, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != o.CustomerID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) ListByCustomer(ctx context.Context, actor *customer.Customer, customerID uuid.UUID) ([]Order, error) {
	if !actor.IsAdmin() && actor.ID != customerID {
		return nil, ErrForbidden
	}
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		log.Error().Err(err).Stringer("customer_id", customerID).Msg("service: failed to list customer orders")
		return nil, fmt.Errorf("service: failed to list customer orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListAll(ctx context.Context, actor *customer.Customer) ([]Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor *customer.Customer, id uuid.UUID, upd StatusUpdate) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	o, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == upd.Status {
		log.Info().Stringer("order_id", id).Stringer("status", upd.Status).Msg("service: order already in requested status")
		return o, nil
	}

	// Cancellation through the status endpoint takes the same restore path
	// as the cancel endpoint.
	if upd.Status == StatusCancelled {
		return s.cancel(ctx, o)
	}

	transitions, ok := allowedTransitions[o.Status]
	if !ok || !transitions[upd.Status] {
		log.Warn().
			Stringer("order_id", o.ID).
			Stringer("current_status", o.Status).
			Stringer("new_status", upd.Status).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, o.Status, upd.Status)
	}

	// First entry into Confirmed or Processing commits the stock. The
	// repository's ledger claim makes a repeat call a no-op, so a
	// Confirmed→Processing move cannot deduct twice.
	if upd.Status == StatusConfirmed || upd.Status == StatusProcessing {
		applied, err := s.orders.ApplyStockDeduction(ctx, id)
		if err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				log.Warn().Err(err).Stringer("order_id", id).Msg("service: confirmation rejected, insufficient stock")
				return nil, err
			}
			log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to apply stock deduction")
			return nil, fmt.Errorf("service: failed to apply stock deduction: %w", err)
		}
		if applied {
			log.Info().Stringer("order_id", id).Msg("service: stock deducted for order")
		}
	}

	if err := s.orders.UpdateStatus(ctx, id, upd.Status, upd.TrackingNumber, upd.Notes); err != nil {
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", id).
		Stringer("old_status", o.Status).
		Stringer("new_status", upd.Status).
		Msg("service: order status updated")

	return s.fetch(ctx, id)
}

func (s *service) UpdatePaymentStatus(ctx context.Context, actor *customer.Customer, id uuid.UUID, ps PaymentStatus) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !validPaymentStatuses[ps] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentStatus, ps)
	}

	if err := s.orders.UpdatePaymentStatus(ctx, id, ps); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update payment status")
		return nil, fmt.Errorf("service: failed to update payment status: %w", err)
	}

	return s.fetch(ctx, id)
}

func (s *service) Cancel(ctx context.Context, actor *customer.Customer, id uuid.UUID) (*Order, error) {
	o, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != o.CustomerID {
		return nil, ErrForbidden
	}
	return s.cancel(ctx, o)
}

func (s *service) cancel(ctx context.Context, o *Order) (*Order, error) {
	// Cancelling an already-cancelled order is a no-op, not an error.
	if o.Status == StatusCancelled {
		return o, nil
	}
	if !o.Cancellable() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, o.Status)
	}

	refund := o.PaymentStatus == PaymentPaid
	if err := s.orders.Cancel(ctx, o.ID, refund); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to cancel order")
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Bool("refunded", refund).Msg("service: order cancelled")

	return s.fetch(ctx, o.ID)
}

func (s *service) fetch(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}
