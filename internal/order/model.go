package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusConfirmed  Status = "Confirmed"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

func (s Status) String() string {
	return string(s)
}

// allowedTransitions is the fulfillment state machine. Cancellation is also
// reachable from every non-shipped state through the cancel path, which
// additionally handles stock restoration.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// PaymentStatus tracks payment independently of fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

func (p PaymentStatus) String() string {
	return string(p)
}

var validPaymentStatuses = map[PaymentStatus]bool{
	PaymentPending:  true,
	PaymentPaid:     true,
	PaymentFailed:   true,
	PaymentRefunded: true,
}

// LedgerState is the per-order stock sub-machine: Reserved means the order
// exists but inventory is untouched, Deducted means stock has been committed.
// The reverse transition (restore) is only legal from Deducted and coincides
// with cancellation.
type LedgerState string

const (
	LedgerReserved LedgerState = "Reserved"
	LedgerDeducted LedgerState = "Deducted"
)

type Item struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

type Order struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CustomerID         uuid.UUID       `json:"customer_id" db:"customer_id"`
	Items              []Item          `json:"items" db:"-"`
	Subtotal           decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount           decimal.Decimal `json:"discount" db:"discount"`
	DiscountPercentage int64           `json:"discount_percentage" db:"discount_percentage"`
	Tax                decimal.Decimal `json:"tax" db:"tax"`
	ShippingCost       decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	Total              decimal.Decimal `json:"total" db:"total"`
	Status             Status          `json:"status" db:"status"`
	PaymentStatus      PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentMethod      string          `json:"payment_method" db:"payment_method"`
	ShippingAddress    string          `json:"shipping_address" db:"shipping_address"`
	TrackingNumber     string          `json:"tracking_number,omitempty" db:"tracking_number"`
	Notes              string          `json:"notes,omitempty" db:"notes"`
	StockDeducted      bool            `json:"stock_deducted" db:"stock_deducted"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// Ledger reports which side of the stock sub-machine the order is on.
func (o *Order) Ledger() LedgerState {
	if o.StockDeducted {
		return LedgerDeducted
	}
	return LedgerReserved
}

// Cancellable reports whether the order may still be cancelled. Shipped and
// delivered orders are past the point of no return.
func (o *Order) Cancellable() bool {
	switch o.Status {
	case StatusShipped, StatusDelivered, StatusCancelled:
		return false
	default:
		return true
	}
}

// NewOrderItem is one requested line of a checkout. The unit price is looked
// up from the catalog at creation time, never taken from the client.
type NewOrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// NewOrderInput is the checkout request handed to the order service.
type NewOrderInput struct {
	CustomerID      uuid.UUID      `json:"customer_id"`
	Items           []NewOrderItem `json:"items"`
	PaymentMethod   string         `json:"payment_method"`
	ShippingAddress string         `json:"shipping_address"`
}

// StatusUpdate is an admin fulfillment transition request.
type StatusUpdate struct {
	Status         Status `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Notes          string `json:"notes,omitempty"`
}
