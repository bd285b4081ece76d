package feedback

import (
	"time"

	"github.com/gofrs/uuid"
)

// Feedback is a customer's review of a delivered order, one per order.
type Feedback struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrderID        uuid.UUID `json:"order_id" db:"order_id"`
	CustomerID     uuid.UUID `json:"customer_id" db:"customer_id"`
	Rating         int       `json:"rating" db:"rating"`
	DeliveryRating int       `json:"delivery_rating" db:"delivery_rating"`
	Comment        string    `json:"comment,omitempty" db:"comment"`
	AdminResponse  string    `json:"admin_response,omitempty" db:"admin_response"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
