package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/plantora/plantstore/internal/config"
	"github.com/plantora/plantstore/internal/customer"
)

var (
	ErrEmptyCart           = errors.New("pricing: cart must contain at least one item")
	ErrNonPositiveQuantity = errors.New("pricing: item quantity must be greater than zero")
	ErrNegativeUnitPrice   = errors.New("pricing: item unit price cannot be negative")
)

// discountPercentByLevel is the fixed membership discount table. Percentages
// are whole numbers out of 100.
var discountPercentByLevel = map[customer.MembershipLevel]int64{
	customer.LevelBronze:   0,
	customer.LevelSilver:   5,
	customer.LevelGold:     10,
	customer.LevelPlatinum: 15,
}

// CartItem is one priced line of a cart. UnitPrice is the product price
// captured at order time, not a live catalog lookup.
type CartItem struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Quote is the monetary breakdown of an order.
type Quote struct {
	Subtotal           decimal.Decimal
	Discount           decimal.Decimal
	DiscountPercentage int64
	Tax                decimal.Decimal
	ShippingCost       decimal.Decimal
	Total              decimal.Decimal
}

// Calculator derives order totals from a cart and the customer's membership
// level. It is pure: no I/O, no mutation, same inputs always produce the
// same Quote.
type Calculator struct {
	cfg config.PricingConfig
}

func NewCalculator(cfg config.PricingConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Quote prices a cart for the given membership level.
//
// Tax is charged on the full subtotal, not on the post-discount amount.
// That ordering is a business decision carried over from the storefront's
// launch pricing and must not change without a product sign-off.
func (c *Calculator) Quote(items []CartItem, level customer.MembershipLevel) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, ErrEmptyCart
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w (item %d, quantity %d)", ErrNonPositiveQuantity, i, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return Quote{}, fmt.Errorf("%w (item %d, unit price %s)", ErrNegativeUnitPrice, i, item.UnitPrice)
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	pct, ok := discountPercentByLevel[level]
	if !ok {
		pct = discountPercentByLevel[customer.LevelBronze]
	}
	discount := subtotal.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))
	// The current table tops out at 15%, but clamp anyway so a future table
	// change can never drive the total negative.
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	tax := subtotal.Mul(c.cfg.TaxRate)

	shipping := c.cfg.StandardShippingFee
	if subtotal.GreaterThanOrEqual(c.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := subtotal.Sub(discount).Add(tax).Add(shipping)

	return Quote{
		Subtotal:           subtotal,
		Discount:           discount,
		DiscountPercentage: pct,
		Tax:                tax,
		ShippingCost:       shipping,
		Total:              total,
	}, nil
}
