// Package pricing computes order totals in currency minor units.
package pricing

import (
	"fmt"
	"math"

	"workspace-commerce/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat tax applied to every order subtotal. It is not
// configurable.
const DefaultTaxRate = "0.18"

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Calculator turns order items into subtotal, tax and total.
type Calculator struct {
	taxRate decimal.Decimal
}

// NewCalculator creates a calculator using DefaultTaxRate.
func NewCalculator() *Calculator {
	return &Calculator{taxRate: decimal.RequireFromString(DefaultTaxRate)}
}

// TaxRate returns the rate applied to subtotals.
func (c *Calculator) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Compute sums unit price times quantity, applies tax rounded half away from
// zero to whole minor units, and returns the totals.
func (c *Calculator) Compute(items []model.OrderItem) (model.Totals, error) {
	if len(items) == 0 {
		return model.Totals{}, model.ErrEmptyCart
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if item.UnitPrice < 0 {
			return model.Totals{}, model.NewValidationError(fmt.Sprintf("Item %d has a negative price", i))
		}
		if item.Quantity < 1 {
			return model.Totals{}, model.NewValidationError(fmt.Sprintf("Item %d must have a quantity of at least 1", i))
		}
		line := decimal.NewFromInt(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}

	tax := subtotal.Mul(c.taxRate).Round(0)
	total := subtotal.Add(tax)

	if total.GreaterThan(maxAmount) {
		return model.Totals{}, model.NewValidationError("Order total exceeds the supported amount")
	}

	return model.Totals{
		Subtotal: subtotal.IntPart(),
		Tax:      tax.IntPart(),
		Total:    total.IntPart(),
	}, nil
}
