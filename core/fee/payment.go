package fee

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

var (
	ErrNothingToRecord = errors.New("enter a payment amount or a larger discount")
	ErrExceedsTotal    = errors.New("payment and discount cannot exceed the challan total")
	ErrNegativeAmount  = errors.New("must be greater than or equal to 0")
)

// recordPayment applies amount on top of the paid amount and replaces the discount.
// c is left untouched when the input is rejected.
func recordPayment(c Challan, amount, discount decimal.Decimal, paidDate time.Time) (Challan, error) {
	if amount.IsNegative() {
		return c, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "amount", Error: ErrNegativeAmount.Error()})
	}
	if discount.IsNegative() {
		return c, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "discount", Error: ErrNegativeAmount.Error()})
	}
	if !amount.IsPositive() && !discount.GreaterThan(c.Discount) {
		return c, core.NewValidationError(ErrNothingToRecord, core.FieldError{Field: "amount", Error: ErrNothingToRecord.Error()})
	}
	paid := c.PaidAmount.Add(amount)
	if paid.Add(discount).GreaterThan(c.TotalAmount) {
		return c, core.NewValidationError(ErrExceedsTotal, core.FieldError{Field: "amount", Error: ErrExceedsTotal.Error()})
	}

	pd := dateOnly(paidDate)
	c.PaidAmount = paid
	c.Discount = discount
	c.Status = statusFor(paid, discount, c.TotalAmount)
	c.PaidDate = &pd
	return c, nil
}

func applyPayment(c Challan, amount decimal.Decimal, paidDate time.Time) (Challan, error) {
	if !amount.IsPositive() {
		err := errors.New("must be greater than 0")
		return c, core.NewValidationError(err, core.FieldError{Field: "amount", Error: err.Error()})
	}
	return recordPayment(c, amount, c.Discount, paidDate)
}

// setDiscount replaces the discount and leaves the paid amount and date as they are.
func setDiscount(c Challan, discount decimal.Decimal) (Challan, error) {
	if discount.IsNegative() {
		return c, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "discount", Error: ErrNegativeAmount.Error()})
	}
	if c.PaidAmount.Add(discount).GreaterThan(c.TotalAmount) {
		return c, core.NewValidationError(ErrExceedsTotal, core.FieldError{Field: "discount", Error: ErrExceedsTotal.Error()})
	}
	c.Discount = discount
	c.Status = statusFor(c.PaidAmount, discount, c.TotalAmount)
	return c, nil
}
