package havven

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientReservation = errors.New("insufficient reservation")
	ErrCollateralLocked        = errors.New("collateral locked")
	ErrOverIssuance            = errors.New("over issuance")
	ErrOverBurn                = errors.New("over burn")
	ErrEmptyBook               = errors.New("empty book")
	ErrOrderNotActive          = errors.New("order not active")
)

// mustPositive aborts on non-positive quantities. A zero or negative
// amount is a caller bug, not an economic condition, so it is fatal
// rather than a recoverable result.
func mustPositive(what string, v decimal.Decimal) {
	if !v.IsPositive() {
		panic(fmt.Errorf("%w: %s = %s", ErrInvalidAmount, what, v))
	}
}

// mustNonNegative aborts on negative quantities.
func mustNonNegative(what string, v decimal.Decimal) {
	if v.IsNegative() {
		panic(fmt.Errorf("%w: %s = %s", ErrInvalidAmount, what, v))
	}
}
