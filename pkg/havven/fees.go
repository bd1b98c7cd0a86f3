package havven

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeRates holds the multiplicative transfer fee rate per currency.
// Each rate must lie in [0, 1).
type FeeRates struct {
	Fiat  decimal.Decimal
	Curit decimal.Decimal
	Nomin decimal.Decimal
}

// FeeManager computes the net amount received after the multiplicative
// transfer fee. It is a pure function layer with no state beyond the
// configured rates.
type FeeManager struct {
	rates FeeRates
}

// NewFeeManager validates the rates and returns a fee manager.
func NewFeeManager(rates FeeRates) (*FeeManager, error) {
	for _, r := range []struct {
		c    Currency
		rate decimal.Decimal
	}{{FIAT, rates.Fiat}, {CUR, rates.Curit}, {NOM, rates.Nomin}} {
		if r.rate.IsNegative() || r.rate.GreaterThanOrEqual(one) {
			return nil, fmt.Errorf("%w: %s fee rate %s not in [0,1)", ErrInvalidAmount, r.c, r.rate)
		}
	}
	return &FeeManager{rates: rates}, nil
}

// Rate returns the configured fee rate for a currency.
func (f *FeeManager) Rate(c Currency) decimal.Decimal {
	switch c {
	case FIAT:
		return f.rates.Fiat
	case CUR:
		return f.rates.Curit
	default:
		return f.rates.Nomin
	}
}

// TransferredReceived returns the quantity of c received by the
// counterparty when gross is transferred: gross * (1 - rate).
func (f *FeeManager) TransferredReceived(c Currency, gross decimal.Decimal) decimal.Decimal {
	mustNonNegative("gross transfer", gross)
	return gross.Mul(one.Sub(f.Rate(c)))
}

// TransferFeeCharged returns the fee burned when gross is transferred.
func (f *FeeManager) TransferFeeCharged(c Currency, gross decimal.Decimal) decimal.Decimal {
	mustNonNegative("gross transfer", gross)
	return gross.Mul(f.Rate(c))
}

// TransferredFiatReceived returns the fiat received after the fiat fee.
func (f *FeeManager) TransferredFiatReceived(gross decimal.Decimal) decimal.Decimal {
	return f.TransferredReceived(FIAT, gross)
}

// TransferredCuritsReceived returns the curits received after the curit fee.
func (f *FeeManager) TransferredCuritsReceived(gross decimal.Decimal) decimal.Decimal {
	return f.TransferredReceived(CUR, gross)
}

// TransferredNominsReceived returns the nomins received after the nomin fee.
func (f *FeeManager) TransferredNominsReceived(gross decimal.Decimal) decimal.Decimal {
	return f.TransferredReceived(NOM, gross)
}
