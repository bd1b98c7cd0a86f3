package havven

import "github.com/shopspring/decimal"

// Account holds one agent's balances and reservation accounting.
// "Used" amounts are reserved by the account's outstanding orders;
// used_X <= X holds for every currency at all times.
type Account struct {
	ID string

	// Balances
	Fiat           decimal.Decimal
	Curits         decimal.Decimal
	EscrowedCurits decimal.Decimal
	Nomins         decimal.Decimal
	IssuedNomins   decimal.Decimal

	// Reserved by outstanding orders
	UsedFiat   decimal.Decimal
	UsedCurits decimal.Decimal
	UsedNomins decimal.Decimal
}

// Balance returns the gross balance of c.
func (a *Account) Balance(c Currency) decimal.Decimal {
	switch c {
	case FIAT:
		return a.Fiat
	case CUR:
		return a.Curits
	default:
		return a.Nomins
	}
}

// Used returns the amount of c reserved by outstanding orders.
func (a *Account) Used(c Currency) decimal.Decimal {
	switch c {
	case FIAT:
		return a.UsedFiat
	case CUR:
		return a.UsedCurits
	default:
		return a.UsedNomins
	}
}

// Available returns the balance of c net of reservations.
func (a *Account) Available(c Currency) decimal.Decimal {
	return a.Balance(c).Sub(a.Used(c))
}

// AvailableFiat returns fiat net of reservations.
func (a *Account) AvailableFiat() decimal.Decimal { return a.Available(FIAT) }

// AvailableCurits returns curits net of reservations.
func (a *Account) AvailableCurits() decimal.Decimal { return a.Available(CUR) }

// AvailableNomins returns nomins net of reservations.
func (a *Account) AvailableNomins() decimal.Decimal { return a.Available(NOM) }

func (a *Account) addBalance(c Currency, d decimal.Decimal) {
	switch c {
	case FIAT:
		a.Fiat = a.Fiat.Add(d)
	case CUR:
		a.Curits = a.Curits.Add(d)
	default:
		a.Nomins = a.Nomins.Add(d)
	}
}

func (a *Account) addUsed(c Currency, d decimal.Decimal) {
	switch c {
	case FIAT:
		a.UsedFiat = a.UsedFiat.Add(d)
	case CUR:
		a.UsedCurits = a.UsedCurits.Add(d)
	default:
		a.UsedNomins = a.UsedNomins.Add(d)
	}
}
