package havven

import (
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// Ledger owns every account in the simulation and exposes the atomic
// balance and reservation operations everything else is built on.
// Rejected operations never leave an account partially mutated.
type Ledger struct {
	fees     *FeeManager
	accounts map[string]*Account
	order    []*Account // creation order, for deterministic iteration
	burned   [3]decimal.Decimal
	logger   log.Logger
}

// NewLedger creates an empty ledger charging fees through fees.
func NewLedger(fees *FeeManager, logger log.Logger) *Ledger {
	return &Ledger{
		fees:     fees,
		accounts: make(map[string]*Account),
		logger:   logger.New("module", "ledger"),
	}
}

// CreateAccount registers a new account with initial balances.
func (l *Ledger) CreateAccount(id string, fiat, curits, nomins decimal.Decimal) *Account {
	mustNonNegative("initial fiat", fiat)
	mustNonNegative("initial curits", curits)
	mustNonNegative("initial nomins", nomins)
	a := &Account{ID: id, Fiat: fiat, Curits: curits, Nomins: nomins}
	l.accounts[id] = a
	l.order = append(l.order, a)
	return a
}

// Account looks up an account by ID, or nil.
func (l *Ledger) Account(id string) *Account {
	return l.accounts[id]
}

// Accounts returns every account in creation order.
func (l *Ledger) Accounts() []*Account {
	return l.order
}

// FeesBurned returns the total fee value of c retired by transfers so far.
func (l *Ledger) FeesBurned(c Currency) decimal.Decimal {
	return l.burned[c]
}

// Transfer moves amount of c from one account to another. The sender is
// debited the gross amount; the recipient is credited the fee-adjusted
// net amount, the difference being burned. Fails with
// ErrInsufficientBalance if the sender's available balance is short.
func (l *Ledger) Transfer(from, to *Account, c Currency, amount decimal.Decimal) error {
	mustPositive("transfer amount", amount)
	if from.Available(c).LessThan(amount) {
		l.logger.Debug("transfer rejected",
			"from", from.ID, "to", to.ID,
			"currency", c.String(), "amount", amount.String(),
			"available", from.Available(c).String())
		return ErrInsufficientBalance
	}
	net := l.fees.TransferredReceived(c, amount)
	from.addBalance(c, amount.Neg())
	to.addBalance(c, net)
	l.burned[c] = l.burned[c].Add(amount.Sub(net))
	return nil
}

// Reserve marks amount of c as held by an outstanding order. Fails with
// ErrInsufficientBalance if it would push the used amount above the
// balance.
func (l *Ledger) Reserve(a *Account, c Currency, amount decimal.Decimal) error {
	mustPositive("reserve amount", amount)
	if a.Used(c).Add(amount).GreaterThan(a.Balance(c)) {
		return ErrInsufficientBalance
	}
	a.addUsed(c, amount)
	return nil
}

// Release returns amount of c from reservation to availability. Fails
// with ErrInsufficientReservation if more is released than is held.
func (l *Ledger) Release(a *Account, c Currency, amount decimal.Decimal) error {
	mustPositive("release amount", amount)
	if amount.GreaterThan(a.Used(c)) {
		return ErrInsufficientReservation
	}
	a.addUsed(c, amount.Neg())
	return nil
}
