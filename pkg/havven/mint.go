package havven

import (
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// collateralDivPrecision is the number of fractional digits kept when
// dividing issued nomins by collateral value. 16 digits is far beyond
// the display precision, so rounding here never frees backing collateral
// that exact arithmetic would lock.
const collateralDivPrecision = 16

// PriceSource quotes curits in nomins for collateral valuation.
type PriceSource interface {
	Price() decimal.Decimal
}

// Mint manages collateral escrow and issuance rights. An agent may lock
// curits in escrow and issue nomins against them up to
// escrowed * price * utilisation ratio; escrowed curits backing issued
// nomins cannot be withdrawn until the nomins are burned.
type Mint struct {
	ledger *Ledger
	ratio  decimal.Decimal // utilisation ratio, in (0,1]
	price  PriceSource     // curits quoted in nomins
	logger log.Logger
}

// NewMint creates a mint over the given ledger. price supplies the
// current curit price in nomins (normally the curit/nomin market).
func NewMint(ledger *Ledger, ratio decimal.Decimal, price PriceSource, logger log.Logger) *Mint {
	mustPositive("utilisation ratio", ratio)
	if ratio.GreaterThan(one) {
		panic(ErrInvalidAmount)
	}
	return &Mint{
		ledger: ledger,
		ratio:  ratio,
		price:  price,
		logger: logger.New("module", "mint"),
	}
}

// UtilisationRatio returns the global collateralisation parameter.
func (m *Mint) UtilisationRatio() decimal.Decimal {
	return m.ratio
}

// EscrowCurits locks value curits in escrow. Fails with
// ErrInsufficientBalance if the agent's available curits are short.
func (m *Mint) EscrowCurits(a *Account, value decimal.Decimal) error {
	mustPositive("escrow value", value)
	if a.AvailableCurits().LessThan(value) {
		return ErrInsufficientBalance
	}
	a.Curits = a.Curits.Sub(value)
	a.EscrowedCurits = a.EscrowedCurits.Add(value)
	return nil
}

// UnescrowCurits withdraws value curits from escrow. Fails with
// ErrCollateralLocked if that much escrow is not free of issued nomins.
func (m *Mint) UnescrowCurits(a *Account, value decimal.Decimal) error {
	mustPositive("unescrow value", value)
	if m.AvailableEscrowedCurits(a).LessThan(value) {
		m.logger.Debug("unescrow rejected",
			"account", a.ID, "value", value.String(),
			"available", m.AvailableEscrowedCurits(a).String())
		return ErrCollateralLocked
	}
	a.EscrowedCurits = a.EscrowedCurits.Sub(value)
	a.Curits = a.Curits.Add(value)
	return nil
}

// UnavailableEscrowedCurits returns the minimum collateral required to
// back the agent's issued nomins at the current price and utilisation
// ratio. May exceed the total escrowed amount if the price has moved
// against the agent.
func (m *Mint) UnavailableEscrowedCurits(a *Account) decimal.Decimal {
	if a.IssuedNomins.IsZero() {
		return decimal.Zero
	}
	return a.IssuedNomins.DivRound(m.price.Price().Mul(m.ratio), collateralDivPrecision)
}

// AvailableEscrowedCurits returns the escrowed curits not locked by
// issued nomins. May be negative.
func (m *Mint) AvailableEscrowedCurits(a *Account) decimal.Decimal {
	return a.EscrowedCurits.Sub(m.UnavailableEscrowedCurits(a))
}

// MaxIssuanceRights returns the total quantity of nomins the agent has
// a right to issue against its escrowed curits.
func (m *Mint) MaxIssuanceRights(a *Account) decimal.Decimal {
	return a.EscrowedCurits.Mul(m.price.Price()).Mul(m.ratio)
}

// RemainingIssuanceRights returns the quantity of nomins the agent may
// still issue. May be negative if the price or ratio has moved against
// the agent since issuance.
func (m *Mint) RemainingIssuanceRights(a *Account) decimal.Decimal {
	return m.MaxIssuanceRights(a).Sub(a.IssuedNomins)
}

// IssueNomins issues value nomins against escrowed curits. Fails with
// ErrOverIssuance if value exceeds the agent's remaining issuance rights.
func (m *Mint) IssueNomins(a *Account, value decimal.Decimal) error {
	mustPositive("issue value", value)
	if value.GreaterThan(m.RemainingIssuanceRights(a)) {
		m.logger.Debug("issuance rejected",
			"account", a.ID, "value", value.String(),
			"remaining", m.RemainingIssuanceRights(a).String())
		return ErrOverIssuance
	}
	a.IssuedNomins = a.IssuedNomins.Add(value)
	a.Nomins = a.Nomins.Add(value)
	return nil
}

// BurnNomins destroys value issued nomins, freeing the curits backing
// them. Fails with ErrInsufficientBalance if the agent's available
// nomins are short, or ErrOverBurn if value exceeds its issued nomins.
func (m *Mint) BurnNomins(a *Account, value decimal.Decimal) error {
	mustPositive("burn value", value)
	if a.AvailableNomins().LessThan(value) {
		return ErrInsufficientBalance
	}
	if value.GreaterThan(a.IssuedNomins) {
		return ErrOverBurn
	}
	a.Nomins = a.Nomins.Sub(value)
	a.IssuedNomins = a.IssuedNomins.Sub(value)
	return nil
}
