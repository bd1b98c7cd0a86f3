package agents

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/luxfi/havven-sim/pkg/havven"
)

// Banker wants to buy curits and issue nomins, in order to accrue fees.
// Each step it feeds a random fraction of its fiat into the curit
// market, converts incoming nomins to curits, escrows every spare curit
// and issues nomins to the cap.
type Banker struct {
	*MarketPlayer

	rate decimal.Decimal // fraction of fiat committed per step

	fiatCuritOrder  *havven.Order
	nominCuritOrder *havven.Order
}

// NewBanker creates a banker drawing its trading rate from rng, so runs
// with the same seed reproduce the same behaviour.
func NewBanker(name string, model *havven.Model, rng *rand.Rand, fiat, curits, nomins decimal.Decimal) *Banker {
	return &Banker{
		MarketPlayer: NewMarketPlayer(name, model, fiat, curits, nomins),
		// Rounded so downstream order sizing stays within exact
		// division precision.
		rate: decimal.NewFromFloat(rng.Float64() * 0.05).Round(8),
	}
}

// Step replaces the banker's standing orders, escrows spare curits and
// issues nomins up to its remaining rights.
func (b *Banker) Step() {
	m := b.Model()
	acct := b.Account()

	if m.Round(acct.Fiat).IsPositive() {
		if b.fiatCuritOrder != nil {
			_ = b.fiatCuritOrder.Cancel()
		}
		fiat := m.Fees.TransferredFiatReceived(acct.Fiat).Mul(b.rate)
		if fiat.IsPositive() {
			if o, err := b.SellFiatForCurits(fiat, decimal.Zero); err == nil {
				b.fiatCuritOrder = o
			}
		}
	}

	if m.Round(acct.Nomins).IsPositive() {
		if b.nominCuritOrder != nil {
			_ = b.nominCuritOrder.Cancel()
		}
		nomins := m.Fees.TransferredNominsReceived(acct.Nomins)
		if nomins.IsPositive() {
			if o, err := b.SellNominsForCurits(nomins, decimal.Zero); err == nil {
				b.nominCuritOrder = o
			}
		}
	}

	if spare := acct.AvailableCurits(); m.Round(spare).IsPositive() {
		b.EscrowCurits(spare)
	}

	if issuable := b.RemainingIssuanceRights(); m.Round(issuable).IsPositive() {
		b.IssueNomins(issuable)
	}
}
