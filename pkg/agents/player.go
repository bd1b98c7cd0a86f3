// Package agents contains the market participants of the simulation.
// Every agent owns one ledger account and acts on the economy solely
// through the Model's mint and market operations; agents never touch
// another agent's account directly.
package agents

import (
	"github.com/shopspring/decimal"

	"github.com/luxfi/havven-sim/pkg/havven"
)

// Portfolio is the part of an agent's state that dictates its wealth.
type Portfolio struct {
	Fiat           decimal.Decimal
	Curits         decimal.Decimal
	EscrowedCurits decimal.Decimal
	Nomins         decimal.Decimal
	IssuedNomins   decimal.Decimal
}

// MarketPlayer is a generic agent with a fixed initial endowment. It
// implements havven.Trader and exposes the full trading, transfer and
// issuance surface of the core as convenience methods. Strategies embed
// it and override Step.
type MarketPlayer struct {
	name    string
	model   *havven.Model
	account *havven.Account
	orders  map[*havven.Order]struct{}

	initialWealth decimal.Decimal
}

// NewMarketPlayer creates a player with the given initial balances and
// registers its account with the model's ledger.
func NewMarketPlayer(name string, model *havven.Model, fiat, curits, nomins decimal.Decimal) *MarketPlayer {
	p := &MarketPlayer{
		name:    name,
		model:   model,
		account: model.Ledger.CreateAccount(name, fiat, curits, nomins),
		orders:  make(map[*havven.Order]struct{}),
	}
	p.initialWealth = p.Wealth()
	return p
}

// Name returns the player's unique name.
func (p *MarketPlayer) Name() string { return p.name }

// Model returns the shared simulation context.
func (p *MarketPlayer) Model() *havven.Model { return p.model }

// Account returns the player's ledger account.
func (p *MarketPlayer) Account() *havven.Account { return p.account }

// NotifyFilled drops a filled order from the player's open-order set.
func (p *MarketPlayer) NotifyFilled(o *havven.Order) { delete(p.orders, o) }

// NotifyCancelled drops a cancelled order from the player's open-order set.
func (p *MarketPlayer) NotifyCancelled(o *havven.Order) { delete(p.orders, o) }

// Step is a no-op for the base player.
func (p *MarketPlayer) Step() {}

// Orders returns the player's outstanding orders.
func (p *MarketPlayer) Orders() []*havven.Order {
	out := make([]*havven.Order, 0, len(p.orders))
	for o := range p.orders {
		out = append(out, o)
	}
	return out
}

// CancelOrders cancels all of the player's outstanding orders.
func (p *MarketPlayer) CancelOrders() {
	for o := range p.orders {
		_ = o.Cancel()
	}
}

// track records an order that is still resting on a book. Orders that
// filled during placement were already notified and are not tracked.
func (p *MarketPlayer) track(o *havven.Order, err error) (*havven.Order, error) {
	if err == nil && o.Active() {
		p.orders[o] = struct{}{}
	}
	return o, err
}

// AvailableFiat returns the player's fiat net of reservations.
func (p *MarketPlayer) AvailableFiat() decimal.Decimal { return p.account.AvailableFiat() }

// AvailableCurits returns the player's curits net of reservations.
func (p *MarketPlayer) AvailableCurits() decimal.Decimal { return p.account.AvailableCurits() }

// AvailableNomins returns the player's nomins net of reservations.
func (p *MarketPlayer) AvailableNomins() decimal.Decimal { return p.account.AvailableNomins() }

// Wealth returns the player's total wealth at current fiat prices.
// Escrowed curits count towards wealth; issued nomins count against it.
func (p *MarketPlayer) Wealth() decimal.Decimal {
	return p.model.FiatValue(
		p.account.Fiat,
		p.account.Curits.Add(p.account.EscrowedCurits),
		p.account.Nomins.Sub(p.account.IssuedNomins),
	)
}

// Portfolio returns the holdings that dictate the player's wealth,
// valued at current fiat prices when fiatValues is set.
func (p *MarketPlayer) Portfolio(fiatValues bool) Portfolio {
	pf := Portfolio{
		Fiat:           p.account.Fiat,
		Curits:         p.account.Curits,
		EscrowedCurits: p.account.EscrowedCurits,
		Nomins:         p.account.Nomins,
		IssuedNomins:   p.account.IssuedNomins,
	}
	if fiatValues {
		zero := decimal.Zero
		pf.Curits = p.model.FiatValue(zero, pf.Curits, zero)
		pf.EscrowedCurits = p.model.FiatValue(zero, pf.EscrowedCurits, zero)
		pf.Nomins = p.model.FiatValue(zero, zero, pf.Nomins)
		pf.IssuedNomins = p.model.FiatValue(zero, zero, pf.IssuedNomins)
	}
	return pf
}

// Profit returns the wealth accrued over the initial endowment. May be
// negative.
func (p *MarketPlayer) Profit() decimal.Decimal {
	return p.Wealth().Sub(p.initialWealth)
}

// ProfitFraction returns profit as a fraction of initial wealth.
func (p *MarketPlayer) ProfitFraction() decimal.Decimal {
	if p.model.Round(p.initialWealth).IsZero() {
		return decimal.Zero
	}
	return p.Profit().Div(p.initialWealth)
}

// ResetInitialWealth rebases the profit calculation on current wealth,
// returning the previous basis.
func (p *MarketPlayer) ResetInitialWealth() decimal.Decimal {
	old := p.initialWealth
	p.initialWealth = p.Wealth()
	return old
}

// TransferFiatTo sends fiat to another player, if the balance suffices.
func (p *MarketPlayer) TransferFiatTo(recipient *MarketPlayer, value decimal.Decimal) bool {
	return p.model.Markets.TransferFiat(p.account, recipient.account, value) == nil
}

// TransferCuritsTo sends curits to another player, if the balance suffices.
func (p *MarketPlayer) TransferCuritsTo(recipient *MarketPlayer, value decimal.Decimal) bool {
	return p.model.Markets.TransferCurits(p.account, recipient.account, value) == nil
}

// TransferNominsTo sends nomins to another player, if the balance suffices.
func (p *MarketPlayer) TransferNominsTo(recipient *MarketPlayer, value decimal.Decimal) bool {
	return p.model.Markets.TransferNomins(p.account, recipient.account, value) == nil
}

// EscrowCurits locks curits with the mint to issue nomins against.
func (p *MarketPlayer) EscrowCurits(value decimal.Decimal) bool {
	return p.model.Mint.EscrowCurits(p.account, value) == nil
}

// UnescrowCurits withdraws curits from escrow, if not too many issued
// nomins lock them.
func (p *MarketPlayer) UnescrowCurits(value decimal.Decimal) bool {
	return p.model.Mint.UnescrowCurits(p.account, value) == nil
}

// AvailableEscrowedCurits returns the escrowed curits not locked by
// issued nomins. May be negative.
func (p *MarketPlayer) AvailableEscrowedCurits() decimal.Decimal {
	return p.model.Mint.AvailableEscrowedCurits(p.account)
}

// UnavailableEscrowedCurits returns the escrowed curits locked by
// issuance. May exceed the total escrowed amount.
func (p *MarketPlayer) UnavailableEscrowedCurits() decimal.Decimal {
	return p.model.Mint.UnavailableEscrowedCurits(p.account)
}

// MaxIssuanceRights returns the total nomins the player may issue.
func (p *MarketPlayer) MaxIssuanceRights() decimal.Decimal {
	return p.model.Mint.MaxIssuanceRights(p.account)
}

// RemainingIssuanceRights returns the nomins the player may still
// issue. May be negative.
func (p *MarketPlayer) RemainingIssuanceRights() decimal.Decimal {
	return p.model.Mint.RemainingIssuanceRights(p.account)
}

// IssueNomins issues nomins against escrowed curits, up to the
// utilisation ratio maximum.
func (p *MarketPlayer) IssueNomins(value decimal.Decimal) bool {
	return p.model.Mint.IssueNomins(p.account, value) == nil
}

// BurnNomins burns issued nomins, freeing escrowed curits.
func (p *MarketPlayer) BurnNomins(value decimal.Decimal) bool {
	return p.model.Mint.BurnNomins(p.account, value) == nil
}

// sellQuoted sells a quantity of the quoted currency into a market by
// bidding for the equivalent base amount at the current best ask.
func (p *MarketPlayer) sellQuoted(book *havven.OrderBook, quantity, premium decimal.Decimal) (*havven.Order, error) {
	price, err := book.LowestAskPrice()
	if err != nil {
		return nil, err
	}
	return p.track(book.Buy(quantity.Div(price), p, premium))
}

// sellBase sells a quantity of the base currency into a market.
func (p *MarketPlayer) sellBase(book *havven.OrderBook, quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.track(book.Sell(quantity, p, discount))
}

// SellNominsForCurits sells a quantity of nomins to buy curits.
func (p *MarketPlayer) SellNominsForCurits(quantity, premium decimal.Decimal) (*havven.Order, error) {
	return p.sellQuoted(p.model.Markets.CuritNominMarket, quantity, premium)
}

// SellCuritsForNomins sells a quantity of curits to buy nomins.
func (p *MarketPlayer) SellCuritsForNomins(quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.sellBase(p.model.Markets.CuritNominMarket, quantity, discount)
}

// SellFiatForCurits sells a quantity of fiat to buy curits.
func (p *MarketPlayer) SellFiatForCurits(quantity, premium decimal.Decimal) (*havven.Order, error) {
	return p.sellQuoted(p.model.Markets.CuritFiatMarket, quantity, premium)
}

// SellCuritsForFiat sells a quantity of curits to buy fiat.
func (p *MarketPlayer) SellCuritsForFiat(quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.sellBase(p.model.Markets.CuritFiatMarket, quantity, discount)
}

// SellFiatForNomins sells a quantity of fiat to buy nomins.
func (p *MarketPlayer) SellFiatForNomins(quantity, premium decimal.Decimal) (*havven.Order, error) {
	return p.sellQuoted(p.model.Markets.NominFiatMarket, quantity, premium)
}

// SellNominsForFiat sells a quantity of nomins to buy fiat.
func (p *MarketPlayer) SellNominsForFiat(quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.sellBase(p.model.Markets.NominFiatMarket, quantity, discount)
}

// The WithFee variants shrink the traded quantity so the transfer fee
// comes out of the requested amount. This sizing assumes the fee is
// purely multiplicative and commutes with division by price: the fee is
// computed on the requested quantity rather than on the quantity
// actually transferred, a known modeling simplification.

// SellNominsForCuritsWithFee sells a quantity of nomins, fee included,
// to buy curits.
func (p *MarketPlayer) SellNominsForCuritsWithFee(quantity, premium decimal.Decimal) (*havven.Order, error) {
	return p.sellQuoted(p.model.Markets.CuritNominMarket,
		p.model.Fees.TransferredNominsReceived(quantity), premium)
}

// SellCuritsForNominsWithFee sells a quantity of curits, fee included,
// to buy nomins.
func (p *MarketPlayer) SellCuritsForNominsWithFee(quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.sellBase(p.model.Markets.CuritNominMarket,
		p.model.Fees.TransferredCuritsReceived(quantity), discount)
}

// SellFiatForCuritsWithFee sells a quantity of fiat, fee included, to
// buy curits.
func (p *MarketPlayer) SellFiatForCuritsWithFee(quantity, premium decimal.Decimal) (*havven.Order, error) {
	return p.sellQuoted(p.model.Markets.CuritFiatMarket,
		p.model.Fees.TransferredFiatReceived(quantity), premium)
}

// SellCuritsForFiatWithFee sells a quantity of curits, fee included, to
// buy fiat.
func (p *MarketPlayer) SellCuritsForFiatWithFee(quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.sellBase(p.model.Markets.CuritFiatMarket,
		p.model.Fees.TransferredCuritsReceived(quantity), discount)
}

// SellFiatForNominsWithFee sells a quantity of fiat, fee included, to
// buy nomins.
func (p *MarketPlayer) SellFiatForNominsWithFee(quantity, premium decimal.Decimal) (*havven.Order, error) {
	return p.sellQuoted(p.model.Markets.NominFiatMarket,
		p.model.Fees.TransferredFiatReceived(quantity), premium)
}

// SellNominsForFiatWithFee sells a quantity of nomins, fee included, to
// buy fiat.
func (p *MarketPlayer) SellNominsForFiatWithFee(quantity, discount decimal.Decimal) (*havven.Order, error) {
	return p.sellBase(p.model.Markets.NominFiatMarket,
		p.model.Fees.TransferredNominsReceived(quantity), discount)
}

// PlaceCuritFiatBid bids for a quantity of curits at a price in fiat.
func (p *MarketPlayer) PlaceCuritFiatBid(quantity, price decimal.Decimal) (*havven.Order, error) {
	return p.track(p.model.Markets.CuritFiatMarket.Bid(price, quantity, p))
}

// PlaceCuritFiatAsk offers a quantity of curits at a price in fiat.
func (p *MarketPlayer) PlaceCuritFiatAsk(quantity, price decimal.Decimal) (*havven.Order, error) {
	return p.track(p.model.Markets.CuritFiatMarket.Ask(price, quantity, p))
}

// PlaceNominFiatBid bids for a quantity of nomins at a price in fiat.
func (p *MarketPlayer) PlaceNominFiatBid(quantity, price decimal.Decimal) (*havven.Order, error) {
	return p.track(p.model.Markets.NominFiatMarket.Bid(price, quantity, p))
}

// PlaceNominFiatAsk offers a quantity of nomins at a price in fiat.
func (p *MarketPlayer) PlaceNominFiatAsk(quantity, price decimal.Decimal) (*havven.Order, error) {
	return p.track(p.model.Markets.NominFiatMarket.Ask(price, quantity, p))
}

// PlaceCuritNominBid bids for a quantity of curits at a price in nomins.
func (p *MarketPlayer) PlaceCuritNominBid(quantity, price decimal.Decimal) (*havven.Order, error) {
	return p.track(p.model.Markets.CuritNominMarket.Bid(price, quantity, p))
}

// PlaceCuritNominAsk offers a quantity of curits at a price in nomins.
func (p *MarketPlayer) PlaceCuritNominAsk(quantity, price decimal.Decimal) (*havven.Order, error) {
	return p.track(p.model.Markets.CuritNominMarket.Ask(price, quantity, p))
}

// PlaceCuritFiatBidWithFee bids for a quantity of curits at a price in
// fiat, with the fiat fee taken out of the quantity. As with the
// fee-inclusive sells, this relies on the fee being multiplicative: it
// is computed on the quantity rather than on quantity*price actually
// transferred.
func (p *MarketPlayer) PlaceCuritFiatBidWithFee(quantity, price decimal.Decimal) (*havven.Order, error) {
	qty := p.model.Fees.TransferredFiatReceived(quantity)
	return p.track(p.model.Markets.CuritFiatMarket.Bid(price, qty, p))
}

// PlaceCuritFiatAskWithFee offers a quantity of curits, fee included,
// at a price in fiat.
func (p *MarketPlayer) PlaceCuritFiatAskWithFee(quantity, price decimal.Decimal) (*havven.Order, error) {
	qty := p.model.Fees.TransferredCuritsReceived(quantity)
	return p.track(p.model.Markets.CuritFiatMarket.Ask(price, qty, p))
}

// PlaceNominFiatBidWithFee bids for a quantity of nomins at a price in
// fiat, with the fiat fee taken out of the quantity.
func (p *MarketPlayer) PlaceNominFiatBidWithFee(quantity, price decimal.Decimal) (*havven.Order, error) {
	qty := p.model.Fees.TransferredFiatReceived(quantity)
	return p.track(p.model.Markets.NominFiatMarket.Bid(price, qty, p))
}

// PlaceNominFiatAskWithFee offers a quantity of nomins, fee included,
// at a price in fiat.
func (p *MarketPlayer) PlaceNominFiatAskWithFee(quantity, price decimal.Decimal) (*havven.Order, error) {
	qty := p.model.Fees.TransferredNominsReceived(quantity)
	return p.track(p.model.Markets.NominFiatMarket.Ask(price, qty, p))
}

// PlaceCuritNominBidWithFee bids for a quantity of curits at a price in
// nomins, with the nomin fee taken out of the quantity.
func (p *MarketPlayer) PlaceCuritNominBidWithFee(quantity, price decimal.Decimal) (*havven.Order, error) {
	qty := p.model.Fees.TransferredNominsReceived(quantity)
	return p.track(p.model.Markets.CuritNominMarket.Bid(price, qty, p))
}

// PlaceCuritNominAskWithFee offers a quantity of curits, fee included,
// at a price in nomins.
func (p *MarketPlayer) PlaceCuritNominAskWithFee(quantity, price decimal.Decimal) (*havven.Order, error) {
	qty := p.model.Fees.TransferredCuritsReceived(quantity)
	return p.track(p.model.Markets.CuritNominMarket.Ask(price, qty, p))
}
