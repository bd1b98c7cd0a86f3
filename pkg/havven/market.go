package havven

import (
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// MarketManager owns the three exchange markets of the economy and the
// fee-inclusive transfer conveniences. It composes the Ledger and the
// order books and enforces nothing beyond what they already enforce.
type MarketManager struct {
	ledger *Ledger

	CuritFiatMarket  *OrderBook
	NominFiatMarket  *OrderBook
	CuritNominMarket *OrderBook
}

// NewMarketManager creates the three markets over the given ledger.
func NewMarketManager(ledger *Ledger, logger log.Logger) *MarketManager {
	return &MarketManager{
		ledger:           ledger,
		CuritFiatMarket:  NewOrderBook(CUR, FIAT, ledger, logger),
		NominFiatMarket:  NewOrderBook(NOM, FIAT, ledger, logger),
		CuritNominMarket: NewOrderBook(CUR, NOM, ledger, logger),
	}
}

// Books returns the three markets in a fixed order.
func (m *MarketManager) Books() []*OrderBook {
	return []*OrderBook{m.CuritFiatMarket, m.NominFiatMarket, m.CuritNominMarket}
}

// TransferFiat moves fiat between accounts with the fiat fee applied.
func (m *MarketManager) TransferFiat(from, to *Account, value decimal.Decimal) error {
	return m.ledger.Transfer(from, to, FIAT, value)
}

// TransferCurits moves curits between accounts with the curit fee applied.
func (m *MarketManager) TransferCurits(from, to *Account, value decimal.Decimal) error {
	return m.ledger.Transfer(from, to, CUR, value)
}

// TransferNomins moves nomins between accounts with the nomin fee applied.
func (m *MarketManager) TransferNomins(from, to *Account, value decimal.Decimal) error {
	return m.ledger.Transfer(from, to, NOM, value)
}
