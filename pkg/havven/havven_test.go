package havven

import (
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

func zeroFeeConfig() Config {
	cfg := DefaultConfig()
	cfg.FiatFee = decimal.Zero
	cfg.CuritFee = decimal.Zero
	cfg.NominFee = decimal.Zero
	return cfg
}

// testTrader is a minimal order owner recording its notifications.
type testTrader struct {
	account *Account
	fills   []*Order
	cancels []*Order
}

func (t *testTrader) Account() *Account        { return t.account }
func (t *testTrader) NotifyFilled(o *Order)    { t.fills = append(t.fills, o) }
func (t *testTrader) NotifyCancelled(o *Order) { t.cancels = append(t.cancels, o) }

// fixedPrice is a PriceSource pinned to a constant, for mint tests that
// need to move the collateral price without trading.
type fixedPrice struct {
	price decimal.Decimal
}

func (p *fixedPrice) Price() decimal.Decimal { return p.price }
