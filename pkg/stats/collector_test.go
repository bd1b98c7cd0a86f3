package stats

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/havven-sim/pkg/havven"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubTrader struct {
	account *havven.Account
}

func (s *stubTrader) Account() *havven.Account      { return s.account }
func (s *stubTrader) NotifyFilled(*havven.Order)    {}
func (s *stubTrader) NotifyCancelled(*havven.Order) {}

func TestCollectorObserve(t *testing.T) {
	level, _ := log.ToLevel("error")
	logger := log.NewTestLogger(level)

	cfg := havven.DefaultConfig()
	m, err := havven.NewModel(cfg, logger)
	require.NoError(t, err)

	seller := &stubTrader{account: m.Ledger.CreateAccount("s", dec("0"), dec("100"), dec("0"))}
	buyer := &stubTrader{account: m.Ledger.CreateAccount("b", dec("100"), dec("0"), dec("0"))}
	_, err = m.Markets.CuritFiatMarket.Ask(dec("2"), dec("10"), seller)
	require.NoError(t, err)
	_, err = m.Markets.CuritFiatMarket.Bid(dec("2"), dec("10"), buyer)
	require.NoError(t, err)

	c := NewCollector(m, logger)
	c.Observe(1)

	families, err := c.registry.Gather()
	require.NoError(t, err)
	byName := make(map[string]bool, len(families))
	for _, f := range families {
		byName[f.GetName()] = true
	}
	for _, name := range []string{
		"havven_currency_supply",
		"havven_market_price",
		"havven_orders_placed_total",
		"havven_trades_executed_total",
		"havven_fees_burned",
		"havven_aggregate_wealth",
	} {
		assert.True(t, byName[name], "missing metric family %s", name)
	}

	t.Run("HandlerServesMetrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		assert.Equal(t, 200, rec.Code)
		body := rec.Body.String()
		assert.True(t, strings.Contains(body, "havven_ticks 1"), "body:\n%s", body)
		assert.True(t, strings.Contains(body, `havven_market_price{market="curits/fiat"} 2`))
	})

	t.Run("CountersAreMonotonic", func(t *testing.T) {
		// Re-observing without new activity must not advance the counters.
		c.Observe(2)
		assert.Equal(t, int64(1), c.lastTrades)
		assert.Equal(t, uint64(2), c.lastOrders)
	})
}
