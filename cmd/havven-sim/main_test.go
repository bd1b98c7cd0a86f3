package main

import (
	"math/rand"
	"testing"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/havven-sim/pkg/agents"
	"github.com/luxfi/havven-sim/pkg/havven"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestModel(t *testing.T) *havven.Model {
	t.Helper()
	level, _ := log.ToLevel("error")
	m, err := havven.NewModel(havven.DefaultConfig(), log.NewTestLogger(level))
	require.NoError(t, err)
	return m
}

// A noise trader whose budget rounds to a zero quantity at the current
// price must quote nothing rather than place an invalid order.
func TestNoiseTraderSkipsDustQuotes(t *testing.T) {
	m := newTestModel(t)

	// Push the curit price far above the trader's budget.
	maker := agents.NewMarketPlayer("maker", m, decimal.Zero, dec("1"), decimal.Zero)
	taker := agents.NewMarketPlayer("taker", m, dec("100000000"), decimal.Zero, decimal.Zero)
	_, err := maker.PlaceCuritFiatAsk(dec("1"), dec("100000000"))
	require.NoError(t, err)
	_, err = taker.PlaceCuritFiatBid(dec("1"), dec("100000000"))
	require.NoError(t, err)
	require.True(t, m.CuritPrice().Equal(dec("100000000")))

	n := &noiseTrader{
		MarketPlayer: agents.NewMarketPlayer("noise", m, dec("1"), decimal.Zero, decimal.Zero),
		rng:          rand.New(rand.NewSource(7)),
	}
	for i := 0; i < 32; i++ {
		n.quote(m.Markets.CuritFiatMarket, n.AvailableFiat(), n.AvailableCurits(),
			n.PlaceCuritFiatBid, n.PlaceCuritFiatAsk)
	}

	assert.Empty(t, n.Orders())
	assert.True(t, n.Account().UsedFiat.IsZero())
}

// With a sane budget the noise trader does place orders.
func TestNoiseTraderQuotes(t *testing.T) {
	m := newTestModel(t)

	n := &noiseTrader{
		MarketPlayer: agents.NewMarketPlayer("noise", m, dec("1000"), dec("1000"), decimal.Zero),
		rng:          rand.New(rand.NewSource(7)),
	}
	for i := 0; i < 16; i++ {
		n.Step()
	}

	var placed uint64
	for _, b := range m.Markets.Books() {
		placed += b.OrderCount()
	}
	assert.Positive(t, placed)
}
