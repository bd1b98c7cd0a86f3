package agents

import (
	"testing"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/havven-sim/pkg/havven"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testModel(t *testing.T, mutate func(*havven.Config)) *havven.Model {
	t.Helper()
	cfg := havven.DefaultConfig()
	cfg.FiatFee = decimal.Zero
	cfg.CuritFee = decimal.Zero
	cfg.NominFee = decimal.Zero
	if mutate != nil {
		mutate(&cfg)
	}
	level, _ := log.ToLevel("error")
	m, err := havven.NewModel(cfg, log.NewTestLogger(level))
	require.NoError(t, err)
	return m
}

func TestTransfers(t *testing.T) {
	m := testModel(t, nil)
	alice := NewMarketPlayer("alice", m, dec("100"), dec("10"), dec("5"))
	bob := NewMarketPlayer("bob", m, dec("0"), dec("0"), dec("0"))

	assert.True(t, alice.TransferFiatTo(bob, dec("40")))
	assert.True(t, alice.TransferCuritsTo(bob, dec("10")))
	assert.True(t, alice.TransferNominsTo(bob, dec("5")))
	assert.True(t, bob.Account().Fiat.Equal(dec("40")))
	assert.True(t, bob.Account().Curits.Equal(dec("10")))
	assert.True(t, bob.Account().Nomins.Equal(dec("5")))

	// Failures are reported, not raised.
	assert.False(t, alice.TransferCuritsTo(bob, dec("1")))
	assert.False(t, bob.TransferFiatTo(alice, dec("41")))
}

func TestIssuanceSurface(t *testing.T) {
	m := testModel(t, func(cfg *havven.Config) {
		cfg.UtilisationRatio = dec("0.5")
	})
	p := NewMarketPlayer("p", m, dec("0"), dec("100"), dec("0"))

	assert.True(t, p.EscrowCurits(dec("100")))
	assert.False(t, p.EscrowCurits(dec("1")))
	assert.True(t, p.MaxIssuanceRights().Equal(dec("50")))
	assert.True(t, p.RemainingIssuanceRights().Equal(dec("50")))

	assert.False(t, p.IssueNomins(dec("60")))
	assert.True(t, p.IssueNomins(dec("50")))
	assert.True(t, p.UnavailableEscrowedCurits().Equal(dec("100")))
	assert.True(t, p.AvailableEscrowedCurits().IsZero())

	assert.False(t, p.UnescrowCurits(dec("100")))
	assert.True(t, p.BurnNomins(dec("50")))
	assert.True(t, p.UnescrowCurits(dec("100")))
	assert.True(t, p.AvailableCurits().Equal(dec("100")))
}

func TestOrderPlacementRouting(t *testing.T) {
	m := testModel(t, nil)
	maker := NewMarketPlayer("maker", m, dec("1000"), dec("1000"), dec("1000"))
	taker := NewMarketPlayer("taker", m, dec("1000"), dec("1000"), dec("1000"))

	t.Run("PlaceBidReservesQuote", func(t *testing.T) {
		o, err := maker.PlaceCuritFiatBid(dec("10"), dec("2"))
		require.NoError(t, err)
		assert.Equal(t, havven.BidSide, o.Side)
		assert.True(t, maker.Account().UsedFiat.Equal(dec("20")))
		assert.Len(t, maker.Orders(), 1)
		require.NoError(t, o.Cancel())
		assert.Empty(t, maker.Orders())
	})

	t.Run("SellQuotedSizesOffBestAsk", func(t *testing.T) {
		_, err := maker.PlaceCuritFiatAsk(dec("100"), dec("4"))
		require.NoError(t, err)

		// Selling 40 fiat at an ask of 4 bids for 10 curits.
		o, err := taker.SellFiatForCurits(dec("40"), decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, havven.OrderFilled, o.State)
		assert.True(t, taker.Account().Curits.Equal(dec("1010")))
		assert.True(t, taker.Account().Fiat.Equal(dec("960")))
	})

	t.Run("SellBasePlacesAsk", func(t *testing.T) {
		o, err := taker.SellNominsForFiat(dec("5"), decimal.Zero)
		assert.ErrorIs(t, err, havven.ErrEmptyBook)
		assert.Nil(t, o)

		_, err = maker.PlaceNominFiatBid(dec("5"), dec("1"))
		require.NoError(t, err)
		o, err = taker.SellNominsForFiat(dec("5"), decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, havven.AskSide, o.Side)
		assert.Equal(t, havven.OrderFilled, o.State)
	})

	t.Run("CuritNominMarket", func(t *testing.T) {
		maker.CancelOrders()
		o, err := maker.PlaceCuritNominAsk(dec("10"), dec("1.5"))
		require.NoError(t, err)
		assert.True(t, maker.Account().UsedCurits.Equal(dec("10")))
		bid, err := taker.PlaceCuritNominBid(dec("10"), dec("1.5"))
		require.NoError(t, err)
		assert.Equal(t, havven.OrderFilled, bid.State)
		assert.Equal(t, havven.OrderFilled, o.State)
	})
}

func TestFeeInclusiveSizing(t *testing.T) {
	m := testModel(t, func(cfg *havven.Config) {
		cfg.FiatFee = dec("0.01")
		cfg.CuritFee = dec("0.02")
	})
	p := NewMarketPlayer("p", m, dec("1000"), dec("1000"), dec("1000"))

	o, err := p.PlaceCuritFiatBidWithFee(dec("100"), dec("1"))
	require.NoError(t, err)
	assert.True(t, o.Quantity.Equal(dec("99")), "quantity %s", o.Quantity)

	o, err = p.PlaceCuritFiatAskWithFee(dec("100"), dec("2"))
	require.NoError(t, err)
	assert.True(t, o.Quantity.Equal(dec("98")), "quantity %s", o.Quantity)
}

func TestWealthAndProfit(t *testing.T) {
	m := testModel(t, func(cfg *havven.Config) {
		cfg.UtilisationRatio = dec("1")
	})
	p := NewMarketPlayer("p", m, dec("100"), dec("50"), dec("0"))

	// Prices start at parity, so wealth is the simple sum.
	assert.True(t, p.Wealth().Equal(dec("150")))
	assert.True(t, p.Profit().IsZero())

	// Escrow and issuance leave wealth unchanged: escrowed curits count
	// towards it and issued nomins cancel the minted balance.
	require.True(t, p.EscrowCurits(dec("50")))
	require.True(t, p.IssueNomins(dec("50")))
	assert.True(t, p.Wealth().Equal(dec("150")))

	pf := p.Portfolio(false)
	assert.True(t, pf.EscrowedCurits.Equal(dec("50")))
	assert.True(t, pf.IssuedNomins.Equal(dec("50")))

	old := p.ResetInitialWealth()
	assert.True(t, old.Equal(dec("150")))
	assert.True(t, p.Profit().IsZero())
}

func TestCancelOrders(t *testing.T) {
	m := testModel(t, nil)
	p := NewMarketPlayer("p", m, dec("100"), dec("100"), dec("100"))

	_, err := p.PlaceCuritFiatBid(dec("10"), dec("1"))
	require.NoError(t, err)
	_, err = p.PlaceNominFiatAsk(dec("10"), dec("2"))
	require.NoError(t, err)
	_, err = p.PlaceCuritNominBid(dec("10"), dec("1"))
	require.NoError(t, err)
	require.Len(t, p.Orders(), 3)

	p.CancelOrders()
	assert.Empty(t, p.Orders())
	assert.True(t, p.Account().UsedFiat.IsZero())
	assert.True(t, p.Account().UsedCurits.IsZero())
	assert.True(t, p.Account().UsedNomins.IsZero())
}
