package havven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMint(t *testing.T, ratio string, price *fixedPrice) (*Mint, *Ledger) {
	t.Helper()
	l := newTestLedger(t, FeeRates{})
	return NewMint(l, dec(ratio), price, testLogger()), l
}

// Escrow 100 curits at ratio 0.5 and unit price: issuance is capped at
// 50 nomins, and the collateral stays locked until they are burned.
func TestMintIssuanceLifecycle(t *testing.T) {
	mint, l := newTestMint(t, "0.5", &fixedPrice{price: dec("1")})
	a := l.CreateAccount("a", dec("0"), dec("100"), dec("0"))

	require.NoError(t, mint.EscrowCurits(a, dec("100")))
	assert.True(t, a.Curits.IsZero())
	assert.True(t, a.EscrowedCurits.Equal(dec("100")))
	assert.True(t, mint.MaxIssuanceRights(a).Equal(dec("50")))

	assert.ErrorIs(t, mint.IssueNomins(a, dec("60")), ErrOverIssuance)
	require.NoError(t, mint.IssueNomins(a, dec("50")))
	assert.True(t, a.Nomins.Equal(dec("50")))
	assert.True(t, a.IssuedNomins.Equal(dec("50")))
	assert.True(t, mint.RemainingIssuanceRights(a).IsZero())

	// All escrow backs the issued nomins now.
	assert.True(t, mint.UnavailableEscrowedCurits(a).Equal(dec("100")))
	assert.True(t, mint.AvailableEscrowedCurits(a).IsZero())
	assert.ErrorIs(t, mint.UnescrowCurits(a, dec("100")), ErrCollateralLocked)

	require.NoError(t, mint.BurnNomins(a, dec("50")))
	assert.True(t, a.Nomins.IsZero())
	assert.True(t, a.IssuedNomins.IsZero())
	require.NoError(t, mint.UnescrowCurits(a, dec("100")))
	assert.True(t, a.Curits.Equal(dec("100")))
	assert.True(t, a.EscrowedCurits.IsZero())
}

func TestMintEscrow(t *testing.T) {
	mint, l := newTestMint(t, "1", &fixedPrice{price: dec("1")})
	a := l.CreateAccount("a", dec("0"), dec("10"), dec("0"))

	t.Run("InsufficientAvailable", func(t *testing.T) {
		require.NoError(t, l.Reserve(a, CUR, dec("4")))
		assert.ErrorIs(t, mint.EscrowCurits(a, dec("7")), ErrInsufficientBalance)
		require.NoError(t, mint.EscrowCurits(a, dec("6")))
		assert.True(t, a.Curits.Equal(dec("4")))
		assert.True(t, a.EscrowedCurits.Equal(dec("6")))
	})

	t.Run("NonPositiveIsFatal", func(t *testing.T) {
		assert.Panics(t, func() { mint.EscrowCurits(a, dec("0")) })
		assert.Panics(t, func() { mint.UnescrowCurits(a, dec("-1")) })
	})
}

func TestMintBurn(t *testing.T) {
	mint, l := newTestMint(t, "1", &fixedPrice{price: dec("1")})
	a := l.CreateAccount("a", dec("0"), dec("100"), dec("0"))
	b := l.CreateAccount("b", dec("0"), dec("0"), dec("50"))

	require.NoError(t, mint.EscrowCurits(a, dec("100")))
	require.NoError(t, mint.IssueNomins(a, dec("100")))

	t.Run("OverBurn", func(t *testing.T) {
		// Holding more nomins than were issued does not extend the
		// burnable amount.
		require.NoError(t, l.Transfer(b, a, NOM, dec("50")))
		assert.True(t, a.Nomins.Equal(dec("150")))
		assert.ErrorIs(t, mint.BurnNomins(a, dec("101")), ErrOverBurn)
	})

	t.Run("InsufficientAvailableNomins", func(t *testing.T) {
		require.NoError(t, l.Transfer(a, b, NOM, dec("100")))
		// 50 nomins remain against 100 issued.
		assert.ErrorIs(t, mint.BurnNomins(a, dec("60")), ErrInsufficientBalance)
		require.NoError(t, mint.BurnNomins(a, dec("50")))
		assert.True(t, a.Nomins.IsZero())
		assert.True(t, a.IssuedNomins.Equal(dec("50")))
	})
}

func TestMintPriceMoves(t *testing.T) {
	price := &fixedPrice{price: dec("1")}
	mint, l := newTestMint(t, "0.5", price)
	a := l.CreateAccount("a", dec("0"), dec("100"), dec("0"))

	require.NoError(t, mint.EscrowCurits(a, dec("100")))
	require.NoError(t, mint.IssueNomins(a, dec("50")))

	t.Run("PriceDropLocksHarder", func(t *testing.T) {
		price.price = dec("0.5")
		// Backing 50 nomins at price 0.5 and ratio 0.5 needs 200 curits.
		assert.True(t, mint.UnavailableEscrowedCurits(a).Equal(dec("200")))
		assert.True(t, mint.AvailableEscrowedCurits(a).Equal(dec("-100")))
		assert.True(t, mint.RemainingIssuanceRights(a).Equal(dec("-25")))
		assert.ErrorIs(t, mint.UnescrowCurits(a, dec("1")), ErrCollateralLocked)
		assert.ErrorIs(t, mint.IssueNomins(a, dec("1")), ErrOverIssuance)
	})

	t.Run("PriceRiseFreesCollateral", func(t *testing.T) {
		price.price = dec("2")
		// Backing 50 nomins at price 2 and ratio 0.5 needs 50 curits.
		assert.True(t, mint.UnavailableEscrowedCurits(a).Equal(dec("50")))
		require.NoError(t, mint.UnescrowCurits(a, dec("50")))
		assert.True(t, a.Curits.Equal(dec("50")))
	})
}
