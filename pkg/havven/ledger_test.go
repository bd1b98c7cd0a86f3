package havven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, rates FeeRates) *Ledger {
	t.Helper()
	fees, err := NewFeeManager(rates)
	require.NoError(t, err)
	return NewLedger(fees, testLogger())
}

func TestLedgerTransfer(t *testing.T) {
	l := newTestLedger(t, FeeRates{Fiat: dec("0.005")})
	alice := l.CreateAccount("alice", dec("100"), dec("0"), dec("0"))
	bob := l.CreateAccount("bob", dec("0"), dec("0"), dec("0"))

	t.Run("FeeAdjusted", func(t *testing.T) {
		require.NoError(t, l.Transfer(alice, bob, FIAT, dec("100")))
		assert.True(t, alice.Fiat.IsZero())
		assert.True(t, bob.Fiat.Equal(dec("99.5")))
		assert.True(t, l.FeesBurned(FIAT).Equal(dec("0.5")))
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		err := l.Transfer(alice, bob, FIAT, dec("1"))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		// Rejection leaves both accounts untouched.
		assert.True(t, alice.Fiat.IsZero())
		assert.True(t, bob.Fiat.Equal(dec("99.5")))
	})

	t.Run("NonPositiveAmountIsFatal", func(t *testing.T) {
		assert.Panics(t, func() { l.Transfer(bob, alice, FIAT, dec("0")) })
		assert.Panics(t, func() { l.Transfer(bob, alice, FIAT, dec("-5")) })
	})
}

func TestLedgerTransferRespectsReservations(t *testing.T) {
	l := newTestLedger(t, FeeRates{})
	a := l.CreateAccount("a", dec("100"), dec("0"), dec("0"))
	b := l.CreateAccount("b", dec("0"), dec("0"), dec("0"))

	require.NoError(t, l.Reserve(a, FIAT, dec("60")))
	assert.True(t, a.AvailableFiat().Equal(dec("40")))

	// Only the unreserved portion is spendable.
	assert.ErrorIs(t, l.Transfer(a, b, FIAT, dec("41")), ErrInsufficientBalance)
	require.NoError(t, l.Transfer(a, b, FIAT, dec("40")))
	assert.True(t, a.Fiat.Equal(dec("60")))
	assert.True(t, a.UsedFiat.Equal(dec("60")))
}

func TestLedgerReserveRelease(t *testing.T) {
	l := newTestLedger(t, FeeRates{})
	a := l.CreateAccount("a", dec("0"), dec("50"), dec("0"))

	t.Run("ReserveWithinBalance", func(t *testing.T) {
		require.NoError(t, l.Reserve(a, CUR, dec("30")))
		require.NoError(t, l.Reserve(a, CUR, dec("20")))
		assert.True(t, a.UsedCurits.Equal(dec("50")))
		assert.True(t, a.AvailableCurits().IsZero())
	})

	t.Run("OverReserveFails", func(t *testing.T) {
		err := l.Reserve(a, CUR, dec("0.00000001"))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.True(t, a.UsedCurits.Equal(dec("50")))
	})

	t.Run("ReleaseRestoresAvailability", func(t *testing.T) {
		require.NoError(t, l.Release(a, CUR, dec("50")))
		assert.True(t, a.UsedCurits.IsZero())
		assert.True(t, a.AvailableCurits().Equal(dec("50")))
	})

	t.Run("OverReleaseFails", func(t *testing.T) {
		err := l.Release(a, CUR, dec("1"))
		assert.ErrorIs(t, err, ErrInsufficientReservation)
	})
}

func TestLedgerAccounts(t *testing.T) {
	l := newTestLedger(t, FeeRates{})
	a := l.CreateAccount("a", dec("1"), dec("2"), dec("3"))

	assert.Equal(t, a, l.Account("a"))
	assert.Nil(t, l.Account("missing"))
	assert.True(t, a.Balance(FIAT).Equal(dec("1")))
	assert.True(t, a.Balance(CUR).Equal(dec("2")))
	assert.True(t, a.Balance(NOM).Equal(dec("3")))

	b := l.CreateAccount("b", dec("0"), dec("0"), dec("0"))
	assert.Equal(t, []*Account{a, b}, l.Accounts())

	assert.Panics(t, func() { l.CreateAccount("c", dec("-1"), dec("0"), dec("0")) })
}
