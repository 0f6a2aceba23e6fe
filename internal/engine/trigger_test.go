package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
)

func TestAutoBuy_AmountThenTrigger(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 100000, nil)

	require.NoError(t, rig.triggers.SetBuyAmount("u1", "XYZ", 10))

	// Staged but unarmed: nothing reserved, nothing registered.
	mid := rig.account(t, "u1")
	assert.Equal(t, int64(100000), mid.Available)
	require.NotNil(t, mid.BuyTriggers["XYZ"])
	assert.False(t, mid.BuyTriggers["XYZ"].Armed())
	assert.Equal(t, 0, rig.registry.Len())

	armed, err := rig.triggers.SetBuyTrigger("u1", "XYZ", 4500)
	require.NoError(t, err)
	assert.Equal(t, int64(10), armed.Quantity)
	assert.Equal(t, int64(4500), armed.TriggerPrice)

	after := rig.account(t, "u1")
	assert.Equal(t, int64(100000-45000), after.Available)
	assert.Equal(t, int64(100000), after.Balance)
	assert.Equal(t, 1, rig.registry.Len())
}

func TestAutoBuy_TriggerErrors(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 10000, nil)

	_, err := rig.triggers.SetBuyTrigger("u1", "XYZ", 4500)
	assert.ErrorIs(t, err, domain.ErrNoBuyAmountSet)

	require.NoError(t, rig.triggers.SetBuyAmount("u1", "XYZ", 10))
	_, err = rig.triggers.SetBuyTrigger("u1", "XYZ", 4500)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	err = rig.triggers.SetBuyAmount("ghost", "XYZ", 10)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	after := rig.account(t, "u1")
	assert.Equal(t, int64(10000), after.Available)
}

func TestAutoBuy_RearmRequiresExplicitCancel(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 100000, nil)

	require.NoError(t, rig.triggers.SetBuyAmount("u1", "XYZ", 10))
	_, err := rig.triggers.SetBuyTrigger("u1", "XYZ", 4500)
	require.NoError(t, err)

	// Restaging the amount or re-setting the trigger while armed would
	// leak the 450.00 already reserved, so both are rejected.
	err = rig.triggers.SetBuyAmount("u1", "XYZ", 20)
	assert.ErrorIs(t, err, domain.ErrBuyTriggerActive)
	_, err = rig.triggers.SetBuyTrigger("u1", "XYZ", 4000)
	assert.ErrorIs(t, err, domain.ErrBuyTriggerActive)

	removed, err := rig.triggers.CancelSetBuy("u1", "XYZ")
	require.NoError(t, err)
	assert.Equal(t, int64(10), removed.Quantity)

	after := rig.account(t, "u1")
	assert.Equal(t, int64(100000), after.Available)
	assert.Equal(t, 0, rig.registry.Len())

	// Now restaging works.
	require.NoError(t, rig.triggers.SetBuyAmount("u1", "XYZ", 20))
}

func TestAutoBuy_HugeAmountCannotWrapReservation(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 1000, nil)

	// Quantity * price would wrap int64 and slip past the funds check
	// as a tiny (or zero) reservation.
	require.NoError(t, rig.triggers.SetBuyAmount("u1", "XYZ", 1<<62))
	_, err := rig.triggers.SetBuyTrigger("u1", "XYZ", 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	after := rig.account(t, "u1")
	assert.Equal(t, int64(1000), after.Available)
	assert.Equal(t, int64(1000), after.Balance)
	require.NotNil(t, after.BuyTriggers["XYZ"])
	assert.False(t, after.BuyTriggers["XYZ"].Armed())
	assert.Equal(t, 0, rig.registry.Len())
}

func TestAutoBuy_CancelUnarmedRefundsNothing(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 100000, nil)

	require.NoError(t, rig.triggers.SetBuyAmount("u1", "XYZ", 10))
	_, err := rig.triggers.CancelSetBuy("u1", "XYZ")
	require.NoError(t, err)

	after := rig.account(t, "u1")
	assert.Equal(t, int64(100000), after.Available)
	assert.Nil(t, after.BuyTriggers["XYZ"])

	_, err = rig.triggers.CancelSetBuy("u1", "XYZ")
	assert.ErrorIs(t, err, domain.ErrNoBuyAmountSet)
}

func TestAutoSell_AmountThenTrigger(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 20})

	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 15))

	// Shares earmarked immediately, but no AutoTrigger and no registry
	// entry yet: the polling loop must never see the half-built order.
	mid := rig.account(t, "u1")
	assert.Equal(t, int64(5), mid.Holding("XYZ").Available)
	assert.Nil(t, mid.SellTriggers["XYZ"])
	assert.Equal(t, 0, rig.registry.Len())

	armed, err := rig.triggers.SetSellTrigger("u1", "XYZ", 6000)
	require.NoError(t, err)
	assert.Equal(t, int64(15), armed.Quantity)

	after := rig.account(t, "u1")
	require.NotNil(t, after.SellTriggers["XYZ"])
	assert.Equal(t, int64(5), after.Holding("XYZ").Available)
	assert.Equal(t, 1, rig.registry.Len())
}

func TestAutoSell_TriggerWithoutAmount(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 20})

	_, err := rig.triggers.SetSellTrigger("u1", "XYZ", 6000)
	assert.ErrorIs(t, err, domain.ErrNoSellAmountSet)

	// State unchanged.
	after := rig.account(t, "u1")
	assert.Equal(t, int64(20), after.Holding("XYZ").Available)
	assert.Nil(t, after.SellTriggers["XYZ"])
}

func TestAutoSell_AmountErrors(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 5})

	err := rig.triggers.SetSellAmount("u1", "ABC", 1)
	assert.ErrorIs(t, err, domain.ErrStockNotOwned)

	err = rig.triggers.SetSellAmount("u1", "XYZ", 6)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	err = rig.triggers.SetSellAmount("ghost", "XYZ", 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAutoSell_RestageReplacesEarmark(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 20})

	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 15))
	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 8))

	// The first earmark is refunded; exactly 8 shares held back.
	after := rig.account(t, "u1")
	assert.Equal(t, int64(12), after.Holding("XYZ").Available)
}

func TestAutoSell_OverwriteNetsEarmark(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 20})

	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 15))
	_, err := rig.triggers.SetSellTrigger("u1", "XYZ", 6000)
	require.NoError(t, err)

	// Re-run the two-step protocol with a smaller amount. Only 5 of 20
	// shares are available at this point; restaging must reclaim the
	// armed trigger's 15-share earmark, not fail insufficient_shares.
	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 8))

	// Restaging disarmed the old auto-sell; exactly 8 shares earmarked.
	mid := rig.account(t, "u1")
	assert.Nil(t, mid.SellTriggers["XYZ"])
	assert.Equal(t, int64(12), mid.Holding("XYZ").Available)
	assert.Equal(t, 0, rig.registry.Len())

	_, err = rig.triggers.SetSellTrigger("u1", "XYZ", 6500)
	require.NoError(t, err)

	after := rig.account(t, "u1")
	require.NotNil(t, after.SellTriggers["XYZ"])
	assert.Equal(t, int64(8), after.SellTriggers["XYZ"].Quantity)
	assert.Equal(t, int64(6500), after.SellTriggers["XYZ"].TriggerPrice)
	assert.Equal(t, int64(12), after.Holding("XYZ").Available)
	assert.Equal(t, 1, rig.registry.Len())
}

func TestAutoSell_RestageBeyondHoldingStillFails(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 20})

	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 15))
	_, err := rig.triggers.SetSellTrigger("u1", "XYZ", 6000)
	require.NoError(t, err)

	// Reclaiming the armed earmark frees 15 shares, but 25 still
	// exceeds the 20 held.
	err = rig.triggers.SetSellAmount("u1", "XYZ", 25)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	// The armed auto-sell survives a failed restage.
	after := rig.account(t, "u1")
	require.NotNil(t, after.SellTriggers["XYZ"])
	assert.Equal(t, int64(15), after.SellTriggers["XYZ"].Quantity)
	assert.Equal(t, int64(5), after.Holding("XYZ").Available)
	assert.Equal(t, 1, rig.registry.Len())
}

func TestAutoSell_CancelAtEitherStage(t *testing.T) {
	rig := newTestRig(t, time.Minute, nil)
	rig.seed(t, "u1", 0, map[string]int64{"XYZ": 20})

	// Cancel with nothing set.
	err := rig.triggers.CancelSetSell("u1", "XYZ")
	assert.ErrorIs(t, err, domain.ErrNoAutoSellSet)

	// Cancel at the staged-amount stage.
	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 15))
	require.NoError(t, rig.triggers.CancelSetSell("u1", "XYZ"))
	mid := rig.account(t, "u1")
	assert.Equal(t, int64(20), mid.Holding("XYZ").Available)

	// Cancel after arming.
	require.NoError(t, rig.triggers.SetSellAmount("u1", "XYZ", 15))
	_, err = rig.triggers.SetSellTrigger("u1", "XYZ", 6000)
	require.NoError(t, err)
	require.NoError(t, rig.triggers.CancelSetSell("u1", "XYZ"))

	after := rig.account(t, "u1")
	assert.Equal(t, int64(20), after.Holding("XYZ").Available)
	assert.Nil(t, after.SellTriggers["XYZ"])
	assert.Equal(t, 0, rig.registry.Len())
}

func TestRegistry_Basics(t *testing.T) {
	r := NewRegistry()
	r.Add("u1", "XYZ", DirectionBuy)
	r.Add("u1", "XYZ", DirectionSell)
	r.Add("u1", "XYZ", DirectionBuy) // duplicate is a no-op
	assert.Equal(t, 2, r.Len())

	snap := r.Snapshot()
	assert.Len(t, snap, 2)

	r.Remove("u1", "XYZ", DirectionBuy)
	r.Remove("u1", "XYZ", DirectionBuy) // absent is a no-op
	assert.Equal(t, 1, r.Len())
}
