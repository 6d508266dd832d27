package redemption_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/classpoints/classroom"
	"github.com/warp/classpoints/ledger"
	"github.com/warp/classpoints/redemption"
	"github.com/warp/classpoints/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const owner = "teacher-1"

func newTestEngine(t *testing.T) (*redemption.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return redemption.New(store), store
}

// seedStudent gives the student a balance through the ledger so the
// record history stays consistent with the balance.
func seedStudent(t *testing.T, store classroom.Store, id, name string, points int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveStudent(ctx, classroom.Student{ID: id, OwnerID: owner, Name: name}))
	if points != 0 {
		_, err := ledger.New(store).Apply(ctx, owner, ledger.ApplyInput{
			StudentID: id,
			Delta:     points,
			Reason:    "seed",
		})
		require.NoError(t, err)
	}
}

func seedItem(t *testing.T, store classroom.Store, id, name string, cost int, stock *int) {
	t.Helper()
	require.NoError(t, store.SaveItem(context.Background(), classroom.StoreItem{
		ID:       id,
		OwnerID:  owner,
		Name:     name,
		Cost:     cost,
		Stock:    stock,
		IsActive: true,
	}))
}

func intPtr(n int) *int { return &n }

// =============================================================================
// REDEEM TESTS
// =============================================================================

func TestRedeem_HappyPath(t *testing.T) {
	// GIVEN: A student with 50 points and an item costing 30 with stock 2
	// WHEN: Redeeming
	// THEN: Balance 20, stock 1, a PENDING redemption, and a SUBTRACT record

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, intPtr(2))

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)

	assert.Equal(t, 20, res.Student.Points)
	assert.Equal(t, classroom.RedemptionPending, res.Redemption.Status)
	assert.Equal(t, 30, res.Redemption.Cost)

	item, err := store.GetItem(ctx, owner, "i-1")
	require.NoError(t, err)
	require.NotNil(t, item.Stock)
	assert.Equal(t, 1, *item.Stock)

	records, err := store.RecordsByStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	last := records[len(records)-1]
	assert.Equal(t, classroom.RecordSubtract, last.Type)
	assert.Equal(t, -30, last.Points, "the debit is mirrored in the record history")
}

func TestRedeem_UnlimitedStock(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Choose your seat", 5, nil)

	for i := 0; i < 3; i++ {
		_, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
		require.NoError(t, err)
	}

	item, err := store.GetItem(ctx, owner, "i-1")
	require.NoError(t, err)
	assert.Nil(t, item.Stock, "unlimited items never gain a stock counter")
}

func TestRedeem_InsufficientPoints(t *testing.T) {
	// GIVEN: A student with 10 points and an item costing 30
	// WHEN: Redeeming
	// THEN: InsufficientPointsError with the shortfall; nothing changes

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 10)
	seedItem(t, store, "i-1", "Homework pass", 30, intPtr(2))

	_, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})

	var ipErr *classroom.InsufficientPointsError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, 10, ipErr.Balance)
	assert.Equal(t, 30, ipErr.Cost)
	assert.Equal(t, 20, ipErr.Shortfall)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 10, st.Points)

	item, err := store.GetItem(ctx, owner, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 2, *item.Stock)

	views, total, err := store.ListRedemptions(ctx, owner, classroom.RedemptionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, views)
}

func TestRedeem_OutOfStock(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Sticker pack", 4, intPtr(0))

	_, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})

	var osErr *classroom.OutOfStockError
	require.ErrorAs(t, err, &osErr)
	assert.Equal(t, "i-1", osErr.ItemID)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, st.Points, "balance untouched on stock failure")
}

func TestRedeem_InactiveItem(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	require.NoError(t, store.SaveItem(ctx, classroom.StoreItem{
		ID: "i-1", OwnerID: owner, Name: "Retired", Cost: 5, IsActive: false,
	}))

	_, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	assert.ErrorIs(t, err, classroom.ErrInactive)
}

func TestRedeem_UnknownItem_NotFound(t *testing.T) {
	engine, store := newTestEngine(t)
	seedStudent(t, store, "s-1", "Ava", 50)

	_, err := engine.Redeem(context.Background(), owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "missing"})
	assert.True(t, classroom.IsNotFound(err))
}

func TestRedeem_ArchivedStudent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, nil)
	require.NoError(t, store.ArchiveStudent(ctx, owner, "s-1"))

	_, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	assert.ErrorIs(t, err, classroom.ErrArchived)
}

// =============================================================================
// STATUS TRANSITION TESTS
// =============================================================================

func TestUpdateStatus_Fulfill(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, nil)

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)

	view, err := engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionFulfilled, "handed over")
	require.NoError(t, err)

	assert.Equal(t, classroom.RedemptionFulfilled, view.Status)
	assert.NotNil(t, view.FulfilledAt)

	// Fulfillment has no balance side effects
	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 20, st.Points)
}

func TestUpdateStatus_CancelPending_RefundsEverything(t *testing.T) {
	// GIVEN: A redemption debiting 30 points and one unit of stock
	// WHEN: Cancelling it
	// THEN: Points and stock come back, with a matching ADD record

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, intPtr(2))

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)

	view, err := engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionCancelled, "changed mind")
	require.NoError(t, err)
	assert.Equal(t, classroom.RedemptionCancelled, view.Status)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, st.Points)

	item, err := store.GetItem(ctx, owner, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 2, *item.Stock)

	records, err := store.RecordsByStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	last := records[len(records)-1]
	assert.Equal(t, classroom.RecordAdd, last.Type)
	assert.Equal(t, 30, last.Points)
}

func TestUpdateStatus_CancelUsesSnapshotCost(t *testing.T) {
	// GIVEN: A redemption at cost 30, then the item's price changes to 5
	// WHEN: Cancelling
	// THEN: The refund is the snapshot 30, not the new price

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, nil)

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)

	seedItem(t, store, "i-1", "Homework pass", 5, nil) // price change

	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionCancelled, "")
	require.NoError(t, err)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, st.Points, "refund follows the cost at redemption time")
}

func TestUpdateStatus_CancelFulfilled_StillCompensates(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, intPtr(1))

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)
	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionFulfilled, "")
	require.NoError(t, err)

	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionCancelled, "returned")
	require.NoError(t, err)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, st.Points)

	item, err := store.GetItem(ctx, owner, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 1, *item.Stock)
}

func TestUpdateStatus_DoubleCancel_NoDoubleCredit(t *testing.T) {
	// GIVEN: A cancelled redemption
	// WHEN: Cancelling it again
	// THEN: No error, and no second refund

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, intPtr(2))

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)

	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionCancelled, "")
	require.NoError(t, err)
	view, err := engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, classroom.RedemptionCancelled, view.Status)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, st.Points, "cancelling twice must not refund twice")

	item, err := store.GetItem(ctx, owner, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 2, *item.Stock)
}

func TestUpdateStatus_FulfillCancelled_Rejected(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, nil)

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)
	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionCancelled, "")
	require.NoError(t, err)

	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionFulfilled, "")
	assert.True(t, classroom.IsValidation(err))
}

func TestUpdateStatus_ToPending_Rejected(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, nil)

	res, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)

	_, err = engine.UpdateStatus(ctx, owner, res.Redemption.ID, classroom.RedemptionPending, "")
	assert.True(t, classroom.IsValidation(err), "PENDING is not a transition target")
}

// =============================================================================
// LEDGER CONSISTENCY
// =============================================================================

func TestRedeemCycle_BalanceMatchesRecordHistory(t *testing.T) {
	// GIVEN: Awards, a redemption, and a cancellation
	// WHEN: Replaying the record history
	// THEN: It matches the materialized balance at every step

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava", 50)
	seedItem(t, store, "i-1", "Homework pass", 30, intPtr(1))

	lg := ledger.New(store)
	verify := func(want int) {
		t.Helper()
		res, err := lg.Verify(ctx, owner, "s-1")
		require.NoError(t, err)
		assert.Equal(t, want, res.Balance)
		assert.True(t, res.Consistent)
	}

	verify(50)

	red, err := engine.Redeem(ctx, owner, redemption.RedeemInput{StudentID: "s-1", ItemID: "i-1"})
	require.NoError(t, err)
	verify(20)

	_, err = engine.UpdateStatus(ctx, owner, red.Redemption.ID, classroom.RedemptionCancelled, "")
	require.NoError(t, err)
	verify(50)
}
