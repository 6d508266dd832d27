package randomcall_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/classpoints/classroom"
	"github.com/warp/classpoints/randomcall"
	"github.com/warp/classpoints/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const owner = "teacher-1"

// firstOf always draws index 0, making picks deterministic.
func firstOf(n int) int { return 0 }

func newTestSelector(t *testing.T, opts ...randomcall.Option) (*randomcall.Selector, *memory.Memory) {
	store := memory.New()
	return randomcall.New(store, opts...), store
}

func seedStudent(t *testing.T, store classroom.Store, id, name string) {
	t.Helper()
	err := store.SaveStudent(context.Background(), classroom.Student{
		ID:      id,
		OwnerID: owner,
		Name:    name,
	})
	require.NoError(t, err)
}

// =============================================================================
// PICK TESTS
// =============================================================================

func TestPick_DrawsFromRoster(t *testing.T) {
	// GIVEN: A roster of three
	// WHEN: Picking with a pinned draw
	// THEN: A student comes back and a RANDOM call record is appended

	sel, store := newTestSelector(t, randomcall.WithRand(firstOf))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	seedStudent(t, store, "s-2", "Liam")
	seedStudent(t, store, "s-3", "Maya")

	res, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Student.ID)
	assert.False(t, res.AvoidResetUsed)

	calls, total, err := store.ListCalls(ctx, owner, classroom.CallFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, classroom.CallRandom, calls[0].Mode)
	require.NotNil(t, calls[0].StudentID)
	assert.Equal(t, res.Student.ID, *calls[0].StudentID)
}

func TestPick_AvoidsRecentlyCalled(t *testing.T) {
	// GIVEN: s-1 was called moments ago
	// WHEN: Picking with a 24h avoid window and a pinned first-index draw
	// THEN: The pick skips s-1

	sel, store := newTestSelector(t, randomcall.WithRand(firstOf))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	seedStudent(t, store, "s-2", "Liam")

	first, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)

	second, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)

	assert.NotEqual(t, first.Student.ID, second.Student.ID)
	assert.False(t, second.AvoidResetUsed)
}

func TestPick_AllRecentlyCalled_FallsBack(t *testing.T) {
	// GIVEN: Every student was called within the window
	// WHEN: Picking again
	// THEN: The window is dropped and the pick still succeeds, flagged

	sel, store := newTestSelector(t, randomcall.WithRand(firstOf))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	seedStudent(t, store, "s-2", "Liam")

	for i := 0; i < 2; i++ {
		_, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
		require.NoError(t, err)
	}

	res, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)

	assert.True(t, res.AvoidResetUsed)
	assert.NotEmpty(t, res.Message)
}

func TestPick_ZeroAvoidHours_NoWindow(t *testing.T) {
	sel, store := newTestSelector(t, randomcall.WithRand(firstOf))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")

	for i := 0; i < 3; i++ {
		res, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 0})
		require.NoError(t, err)
		assert.Equal(t, "s-1", res.Student.ID)
		assert.False(t, res.AvoidResetUsed, "no window means no fallback")
	}
}

func TestPick_NegativeAvoidHours_Rejected(t *testing.T) {
	sel, store := newTestSelector(t)
	seedStudent(t, store, "s-1", "Ava")

	_, err := sel.Pick(context.Background(), owner, randomcall.PickInput{AvoidHours: -1})
	assert.True(t, classroom.IsValidation(err))
}

func TestPick_EmptyRoster_NoStudentsAvailable(t *testing.T) {
	sel, _ := newTestSelector(t)

	_, err := sel.Pick(context.Background(), owner, randomcall.PickInput{AvoidHours: 24})
	assert.ErrorIs(t, err, classroom.ErrNoStudentsAvailable)
}

func TestPick_ExclusionsSurviveFallback(t *testing.T) {
	// GIVEN: Every student is explicitly excluded
	// WHEN: Picking
	// THEN: Even the fallback cannot produce a student

	sel, store := newTestSelector(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	seedStudent(t, store, "s-2", "Liam")

	_, err := sel.Pick(ctx, owner, randomcall.PickInput{
		AvoidHours: 24,
		ExcludeIDs: []string{"s-1", "s-2"},
	})
	assert.ErrorIs(t, err, classroom.ErrNoStudentsAvailable)
}

func TestPick_ArchivedExcluded(t *testing.T) {
	sel, store := newTestSelector(t, randomcall.WithRand(firstOf))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	seedStudent(t, store, "s-2", "Liam")
	require.NoError(t, store.ArchiveStudent(ctx, owner, "s-1"))

	for i := 0; i < 3; i++ {
		res, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 0})
		require.NoError(t, err)
		assert.Equal(t, "s-2", res.Student.ID)
	}
}

func TestPick_WindowExpires(t *testing.T) {
	// GIVEN: s-1 was called 25 hours ago (via an injected clock)
	// WHEN: Picking with a 24h window
	// THEN: s-1 is eligible again

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sel, store := newTestSelector(t, randomcall.WithRand(firstOf), randomcall.WithClock(clock))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")

	_, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	res, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.Student.ID)
	assert.False(t, res.AvoidResetUsed, "the window expired naturally, no fallback")
}

// =============================================================================
// MANUAL CALL TESTS
// =============================================================================

func TestRecordManual_CountsAgainstWindow(t *testing.T) {
	// GIVEN: s-1 was called manually
	// WHEN: Picking with the avoid window on
	// THEN: s-1 is excluded like any random call

	sel, store := newTestSelector(t, randomcall.WithRand(firstOf))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	seedStudent(t, store, "s-2", "Liam")

	view, err := sel.RecordManual(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, classroom.CallManual, view.Mode)
	assert.Equal(t, "Ava", view.StudentName)

	res, err := sel.Pick(ctx, owner, randomcall.PickInput{AvoidHours: 24})
	require.NoError(t, err)
	assert.Equal(t, "s-2", res.Student.ID)
}

func TestRecordManual_ArchivedStudent_Rejected(t *testing.T) {
	sel, store := newTestSelector(t)
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")
	require.NoError(t, store.ArchiveStudent(ctx, owner, "s-1"))

	_, err := sel.RecordManual(ctx, owner, "s-1")
	assert.ErrorIs(t, err, classroom.ErrArchived)
}

func TestRecordManual_UnknownStudent_NotFound(t *testing.T) {
	sel, _ := newTestSelector(t)

	_, err := sel.RecordManual(context.Background(), owner, "missing")
	assert.True(t, classroom.IsNotFound(err))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_NewestFirst(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sel, store := newTestSelector(t, randomcall.WithRand(firstOf), randomcall.WithClock(clock))
	ctx := context.Background()
	seedStudent(t, store, "s-1", "Ava")

	for i := 0; i < 3; i++ {
		_, err := sel.Pick(ctx, owner, randomcall.PickInput{})
		require.NoError(t, err)
		now = now.Add(time.Hour)
	}

	views, total, err := sel.History(ctx, owner, classroom.CallFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, views, 3)
	assert.True(t, views[0].CalledAt.After(views[2].CalledAt))
}
