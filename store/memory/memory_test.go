package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/classpoints/classroom"
	"github.com/warp/classpoints/store/memory"
)

const owner = "teacher-1"

func TestWithTx_RollbackDiscardsWrites(t *testing.T) {
	// GIVEN: A unit that writes a student and then fails
	// WHEN: The unit returns an error
	// THEN: The snapshot is discarded and the write never lands

	store := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s classroom.Store) error {
		if err := s.SaveStudent(ctx, classroom.Student{ID: "s-1", OwnerID: owner, Name: "Ava"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetStudent(ctx, owner, "s-1")
	assert.True(t, classroom.IsNotFound(err))
}

func TestWithTx_CommitPublishesWrites(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	err := store.WithTx(ctx, func(s classroom.Store) error {
		return s.SaveStudent(ctx, classroom.Student{ID: "s-1", OwnerID: owner, Name: "Ava"})
	})
	require.NoError(t, err)

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Ava", st.Name)
}

func TestWithTx_UnitDoesNotSeeLaterOutsideWrites(t *testing.T) {
	// The unit works on a snapshot: rows returned from it are copies, so
	// mutating the result of a read never leaks into committed state.

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveStudent(ctx, classroom.Student{ID: "s-1", OwnerID: owner, Name: "Ava"}))

	st, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	st.Name = "Mutated"

	again, err := store.GetStudent(ctx, owner, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Ava", again.Name)
}

func TestWithTx_NestedJoinsEnclosingUnit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s classroom.Store) error {
		if err := s.WithTx(ctx, func(inner classroom.Store) error {
			return inner.SaveStudent(ctx, classroom.Student{ID: "s-1", OwnerID: owner, Name: "Ava"})
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetStudent(ctx, owner, "s-1")
	assert.True(t, classroom.IsNotFound(err))
}

func TestOwnershipIsolation(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveStudent(ctx, classroom.Student{ID: "s-1", OwnerID: "teacher-2", Name: "Ava"}))

	_, err := store.GetStudent(ctx, owner, "s-1")
	assert.True(t, classroom.IsNotFound(err))

	students, err := store.ListStudents(ctx, owner, classroom.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, students)
}
