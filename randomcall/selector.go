/*
Package randomcall picks students for cold-calling without repeats.

PURPOSE:
  A fair call-out draws uniformly from the class but avoids students
  called within a recent window. The selector builds the eligible pool,
  draws, and records the call in one atomic unit so concurrent picks see
  each other's history.

POOL CONSTRUCTION:
  pool = non-archived students
       - students called at or after (now - avoid window)
       - explicitly excluded ids

FALLBACK:
  When the avoid window empties the pool, the window is dropped and the
  draw retries against everyone (explicit exclusions still apply). Only
  when the pool stays empty does the pick fail with NoStudentsAvailable.
  The result flags whether the fallback fired so the caller can surface
  "everyone has been called recently, starting over".

RANDOMNESS:
  The draw function is injected. Production uses math/rand; tests seed
  a deterministic source or pin the index outright.

SEE ALSO:
  - classroom/store.go: CallStore, the append-only call history
*/
package randomcall

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/warp/classpoints/classroom"
)

// DefaultAvoidHours is the repeat-avoidance window applied when the
// caller does not choose one.
const DefaultAvoidHours = 24

// Selector draws students for call-outs. Construct with New.
type Selector struct {
	store classroom.Store
	now   func() time.Time
	intn  func(n int) int
}

type Option func(*Selector)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithRand substitutes the draw function. intn must return a uniform
// value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Selector) { s.intn = intn }
}

func New(store classroom.Store, opts ...Option) *Selector {
	s := &Selector{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		intn:  rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// PICK
// =============================================================================

// PickInput tunes a single draw.
type PickInput struct {
	// AvoidHours excludes students called within the last N hours.
	// Zero disables the window; negative is rejected.
	AvoidHours int

	// ExcludeIDs are always removed from the pool, fallback included.
	ExcludeIDs []string
}

// PickResult is the drawn student plus how the draw went.
type PickResult struct {
	Student        classroom.Student
	AvoidResetUsed bool
	Message        string
}

// Pick draws one student and appends the call record atomically.
func (s *Selector) Pick(ctx context.Context, ownerID string, in PickInput) (*PickResult, error) {
	if in.AvoidHours < 0 {
		return nil, &classroom.ValidationError{
			Field:   "avoid_hours",
			Message: "must not be negative",
		}
	}

	var result PickResult
	err := s.store.WithTx(ctx, func(st classroom.Store) error {
		students, err := st.ListStudents(ctx, ownerID, classroom.StudentFilter{})
		if err != nil {
			return err
		}

		manual := make(map[string]bool, len(in.ExcludeIDs))
		for _, id := range in.ExcludeIDs {
			manual[id] = true
		}

		recent := map[string]bool{}
		if in.AvoidHours > 0 {
			cutoff := s.now().Add(-time.Duration(in.AvoidHours) * time.Hour)
			ids, err := st.CalledStudentIDs(ctx, ownerID, cutoff)
			if err != nil {
				return err
			}
			for _, id := range ids {
				recent[id] = true
			}
		}

		pool := eligible(students, manual, recent)
		if len(pool) == 0 && in.AvoidHours > 0 {
			// Everyone was called recently: drop the window and retry.
			pool = eligible(students, manual, nil)
			result.AvoidResetUsed = true
			result.Message = "all students were called recently; the avoid window was reset"
		}
		if len(pool) == 0 {
			return fmt.Errorf("owner %s: %w", ownerID, classroom.ErrNoStudentsAvailable)
		}

		picked := pool[s.intn(len(pool))]
		call := classroom.CallRecord{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			StudentID: &picked.ID,
			Mode:      classroom.CallRandom,
			CalledAt:  s.now(),
		}
		if err := st.AppendCall(ctx, call); err != nil {
			return err
		}

		result.Student = picked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// eligible filters archived and excluded students out of the roster.
func eligible(students []classroom.Student, manual, recent map[string]bool) []classroom.Student {
	var pool []classroom.Student
	for _, st := range students {
		if st.IsArchived || manual[st.ID] || recent[st.ID] {
			continue
		}
		pool = append(pool, st)
	}
	return pool
}

// =============================================================================
// MANUAL CALLS
// =============================================================================

// RecordManual logs a teacher-chosen call-out. Manual calls count against
// the avoid window exactly like random ones.
func (s *Selector) RecordManual(ctx context.Context, ownerID, studentID string) (*classroom.CallView, error) {
	var view classroom.CallView
	err := s.store.WithTx(ctx, func(st classroom.Store) error {
		student, err := st.GetStudent(ctx, ownerID, studentID)
		if err != nil {
			return err
		}
		if student.IsArchived {
			return fmt.Errorf("student %s: %w", student.ID, classroom.ErrArchived)
		}

		call := classroom.CallRecord{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			StudentID: &student.ID,
			Mode:      classroom.CallManual,
			CalledAt:  s.now(),
		}
		if err := st.AppendCall(ctx, call); err != nil {
			return err
		}
		view = classroom.CallView{CallRecord: call, StudentName: student.Name}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// History lists past call-outs, newest first.
func (s *Selector) History(ctx context.Context, ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	return s.store.ListCalls(ctx, ownerID, f)
}
