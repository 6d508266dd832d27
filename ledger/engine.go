/*
Package ledger applies point deltas to student balances.

PURPOSE:
  The ledger engine is the only writer of ADD/SUBTRACT/RESET point records.
  Every balance change happens inside one atomic unit: the student row
  update and the matching record append commit together or not at all,
  which is what keeps the balance a trustworthy projection of the history.

OPERATIONS:
  Apply:       One student, one signed delta
  ApplyToMany: Same delta to a whole set of students, all-or-nothing
  ResetPoints: Set a cohort to a target value (reset.go)
  Verify:      Replay the history and compare with the stored balance

RESET CONVENTION:
  A RESET record stores the literal post-reset balance, not a delta. When
  replaying history a RESET acts as a checkpoint: the running sum restarts
  from the record's value. See balance.go.

BOUNDS:
  Deltas are capped at +/-MaxDelta (default 1000) as a fat-finger guard.
  The cap applies to the delta, not to the resulting balance; balances may
  go negative through deductions.

SEE ALSO:
  - classroom/store.go: The transactional contract this engine relies on
  - redemption/: The other writer of student balances
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/classpoints/classroom"
)

// DefaultMaxDelta bounds a single apply operation.
const DefaultMaxDelta = 1000

// Engine applies point changes. Construct with New; the zero value is not
// usable.
type Engine struct {
	store    classroom.Store
	maxDelta int
	now      func() time.Time
}

type Option func(*Engine)

// WithMaxDelta overrides the per-operation delta bound.
func WithMaxDelta(n int) Option {
	return func(e *Engine) { e.maxDelta = n }
}

// WithClock substitutes the time source. Tests use this for deterministic
// record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store classroom.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		maxDelta: DefaultMaxDelta,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// APPLY - Single student
// =============================================================================

// ApplyInput describes one point change.
type ApplyInput struct {
	StudentID string
	Delta     int    // non-zero, within +/-MaxDelta
	Reason    string // required
	RuleID    string // optional: the rule template that produced this change
}

// ApplyResult carries the post-state.
type ApplyResult struct {
	Student classroom.Student
	Record  classroom.PointRecord
}

// Apply adds Delta to the student's balance and appends the matching
// record in one atomic unit.
func (e *Engine) Apply(ctx context.Context, ownerID string, in ApplyInput) (*ApplyResult, error) {
	if err := e.validateDelta(in.Delta); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, &classroom.ValidationError{Field: "reason", Message: "must not be empty"}
	}

	var result ApplyResult
	err := e.store.WithTx(ctx, func(s classroom.Store) error {
		st, err := s.GetStudent(ctx, ownerID, in.StudentID)
		if err != nil {
			return err
		}
		if st.IsArchived {
			return fmt.Errorf("student %s: %w", st.ID, classroom.ErrArchived)
		}

		if in.RuleID != "" {
			rule, err := s.GetRule(ctx, ownerID, in.RuleID)
			if err != nil {
				return err
			}
			if !rule.IsActive {
				return fmt.Errorf("rule %s: %w", rule.ID, classroom.ErrInactive)
			}
		}

		st.Points += in.Delta
		if err := s.SetStudentPoints(ctx, ownerID, st.ID, st.Points); err != nil {
			return err
		}

		rec := classroom.PointRecord{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			StudentID: st.ID,
			RuleID:    in.RuleID,
			Points:    in.Delta,
			Type:      recordTypeFor(in.Delta),
			Reason:    reason,
			CreatedAt: e.now(),
		}
		if err := s.AppendRecord(ctx, rec); err != nil {
			return err
		}

		result = ApplyResult{Student: st, Record: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// APPLY TO MANY - Batch, all-or-nothing
// =============================================================================

// BatchInput applies one value to several students.
//
// For ADD/SUBTRACT batches, Value is the signed delta and Type is derived
// from its sign. For RESET batches (Type == RecordReset), Value is the
// literal balance every student is set to.
type BatchInput struct {
	StudentIDs []string
	Value      int
	Reason     string
	RuleID     string
	Type       classroom.RecordType
}

// BatchResult carries the post-state for every student in the batch.
type BatchResult struct {
	Students []classroom.Student
	Records  []classroom.PointRecord
}

// ApplyToMany applies the same change to each listed student as independent
// records within one atomic unit. If any id is invalid, not owned, or
// archived, nothing is applied.
func (e *Engine) ApplyToMany(ctx context.Context, ownerID string, in BatchInput) (*BatchResult, error) {
	ids := dedupe(in.StudentIDs)
	if len(ids) == 0 {
		return nil, &classroom.ValidationError{Field: "student_ids", Message: "must not be empty"}
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, &classroom.ValidationError{Field: "reason", Message: "must not be empty"}
	}

	isReset := in.Type == classroom.RecordReset
	if isReset {
		if err := e.validateTarget(in.Value); err != nil {
			return nil, err
		}
	} else if err := e.validateDelta(in.Value); err != nil {
		return nil, err
	}

	var result BatchResult
	err := e.store.WithTx(ctx, func(s classroom.Store) error {
		if in.RuleID != "" {
			if _, err := s.GetRule(ctx, ownerID, in.RuleID); err != nil {
				return err
			}
		}

		// Validate the whole batch before writing anything.
		students := make([]classroom.Student, 0, len(ids))
		for _, id := range ids {
			st, err := s.GetStudent(ctx, ownerID, id)
			if err != nil {
				return &classroom.ValidationError{
					Field:   "student_ids",
					Message: fmt.Sprintf("student %s is not in this class", id),
				}
			}
			if st.IsArchived {
				return fmt.Errorf("student %s: %w", st.ID, classroom.ErrArchived)
			}
			students = append(students, st)
		}

		now := e.now()
		for i := range students {
			st := &students[i]
			recPoints := in.Value
			if isReset {
				st.Points = in.Value // literal target, not added
			} else {
				st.Points += in.Value
			}
			if err := s.SetStudentPoints(ctx, ownerID, st.ID, st.Points); err != nil {
				return err
			}

			recType := in.Type
			if !isReset {
				recType = recordTypeFor(in.Value)
			}
			rec := classroom.PointRecord{
				ID:        uuid.NewString(),
				OwnerID:   ownerID,
				StudentID: st.ID,
				RuleID:    in.RuleID,
				Points:    recPoints,
				Type:      recType,
				Reason:    reason,
				CreatedAt: now,
			}
			if err := s.AppendRecord(ctx, rec); err != nil {
				return err
			}
			result.Records = append(result.Records, rec)
		}

		result.Students = students
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// VERIFY - Balance vs. history
// =============================================================================

// VerifyResult compares the stored balance with a history replay.
type VerifyResult struct {
	StudentID  string
	Balance    int
	Replayed   int
	Consistent bool
}

// Verify replays the student's full record history and checks it against
// the materialized balance.
func (e *Engine) Verify(ctx context.Context, ownerID, studentID string) (*VerifyResult, error) {
	var result VerifyResult
	err := e.store.WithTx(ctx, func(s classroom.Store) error {
		st, err := s.GetStudent(ctx, ownerID, studentID)
		if err != nil {
			return err
		}
		records, err := s.RecordsByStudent(ctx, ownerID, studentID)
		if err != nil {
			return err
		}
		result = VerifyResult{
			StudentID: st.ID,
			Balance:   st.Points,
			Replayed:  ReplayBalance(records),
		}
		result.Consistent = result.Balance == result.Replayed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) validateDelta(delta int) error {
	if delta == 0 {
		return &classroom.ValidationError{Field: "points", Message: "must not be zero"}
	}
	if delta > e.maxDelta || delta < -e.maxDelta {
		return &classroom.ValidationError{
			Field:   "points",
			Message: fmt.Sprintf("must be within +/-%d", e.maxDelta),
		}
	}
	return nil
}

func (e *Engine) validateTarget(value int) error {
	if value > e.maxDelta || value < -e.maxDelta {
		return &classroom.ValidationError{
			Field:   "points",
			Message: fmt.Sprintf("must be within +/-%d", e.maxDelta),
		}
	}
	return nil
}

func recordTypeFor(delta int) classroom.RecordType {
	if delta >= 0 {
		return classroom.RecordAdd
	}
	return classroom.RecordSubtract
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
