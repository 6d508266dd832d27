/*
reset.go - Cohort-wide balance reset

PURPOSE:
  Resets an arbitrary cohort of students (whole class, one group, one tag,
  or an explicit list) to a target balance, logging one RESET record per
  student for the audit trail.

COHORT SELECTOR:
  The selector is a closed tagged variant: Mode names the resolution
  strategy and carries exactly the payload that strategy needs. A new mode
  cannot fall through unvalidated - resolveCohort fails on anything it
  does not recognize.

ATOMICITY:
  Resolution, per-student record appends, and the bulk balance write all
  happen in one unit. Partial ownership in a SELECTED batch aborts the
  whole reset before any write.
*/
package ledger

import (
	"fmt"
	"strings"

	"context"

	"github.com/google/uuid"
	"github.com/warp/classpoints/classroom"
)

// =============================================================================
// COHORT SELECTOR
// =============================================================================

type ResetMode string

const (
	ResetAll      ResetMode = "ALL"      // every non-archived student
	ResetGroup    ResetMode = "GROUP"    // members of one group
	ResetTag      ResetMode = "TAG"      // students carrying one tag
	ResetSelected ResetMode = "SELECTED" // an explicit id list
)

// ResetSelector names a cohort. Exactly the payload matching Mode is read;
// the rest is ignored.
type ResetSelector struct {
	Mode       ResetMode
	GroupID    string
	TagID      string
	StudentIDs []string
}

// ResetInput describes a cohort reset.
type ResetInput struct {
	Selector    ResetSelector
	TargetValue int
	Reason      string
}

// ResetChange is the old/new audit pair for one student.
type ResetChange struct {
	StudentID string
	Name      string
	OldPoints int
	NewPoints int
}

// ResetResult reports what the reset touched.
type ResetResult struct {
	Count   int
	Changes []ResetChange
}

// =============================================================================
// RESET OPERATION
// =============================================================================

// ResetPoints sets every student in the cohort to TargetValue. Each student
// gets one RESET record carrying the literal target (the uniform RESET
// convention), then all balances are bulk-set in the same unit.
func (e *Engine) ResetPoints(ctx context.Context, ownerID string, in ResetInput) (*ResetResult, error) {
	if err := e.validateTarget(in.TargetValue); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, &classroom.ValidationError{Field: "reason", Message: "must not be empty"}
	}

	var result ResetResult
	err := e.store.WithTx(ctx, func(s classroom.Store) error {
		cohort, err := e.resolveCohort(ctx, s, ownerID, in.Selector)
		if err != nil {
			return err
		}
		if len(cohort) == 0 {
			return &classroom.ValidationError{Message: "no students matched the selection"}
		}

		now := e.now()
		annotated := fmt.Sprintf("%s [%s]", reason, in.Selector.Mode)

		ids := make([]string, 0, len(cohort))
		for _, st := range cohort {
			rec := classroom.PointRecord{
				ID:        uuid.NewString(),
				OwnerID:   ownerID,
				StudentID: st.ID,
				Points:    in.TargetValue,
				Type:      classroom.RecordReset,
				Reason:    annotated,
				CreatedAt: now,
			}
			if err := s.AppendRecord(ctx, rec); err != nil {
				return err
			}
			result.Changes = append(result.Changes, ResetChange{
				StudentID: st.ID,
				Name:      st.Name,
				OldPoints: st.Points,
				NewPoints: in.TargetValue,
			})
			ids = append(ids, st.ID)
		}

		if err := s.SetStudentsPoints(ctx, ownerID, ids, in.TargetValue); err != nil {
			return err
		}

		result.Count = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// resolveCohort turns the selector into concrete non-archived students
// owned by the caller.
func (e *Engine) resolveCohort(ctx context.Context, s classroom.Store, ownerID string, sel ResetSelector) ([]classroom.Student, error) {
	switch sel.Mode {
	case ResetAll:
		return s.ListStudents(ctx, ownerID, classroom.StudentFilter{})

	case ResetGroup:
		// The group itself must be the caller's before members resolve.
		// A group the caller does not own surfaces as Forbidden here, not
		// NotFound: the selector's ownership check is its own step.
		if _, err := s.GetGroup(ctx, ownerID, sel.GroupID); err != nil {
			return nil, fmt.Errorf("group %s: %w", sel.GroupID, classroom.ErrForbidden)
		}
		return s.ListStudents(ctx, ownerID, classroom.StudentFilter{GroupID: sel.GroupID})

	case ResetTag:
		if _, err := s.GetTag(ctx, ownerID, sel.TagID); err != nil {
			return nil, fmt.Errorf("tag %s: %w", sel.TagID, classroom.ErrForbidden)
		}
		return s.ListStudents(ctx, ownerID, classroom.StudentFilter{TagID: sel.TagID})

	case ResetSelected:
		ids := dedupe(sel.StudentIDs)
		if len(ids) == 0 {
			return nil, &classroom.ValidationError{Field: "student_ids", Message: "must not be empty"}
		}
		var cohort []classroom.Student
		for _, id := range ids {
			st, err := s.GetStudent(ctx, ownerID, id)
			if err != nil {
				// Partial ownership is a hard failure: no partial reset.
				return nil, &classroom.ValidationError{
					Field:   "student_ids",
					Message: fmt.Sprintf("student %s is not in this class", id),
				}
			}
			if st.IsArchived {
				continue
			}
			cohort = append(cohort, st)
		}
		return cohort, nil

	default:
		return nil, &classroom.ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("unknown reset mode %q", sel.Mode),
		}
	}
}
