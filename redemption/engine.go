/*
Package redemption runs the points store: spending balances against item
stock and unwinding purchases.

PURPOSE:
  Redeeming couples three tables - student balance, item stock, and the
  redemption row - and all three must move together. The engine performs
  the ordered precondition checks and all writes inside one atomic unit; a
  failure at any step leaves every table untouched.

REDEEM ORDER:
  1. Item exists and is owned       -> NotFound
  2. Item is active                 -> Inactive
  3. Student exists and is owned    -> NotFound
  4. Student not archived           -> Archived
  5. Balance covers cost            -> InsufficientPoints
  6. Stock available (if tracked)   -> OutOfStock, else decrement
  7. Debit points, insert PENDING redemption with the cost snapshot

COST SNAPSHOT:
  The redemption stores the item's cost at redeem time and never re-reads
  it. Later price changes do not affect history or compensation.

LIFECYCLE:
  PENDING -> FULFILLED (sets the fulfillment timestamp, no side effects)
  PENDING/FULFILLED -> CANCELLED (credits points back, restores tracked
  stock even if the item has since been deactivated)
  Cancelling an already-cancelled redemption is a no-op: no double credit.

LEDGER COUPLING:
  Every redeem writes a SUBTRACT record and every cancellation an ADD
  record in the same unit, so the balance stays a pure projection of the
  point record history across store activity.

SEE ALSO:
  - ledger/: The other writer of student balances
  - classroom/errors.go: The failure taxonomy used here
*/
package redemption

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/classpoints/classroom"
)

// Engine runs redemptions. Construct with New.
type Engine struct {
	store classroom.Store
	now   func() time.Time
}

type Option func(*Engine)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store classroom.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// REDEEM
// =============================================================================

// RedeemInput describes a purchase attempt.
type RedeemInput struct {
	StudentID string
	ItemID    string
	Notes     string
}

// RedeemResult carries the post-state of everything the purchase touched.
type RedeemResult struct {
	Redemption classroom.Redemption
	Student    classroom.Student
	Item       classroom.StoreItem
}

// Redeem debits the student, decrements tracked stock, and creates a
// PENDING redemption - atomically. Any precondition failure aborts before
// the first write.
func (e *Engine) Redeem(ctx context.Context, ownerID string, in RedeemInput) (*RedeemResult, error) {
	var result RedeemResult
	err := e.store.WithTx(ctx, func(s classroom.Store) error {
		item, err := s.GetItem(ctx, ownerID, in.ItemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return fmt.Errorf("item %s: %w", item.ID, classroom.ErrInactive)
		}

		student, err := s.GetStudent(ctx, ownerID, in.StudentID)
		if err != nil {
			return err
		}
		if student.IsArchived {
			return fmt.Errorf("student %s: %w", student.ID, classroom.ErrArchived)
		}

		if student.Points < item.Cost {
			return &classroom.InsufficientPointsError{
				StudentID: student.ID,
				Balance:   student.Points,
				Cost:      item.Cost,
				Shortfall: item.Cost - student.Points,
			}
		}

		if item.Stock != nil {
			if *item.Stock < 1 {
				return &classroom.OutOfStockError{ItemID: item.ID}
			}
			*item.Stock--
			if err := s.SetItemStock(ctx, ownerID, item.ID, *item.Stock); err != nil {
				return err
			}
		}

		student.Points -= item.Cost
		if err := s.SetStudentPoints(ctx, ownerID, student.ID, student.Points); err != nil {
			return err
		}

		now := e.now()
		red := classroom.Redemption{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			StudentID:  student.ID,
			ItemID:     item.ID,
			Cost:       item.Cost, // snapshot: never re-read from the item
			Status:     classroom.RedemptionPending,
			Notes:      strings.TrimSpace(in.Notes),
			RedeemedAt: now,
		}
		if err := s.InsertRedemption(ctx, red); err != nil {
			return err
		}

		rec := classroom.PointRecord{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			StudentID: student.ID,
			Points:    -item.Cost,
			Type:      classroom.RecordSubtract,
			Reason:    fmt.Sprintf("redeemed %s", item.Name),
			CreatedAt: now,
		}
		if err := s.AppendRecord(ctx, rec); err != nil {
			return err
		}

		result = RedeemResult{Redemption: red, Student: student, Item: item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// UpdateStatus moves a redemption through its lifecycle.
//
// CANCELLED from a non-cancelled state credits the cost back and restores
// tracked stock; cancelling twice is a no-op. FULFILLED is only reachable
// from PENDING and just stamps the fulfillment time.
func (e *Engine) UpdateStatus(ctx context.Context, ownerID, redemptionID string, newStatus classroom.RedemptionStatus, notes string) (*classroom.RedemptionView, error) {
	switch newStatus {
	case classroom.RedemptionFulfilled, classroom.RedemptionCancelled:
	default:
		return nil, &classroom.ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition to %q", newStatus),
		}
	}

	var updated classroom.Redemption
	err := e.store.WithTx(ctx, func(s classroom.Store) error {
		red, err := s.GetRedemption(ctx, ownerID, redemptionID)
		if err != nil {
			return err
		}

		switch newStatus {
		case classroom.RedemptionFulfilled:
			if red.Status != classroom.RedemptionPending {
				return &classroom.ValidationError{
					Field:   "status",
					Message: fmt.Sprintf("cannot fulfill a %s redemption", red.Status),
				}
			}
			now := e.now()
			red.Status = classroom.RedemptionFulfilled
			red.FulfilledAt = &now

		case classroom.RedemptionCancelled:
			if red.Status == classroom.RedemptionCancelled {
				updated = red // idempotent: no double credit
				return nil
			}
			if err := e.compensate(ctx, s, ownerID, red); err != nil {
				return err
			}
			red.Status = classroom.RedemptionCancelled
		}

		if notes = strings.TrimSpace(notes); notes != "" {
			red.Notes = notes
		}
		if err := s.UpdateRedemption(ctx, red); err != nil {
			return err
		}
		updated = red
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.view(ctx, ownerID, updated)
}

// compensate credits the snapshot cost back to the student and restores
// tracked stock. Runs inside the caller's unit.
func (e *Engine) compensate(ctx context.Context, s classroom.Store, ownerID string, red classroom.Redemption) error {
	student, err := s.GetStudent(ctx, ownerID, red.StudentID)
	if err != nil {
		return err
	}

	student.Points += red.Cost
	if err := s.SetStudentPoints(ctx, ownerID, student.ID, student.Points); err != nil {
		return err
	}

	rec := classroom.PointRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		StudentID: student.ID,
		Points:    red.Cost,
		Type:      classroom.RecordAdd,
		Reason:    "redemption cancelled",
		CreatedAt: e.now(),
	}
	if err := s.AppendRecord(ctx, rec); err != nil {
		return err
	}

	// Stock is restored even for items deactivated since the purchase:
	// inactivity gates new redemptions, not compensation.
	item, err := s.GetItem(ctx, ownerID, red.ItemID)
	if err != nil {
		if classroom.IsNotFound(err) {
			return nil // item deleted since: nothing to restore
		}
		return err
	}
	if item.Stock != nil {
		if err := s.SetItemStock(ctx, ownerID, item.ID, *item.Stock+1); err != nil {
			return err
		}
	}
	return nil
}

// view loads the joined display row for a redemption.
func (e *Engine) view(ctx context.Context, ownerID string, red classroom.Redemption) (*classroom.RedemptionView, error) {
	views, _, err := e.store.ListRedemptions(ctx, ownerID, classroom.RedemptionFilter{StudentID: red.StudentID})
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].ID == red.ID {
			return &views[i], nil
		}
	}
	// Fallback for histories longer than one page.
	return &classroom.RedemptionView{Redemption: red}, nil
}
