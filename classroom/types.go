/*
Package classroom provides the core types and contracts for the classroom
points engine.

PURPOSE:
  This package contains the shared domain model for managing student point
  balances. Points are awarded and deducted through rules, spent in a
  points store, and audited through an append-only record history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Student: roster entry with a materialized point balance
  - PointRecord: an immutable ledger entry backing that balance
  - PointRule: a named template for a fixed award/deduction
  - StoreItem / Redemption: the points store and its purchase lifecycle
  - CallRecord: audit trail for call-outs

DESIGN PRINCIPLES:
  1. Ownership: every entity belongs to exactly one teacher (OwnerID);
     no query or mutation ever crosses owners
  2. Projection invariant: Student.Points is a materialized view of the
     PointRecord history - any engine that changes the balance must append
     a record in the same atomic unit
  3. Immutability: PointRecord and CallRecord rows are never updated

SEE ALSO:
  - errors.go: Error taxonomy shared by all engines
  - store.go: Persistence contracts
  - ledger/: Applies deltas and batch resets
  - redemption/: Spends points against store stock
*/
package classroom

import "time"

// =============================================================================
// STUDENT - Roster entry with materialized balance
// =============================================================================

// Student is a roster entry. Points is a projection of the PointRecord
// history; it is only ever written together with a matching record.
type Student struct {
	ID         string
	OwnerID    string
	Name       string
	Number     string // display number on the class list, free-form
	GroupID    string // empty when the student is in no group
	Points     int
	IsArchived bool // archived students are excluded from every engine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Group is a named, owner-scoped cohort. A student belongs to at most one.
type Group struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// Tag is a named, owner-scoped label. Students carry any number of tags.
type Tag struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// =============================================================================
// POINT RECORD - Immutable ledger entry
// =============================================================================

type RecordType string

const (
	RecordAdd      RecordType = "ADD"      // positive delta
	RecordSubtract RecordType = "SUBTRACT" // negative delta
	RecordReset    RecordType = "RESET"    // Points holds the literal new balance
)

// PointRecord is one entry in the append-only ledger.
//
// For ADD/SUBTRACT records, Points is the signed delta applied to the
// balance. For RESET records, Points is the literal post-reset balance:
// the record reads as a standalone statement ("balance is now X") and
// acts as a checkpoint when replaying history (see ledger.ReplayBalance).
type PointRecord struct {
	ID        string
	OwnerID   string
	StudentID string
	RuleID    string // empty when no rule produced this record
	Points    int
	Type      RecordType
	Reason    string
	CreatedAt time.Time
}

// RecordView is a PointRecord joined with display fields for listing.
type RecordView struct {
	PointRecord
	StudentName   string
	StudentNumber string
	RuleName      string
}

// =============================================================================
// POINT RULE - Named template for a fixed award/deduction
// =============================================================================

// PointRule maps a name to a fixed point value. Read-only input to the
// ledger engine; applying a rule never mutates it.
type PointRule struct {
	ID        string
	OwnerID   string
	Name      string
	Points    int
	Type      RecordType // ADD or SUBTRACT
	IsActive  bool
	CreatedAt time.Time
}

// =============================================================================
// STORE ITEM & REDEMPTION - The points store
// =============================================================================

// StoreItem is something students spend points on.
// Stock == nil means unlimited stock.
type StoreItem struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Cost        int // price in points, always positive
	Stock       *int
	IsActive    bool
	CreatedAt   time.Time
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "PENDING"
	RedemptionFulfilled RedemptionStatus = "FULFILLED"
	RedemptionCancelled RedemptionStatus = "CANCELLED"
)

// Redemption links a student to a purchased item. Cost is snapshotted at
// redemption time and never re-read from the item, so history stays
// accurate when prices change later.
type Redemption struct {
	ID          string
	OwnerID     string
	StudentID   string
	ItemID      string
	Cost        int
	Status      RedemptionStatus
	Notes       string
	RedeemedAt  time.Time
	FulfilledAt *time.Time
}

// RedemptionView is a Redemption joined with display fields.
type RedemptionView struct {
	Redemption
	StudentName   string
	StudentNumber string
	ItemName      string
}

// =============================================================================
// CALL RECORD - Audit trail for call-outs
// =============================================================================

type CallMode string

const (
	CallRandom CallMode = "RANDOM"
	CallManual CallMode = "MANUAL"
)

// CallRecord marks one call-out event. StudentID is kept nullable so the
// audit row survives student deletion.
type CallRecord struct {
	ID        string
	OwnerID   string
	StudentID *string
	Mode      CallMode
	CalledAt  time.Time
}

// CallView is a CallRecord joined with the student name (empty when the
// student is gone).
type CallView struct {
	CallRecord
	StudentName string
}
