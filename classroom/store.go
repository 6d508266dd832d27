/*
store.go - Persistence contracts between the engines and the database

PURPOSE:
  Defines the interface between domain logic and storage. The engines are
  handed a Store by explicit injection - there is no package-level client -
  so tests can substitute an isolated instance per case.

KEY INTERFACES:
  RosterStore:  Students, groups, tags
  RuleStore:    Point rule templates
  LedgerStore:  Append-only point records
  CatalogStore: Store items and redemptions
  CallStore:    Call-out history
  Store:        All of the above plus WithTx

ATOMIC UNITS:
  Every engine operation runs inside a single WithTx call: reads, the
  decision, and every write commit together or not at all. The store passed
  to the WithTx callback sees uncommitted writes of the same unit. Nested
  WithTx joins the enclosing unit.

OWNERSHIP:
  Every read and write takes the caller's owner id and must filter by it.
  A row owned by someone else behaves exactly like a missing row.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - store/memory: in-memory for tests/dev
*/
package classroom

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS & PAGINATION
// =============================================================================

// Page selects a slice of a listing. Zero values mean first page with the
// implementation's default size.
type Page struct {
	Number int
	Size   int
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	GroupID         string
	TagID           string
	IncludeArchived bool
}

// RecordFilter narrows point record listings.
type RecordFilter struct {
	StudentID string
	Type      RecordType // empty = all types
	Page      Page
}

// RedemptionFilter narrows redemption listings.
type RedemptionFilter struct {
	StudentID string
	Status    RedemptionStatus // empty = all statuses
	Page      Page
}

// CallFilter narrows call history listings.
type CallFilter struct {
	Since time.Time // zero = all time
	Page  Page
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// RosterStore persists students, groups, and tags.
type RosterStore interface {
	SaveStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, ownerID, studentID string) (Student, error)
	ListStudents(ctx context.Context, ownerID string, f StudentFilter) ([]Student, error)

	// SetStudentPoints overwrites the materialized balance. Only the
	// engines call this, always alongside an AppendRecord in one WithTx.
	SetStudentPoints(ctx context.Context, ownerID, studentID string, points int) error
	SetStudentsPoints(ctx context.Context, ownerID string, studentIDs []string, points int) error

	ArchiveStudent(ctx context.Context, ownerID, studentID string) error

	SaveGroup(ctx context.Context, g Group) error
	GetGroup(ctx context.Context, ownerID, groupID string) (Group, error)
	SaveTag(ctx context.Context, t Tag) error
	GetTag(ctx context.Context, ownerID, tagID string) (Tag, error)
	TagStudent(ctx context.Context, ownerID, studentID, tagID string) error
}

// RuleStore persists point rule templates.
type RuleStore interface {
	SaveRule(ctx context.Context, r PointRule) error
	GetRule(ctx context.Context, ownerID, ruleID string) (PointRule, error)
	ListRules(ctx context.Context, ownerID string) ([]PointRule, error)
}

// LedgerStore persists point records. Append-only: no update, no delete.
type LedgerStore interface {
	AppendRecord(ctx context.Context, rec PointRecord) error
	ListRecords(ctx context.Context, ownerID string, f RecordFilter) ([]RecordView, int, error)

	// RecordsByStudent returns the full chronological history for one
	// student. Used for balance replay verification.
	RecordsByStudent(ctx context.Context, ownerID, studentID string) ([]PointRecord, error)
}

// CatalogStore persists store items and redemptions.
type CatalogStore interface {
	SaveItem(ctx context.Context, it StoreItem) error
	GetItem(ctx context.Context, ownerID, itemID string) (StoreItem, error)
	ListItems(ctx context.Context, ownerID string, activeOnly bool) ([]StoreItem, error)

	// SetItemStock overwrites the stock counter of a stock-tracked item.
	SetItemStock(ctx context.Context, ownerID, itemID string, stock int) error

	InsertRedemption(ctx context.Context, r Redemption) error
	GetRedemption(ctx context.Context, ownerID, redemptionID string) (Redemption, error)
	UpdateRedemption(ctx context.Context, r Redemption) error
	ListRedemptions(ctx context.Context, ownerID string, f RedemptionFilter) ([]RedemptionView, int, error)
}

// CallStore persists call-out history. Append-only.
type CallStore interface {
	AppendCall(ctx context.Context, c CallRecord) error

	// CalledStudentIDs returns ids of students called at or after since.
	CalledStudentIDs(ctx context.Context, ownerID string, since time.Time) ([]string, error)

	ListCalls(ctx context.Context, ownerID string, f CallFilter) ([]CallView, int, error)
}

// Store is the full persistence contract the engines depend on.
type Store interface {
	RosterStore
	RuleStore
	LedgerStore
	CatalogStore
	CallStore

	// WithTx executes fn within one atomic unit. If fn returns an error
	// the unit is rolled back, otherwise it is committed. The Store passed
	// to fn must be used for every access inside the unit.
	WithTx(ctx context.Context, fn func(Store) error) error
}
