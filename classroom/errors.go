/*
errors.go - Centralized error taxonomy for the classroom engines

PURPOSE:
  All error kinds in one place so every engine fails the same way and the
  HTTP layer can map failures without inspecting error shapes at runtime.

ERROR CATEGORIES:
  1. Existence/ownership - ErrNotFound, ErrForbidden
  2. Input - ErrValidation
  3. Entity state - ErrInactive, ErrArchived
  4. Business preconditions - ErrInsufficientPoints, ErrOutOfStock,
     ErrNoStudentsAvailable

A missing entity and an entity owned by another teacher both surface as
ErrNotFound: callers must not be able to probe other owners' data.
ErrForbidden is reserved for the cohort selectors, where the group/tag
ownership check happens as a separate step from existence.

USAGE:
  if classroom.IsNotFound(err) { ... }

  var ipErr *classroom.InsufficientPointsError
  if errors.As(err, &ipErr) {
      log.Printf("short by %d points", ipErr.Shortfall)
  }
*/
package classroom

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity is missing or not
	// owned by the caller. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when an entity exists but belongs to another
	// owner and the operation checks ownership separately from existence.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed or out-of-range input,
	// empty cohorts, and partial ownership in batch operations.
	ErrValidation = errors.New("validation failed")

	// ErrInactive is returned when a store item or rule exists but is
	// deactivated.
	ErrInactive = errors.New("inactive")

	// ErrArchived is returned when the target student is archived.
	ErrArchived = errors.New("student archived")

	// ErrInsufficientPoints is returned when a redemption costs more than
	// the student's balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrOutOfStock is returned when a stock-tracked item has no stock left.
	ErrOutOfStock = errors.New("out of stock")

	// ErrNoStudentsAvailable is returned when the random selector finds no
	// eligible candidate, even after the avoid-window fallback.
	ErrNoStudentsAvailable = errors.New("no students available")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which kind of entity was missing.
type NotFoundError struct {
	Entity string // "student", "rule", "item", "redemption", "group", "tag"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError carries the reason an input was rejected.
type ValidationError struct {
	Field   string // optional
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientPointsError details a balance shortage.
type InsufficientPointsError struct {
	StudentID string
	Balance   int
	Cost      int
	Shortfall int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, cost %d, short %d",
		e.Balance, e.Cost, e.Shortfall)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// OutOfStockError identifies the depleted item.
type OutOfStockError struct {
	ItemID string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("item %s is out of stock", e.ItemID)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true for business-rule precondition failures: the
// request was well-formed but the current state forbids it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrArchived)
}
