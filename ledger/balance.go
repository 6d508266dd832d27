/*
balance.go - Balance replay over point record history

The balance-ledger invariant: a student's stored balance equals the target
of their last RESET record (if any) plus all ADD/SUBTRACT deltas applied
after it, or the plain sum of all deltas when no reset ever happened.
*/
package ledger

import "github.com/warp/classpoints/classroom"

// ReplayBalance computes the balance implied by a chronological record
// history. RESET records are checkpoints: the running sum restarts from
// the record's literal value.
func ReplayBalance(records []classroom.PointRecord) int {
	balance := 0
	for _, rec := range records {
		if rec.Type == classroom.RecordReset {
			balance = rec.Points
		} else {
			balance += rec.Points
		}
	}
	return balance
}
