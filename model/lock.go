package model

import "time"

// ProcessingLock is the durable mutual-exclusion record for one transaction.
// At most one unexpired row exists per transaction; an expired row is
// logically absent and reclaimable by any worker.
type ProcessingLock struct {
	TransactionID string    `json:"transaction_id"`
	LockKey       string    `json:"lock_key"`
	LockedBy      string    `json:"locked_by"`
	AcquiredAt    time.Time `json:"acquired_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (l *ProcessingLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// LockStatus is an operator-facing summary of the lock table.
type LockStatus struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
}
