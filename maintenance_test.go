package viralship

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralship/viralship/model"
)

func TestForceUnlockLeavesAuditTrail(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	ds.locks["txn_wedged"] = &model.ProcessingLock{
		TransactionID: "txn_wedged",
		LockKey:       "lock_dead",
		LockedBy:      "crashed-worker",
		AcquiredAt:    time.Now(),
		ExpiresAt:     time.Now().Add(10 * time.Minute),
	}

	removed, err := v.ForceUnlock(context.Background(), "txn_wedged", "ops@viralship")
	require.NoError(t, err)
	assert.True(t, removed)

	locked, err := ds.IsLocked(context.Background(), "txn_wedged")
	require.NoError(t, err)
	assert.False(t, locked)

	logs, err := ds.GetProcessingLogs(context.Background(), "txn_wedged")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "warn", logs[0].Level)
	assert.Equal(t, "ops@viralship", logs[0].MetaData["operator"])
}

func TestReprocessTransaction(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_redo", 100)

	first := v.ProcessTransaction(context.Background(), "txn_redo")
	require.Equal(t, OutcomeProcessed, first.Outcome)

	// All provider orders were refunded; the operator clears them out and
	// reruns the transaction.
	for id := range ds.orders {
		delete(ds.orders, id)
	}

	result, err := v.ReprocessTransaction(context.Background(), "txn_redo", "ops@viralship")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, 2, providerClient.submissionCount())
}

func TestClearExpiredLocks(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	ds.locks["txn_live"] = &model.ProcessingLock{
		TransactionID: "txn_live",
		ExpiresAt:     time.Now().Add(5 * time.Minute),
	}
	ds.locks["txn_stale"] = &model.ProcessingLock{
		TransactionID: "txn_stale",
		ExpiresAt:     time.Now().Add(-5 * time.Minute),
	}

	deleted, err := v.ClearExpiredLocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	status, err := v.GetLockStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Total)
	assert.Equal(t, int64(1), status.Active)
	assert.Equal(t, int64(0), status.Expired)
}
