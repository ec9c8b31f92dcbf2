package database

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

// AcquireLock attempts to take the processing lock for a transaction. The
// whole decision happens inside one conditional upsert: the insert wins when
// no row exists, the update branch wins only when the existing row has
// expired. A zero rows-affected result means another worker holds a live
// lock.
//
// Storage errors are returned as errors, never as a false acquisition, so
// callers fail closed.
func (d Datasource) AcquireLock(ctx context.Context, transactionID, lockKey, lockedBy string, ttl time.Duration) (bool, error) {
	ctx, span := otel.Tracer("lock.database").Start(ctx, "Acquiring processing lock")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO processing_locks (transaction_id, lock_key, locked_by, acquired_at, expires_at)
		VALUES ($1, $2, $3, NOW(), NOW() + $4 * INTERVAL '1 second')
		ON CONFLICT (transaction_id) DO UPDATE
		SET lock_key = EXCLUDED.lock_key,
		    locked_by = EXCLUDED.locked_by,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at
		WHERE processing_locks.expires_at < NOW()
	`, transactionID, lockKey, lockedBy, int64(ttl.Seconds()))
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire processing lock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// ReleaseLock deletes the lock row only when the caller still holds it. A
// release guarded by the lock key can never free a lock that a later worker
// reclaimed after expiry.
func (d Datasource) ReleaseLock(ctx context.Context, transactionID, lockKey string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM processing_locks
		WHERE transaction_id = $1 AND lock_key = $2
	`, transactionID, lockKey)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release processing lock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// IsLocked reports whether a live lock exists for the transaction.
func (d Datasource) IsLocked(ctx context.Context, transactionID string) (bool, error) {
	var locked bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processing_locks
			WHERE transaction_id = $1 AND expires_at >= NOW()
		)
	`, transactionID).Scan(&locked)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check processing lock", err)
	}
	return locked, nil
}

// ForceUnlock removes the lock row regardless of holder. Operator use only.
func (d Datasource) ForceUnlock(ctx context.Context, transactionID string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM processing_locks
		WHERE transaction_id = $1
	`, transactionID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to force unlock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// DeleteExpiredLocks sweeps rows whose TTL elapsed. Correctness never depends
// on the sweep; it keeps the table small and the status report honest.
func (d Datasource) DeleteExpiredLocks(ctx context.Context) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM processing_locks
		WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete expired locks", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	return rowsAffected, nil
}

// LockStatus summarizes the lock table for the operator endpoints.
func (d Datasource) LockStatus(ctx context.Context) (*model.LockStatus, error) {
	status := &model.LockStatus{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE expires_at >= NOW()),
		       COUNT(*) FILTER (WHERE expires_at < NOW())
		FROM processing_locks
	`).Scan(&status.Total, &status.Active, &status.Expired)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch lock status", err)
	}
	return status, nil
}
