package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

// InsertIdempotencyRecord stores the first result for a fingerprint. The
// insert reports false when a record already exists; the stored result is
// never overwritten.
func (d Datasource) InsertIdempotencyRecord(ctx context.Context, fingerprint string, result json.RawMessage) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		INSERT INTO idempotency_records (fingerprint, result, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (fingerprint) DO NOTHING
	`, fingerprint, []byte(result))
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert idempotency record", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// DeleteIdempotencyRecord releases a claimed fingerprint. Used to roll a
// claim back when the write it guarded did not commit; a claim must never
// outlive a result that was not stored.
func (d Datasource) DeleteIdempotencyRecord(ctx context.Context, fingerprint string) error {
	_, err := d.Conn.ExecContext(ctx, `
		DELETE FROM idempotency_records
		WHERE fingerprint = $1
	`, fingerprint)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete idempotency record", err)
	}
	return nil
}

// GetIdempotencyRecord returns the stored record, or nil when the
// fingerprint has never been seen.
func (d Datasource) GetIdempotencyRecord(ctx context.Context, fingerprint string) (*model.IdempotencyRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT fingerprint, result, created_at
		FROM idempotency_records
		WHERE fingerprint = $1
	`, fingerprint)

	record := &model.IdempotencyRecord{}
	var result []byte
	err := row.Scan(&record.Fingerprint, &result, &record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve idempotency record", err)
	}
	record.Result = json.RawMessage(result)

	return record, nil
}
