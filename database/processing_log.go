package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

func (d Datasource) LogProcessingEvent(ctx context.Context, entry *model.ProcessingLog) error {
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO processing_logs (transaction_id, level, message, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.TransactionID, entry.Level, entry.Message, metaDataJSON, createdAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record processing event", err)
	}

	return nil
}

func (d Datasource) GetProcessingLogs(ctx context.Context, transactionID string) ([]*model.ProcessingLog, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT transaction_id, level, message, meta_data, created_at
		FROM processing_logs
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`, transactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve processing logs", err)
	}
	defer rows.Close()

	var logs []*model.ProcessingLog
	for rows.Next() {
		entry := &model.ProcessingLog{}
		var metaDataJSON []byte
		err := rows.Scan(&entry.TransactionID, &entry.Level, &entry.Message, &metaDataJSON, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan processing log", err)
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate processing logs", err)
	}

	return logs, nil
}
