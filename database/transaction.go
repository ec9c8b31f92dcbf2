package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

// RecordTransactionWithPosts writes a transaction and its post selection in
// one database transaction, so ingestion never leaves a row without its
// targets behind.
func (d Datasource) RecordTransactionWithPosts(ctx context.Context, txn *model.Transaction, posts []model.Post) (*model.Transaction, error) {
	ctx, span := otel.Tracer("transaction.database").Start(ctx, "Saving transaction with posts to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions(transaction_id,status,amount,service_id,provider_id,payment_id,checkout_type,target_username,target_link,quantity,order_created,process_attempts,last_error,created_at,meta_data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		txn.TransactionID, txn.Status, txn.Amount, txn.ServiceID, txn.ProviderID, txn.PaymentID, txn.CheckoutType, txn.TargetUsername, txn.TargetLink, txn.Quantity, txn.OrderCreated, txn.ProcessAttempts, txn.LastError, txn.CreatedAt, metaDataJSON,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}

	if len(posts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transaction_posts(post_id, transaction_id, code, url, type, username, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to prepare post insert", err)
		}
		defer stmt.Close()

		for _, post := range posts {
			_, err = stmt.ExecContext(ctx, post.PostID, post.TransactionID, post.Code, post.URL, post.Type, post.Username, post.CreatedAt)
			if err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record post", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return txn, nil
}

const transactionColumns = `transaction_id, status, amount, service_id, provider_id, payment_id, checkout_type, target_username, target_link, quantity, order_created, process_attempts, last_error, created_at, updated_at, meta_data`

func scanTransaction(row interface {
	Scan(dest ...interface{}) error
}) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var metaDataJSON []byte
	err := row.Scan(&txn.TransactionID, &txn.Status, &txn.Amount, &txn.ServiceID, &txn.ProviderID, &txn.PaymentID, &txn.CheckoutType, &txn.TargetUsername, &txn.TargetLink, &txn.Quantity, &txn.OrderCreated, &txn.ProcessAttempts, &txn.LastError, &txn.CreatedAt, &txn.UpdatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, err
		}
	}
	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE transaction_id = $1
	`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetTransactionByPaymentID(ctx context.Context, paymentID string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE payment_id = $1
	`, paymentID)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with payment ID '%s' not found", paymentID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

func (d Datasource) UpdateTransactionStatus(ctx context.Context, id string, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE transaction_id = $1
	`, id, status)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}

	return nil
}

// MarkTransactionProcessed flips the order flag and the terminal status in a
// single statement so a crash can not split them.
func (d Datasource) MarkTransactionProcessed(ctx context.Context, id string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET order_created = TRUE, status = $2, updated_at = NOW()
		WHERE transaction_id = $1
	`, id, model.StatusProcessed)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark transaction processed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}

	return nil
}

// ClearOrderCreated resets the order flag for operator-driven reprocessing.
func (d Datasource) ClearOrderCreated(ctx context.Context, id string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET order_created = FALSE, updated_at = NOW()
		WHERE transaction_id = $1
	`, id)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear order flag", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}

	return nil
}

func (d Datasource) IncrementProcessAttempts(ctx context.Context, id string, lastError string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET process_attempts = process_attempts + 1, last_error = $2, updated_at = NOW()
		WHERE transaction_id = $1
	`, id, lastError)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to increment process attempts", err)
	}

	return nil
}

// GetEligibleTransactions returns approved transactions that still need
// orders, oldest first, skipping anything that already burned through its
// attempts.
func (d Datasource) GetEligibleTransactions(ctx context.Context, maxAttempts int, limit int) ([]*model.Transaction, error) {
	ctx, span := otel.Tracer("transaction.database").Start(ctx, "Fetching eligible transactions")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = $1
		  AND order_created = FALSE
		  AND process_attempts < $2
		ORDER BY created_at ASC
		LIMIT $3
	`, model.StatusApproved, maxAttempts, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch eligible transactions", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate transactions", err)
	}

	return transactions, nil
}
