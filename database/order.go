package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

const orderColumns = `order_id, transaction_id, post_id, provider_id, provider_order_id, status, quantity, target_url, remains, start_count, last_checked_at, meta_data, created_at`

func (d Datasource) RecordOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	ctx, span := otel.Tracer("order.database").Start(ctx, "Saving order to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(order.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO orders(order_id,transaction_id,post_id,provider_id,provider_order_id,status,quantity,target_url,remains,start_count,last_checked_at,meta_data,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		order.OrderID, order.TransactionID, order.PostID, order.ProviderID, order.ProviderOrderID, order.Status, order.Quantity, order.TargetURL, order.Remains, order.StartCount, order.LastCheckedAt, metaDataJSON, order.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Order with this transaction and target already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record order", err)
	}

	return order, nil
}

func scanOrder(row interface {
	Scan(dest ...interface{}) error
}) (*model.Order, error) {
	order := &model.Order{}
	var metaDataJSON []byte
	err := row.Scan(&order.OrderID, &order.TransactionID, &order.PostID, &order.ProviderID, &order.ProviderOrderID, &order.Status, &order.Quantity, &order.TargetURL, &order.Remains, &order.StartCount, &order.LastCheckedAt, &metaDataJSON, &order.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &order.MetaData); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (d Datasource) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}

	return order, nil
}

func (d Datasource) GetOrdersByTransaction(ctx context.Context, transactionID string) ([]*model.Order, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`, transactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve orders", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate orders", err)
	}

	return orders, nil
}

// TransactionHasOrders is the short-circuit check run under the processing
// lock before any dispatch.
func (d Datasource) TransactionHasOrders(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM orders WHERE transaction_id = $1)
	`, transactionID).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check if transaction has orders", err)
	}
	return exists, nil
}

func (d Datasource) UpdateOrderStatus(ctx context.Context, id string, status string, remains int64, startCount int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, remains = $3, start_count = $4, last_checked_at = NOW()
		WHERE order_id = $1
	`, id, status, remains, startCount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with ID '%s' not found", id), nil)
	}

	return nil
}

// TouchOrderCheck records a reconciliation pass that produced no status
// change, so a stuck order is distinguishable from an unpolled one.
func (d Datasource) TouchOrderCheck(ctx context.Context, id string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET last_checked_at = NOW()
		WHERE order_id = $1
	`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to touch order check time", err)
	}
	return nil
}

// GetInFlightOrders returns orders the reconciler still needs to poll, least
// recently checked first.
func (d Datasource) GetInFlightOrders(ctx context.Context, limit int) ([]*model.Order, error) {
	ctx, span := otel.Tracer("order.database").Start(ctx, "Fetching in-flight orders")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ($1, $2)
		  AND provider_order_id <> ''
		ORDER BY last_checked_at ASC
		LIMIT $3
	`, model.OrderStatusPending, model.OrderStatusProcessing, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch in-flight orders", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate orders", err)
	}

	return orders, nil
}
