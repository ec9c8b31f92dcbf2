/*
Copyright 2024 Viralship Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package viralship

import (
	"context"

	"github.com/viralship/viralship/model"
)

// ForceUnlock removes a transaction's processing lock regardless of holder
// and leaves an audit trail. Operator escape hatch for a lock wedged by a
// dead worker that the TTL has not yet reclaimed.
func (v *Viralship) ForceUnlock(ctx context.Context, transactionID string, operator string) (bool, error) {
	removed, err := v.datasource.ForceUnlock(ctx, transactionID)
	if err != nil {
		return false, err
	}

	_ = v.datasource.LogProcessingEvent(ctx, &model.ProcessingLog{
		TransactionID: transactionID,
		Level:         "warn",
		Message:       "processing lock force-removed",
		MetaData:      map[string]interface{}{"operator": operator, "removed": removed},
	})

	return removed, nil
}

// ReprocessTransaction clears the order flag and runs a fresh processing
// pass. Only for transactions whose provider orders were refunded or
// canceled; the existing-orders short circuit will block it otherwise.
func (v *Viralship) ReprocessTransaction(ctx context.Context, transactionID string, operator string) (ProcessResult, error) {
	if err := v.datasource.ClearOrderCreated(ctx, transactionID); err != nil {
		return ProcessResult{}, err
	}
	if err := v.datasource.UpdateTransactionStatus(ctx, transactionID, model.StatusApproved); err != nil {
		return ProcessResult{}, err
	}

	_ = v.datasource.LogProcessingEvent(ctx, &model.ProcessingLog{
		TransactionID: transactionID,
		Level:         "warn",
		Message:       "transaction queued for reprocessing",
		MetaData:      map[string]interface{}{"operator": operator},
	})

	return v.RunSingle(ctx, transactionID), nil
}

// ClearExpiredLocks sweeps lock rows whose TTL elapsed.
func (v *Viralship) ClearExpiredLocks(ctx context.Context) (int64, error) {
	return v.datasource.DeleteExpiredLocks(ctx)
}

// GetLockStatus reports the lock table summary for the operator endpoints.
func (v *Viralship) GetLockStatus(ctx context.Context) (*model.LockStatus, error) {
	return v.datasource.LockStatus(ctx)
}

// GetTransaction returns a transaction by ID.
func (v *Viralship) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return v.datasource.GetTransaction(ctx, id)
}

// GetOrder returns a dispatched order by ID.
func (v *Viralship) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return v.datasource.GetOrder(ctx, id)
}

// GetTransactionOrders returns the orders created for a transaction.
func (v *Viralship) GetTransactionOrders(ctx context.Context, transactionID string) ([]*model.Order, error) {
	return v.datasource.GetOrdersByTransaction(ctx, transactionID)
}

// GetProcessingLogs returns the audit trail for a transaction.
func (v *Viralship) GetProcessingLogs(ctx context.Context, transactionID string) ([]*model.ProcessingLog, error) {
	return v.datasource.GetProcessingLogs(ctx, transactionID)
}
