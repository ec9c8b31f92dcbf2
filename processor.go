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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

var tracer = otel.Tracer("viralship.processor")

// Processing outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// ProcessResult reports what one processing pass did to a transaction.
type ProcessResult struct {
	TransactionID string `json:"transaction_id"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	OrdersCreated int    `json:"orders_created"`
	TargetCount   int    `json:"target_count"`
}

func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		return "viralship-worker"
	}
	return host
}

// ProcessTransaction runs one full processing pass for a transaction: take
// the lock, re-check state under it, resolve targets, dispatch provider
// orders, and finalize. The lock is released on every exit path, panics
// included. A failed release is logged and swallowed; the TTL reclaims the
// row.
func (v *Viralship) ProcessTransaction(ctx context.Context, transactionID string) (result ProcessResult) {
	ctx, span := tracer.Start(ctx, "Processing transaction")
	defer span.End()

	result = ProcessResult{TransactionID: transactionID, Outcome: OutcomeFailed}

	cfg, err := config.Fetch()
	if err != nil {
		result.Reason = "configuration unavailable"
		return result
	}

	lockKey := model.GenerateUUIDWithSuffix("lock")
	acquired, err := v.datasource.AcquireLock(ctx, transactionID, lockKey, workerIdentity(), cfg.Processing.LockTTL())
	if err != nil {
		result.Reason = "lock acquisition failed"
		return result
	}
	if !acquired {
		result.Outcome = OutcomeSkipped
		result.Reason = "transaction is being processed by another worker"
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("panic while processing transaction %s: %v", transactionID, r)
			result = ProcessResult{
				TransactionID: transactionID,
				Outcome:       OutcomeFailed,
				Reason:        fmt.Sprintf("panic: %v", r),
			}
		}
		released, err := v.datasource.ReleaseLock(context.WithoutCancel(ctx), transactionID, lockKey)
		if err != nil {
			logrus.Errorf("failed to release lock for transaction %s: %v", transactionID, err)
		} else if !released {
			logrus.Warnf("lock for transaction %s was no longer held at release", transactionID)
		}
	}()

	// Reload under the lock; the caller's view may be stale.
	txn, err := v.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		var apiErr apierror.APIError
		if errors.As(err, &apiErr) && apiErr.Code == apierror.ErrNotFound {
			result.Reason = "transaction not found"
		} else {
			result.Reason = "transaction lookup failed"
		}
		return result
	}

	if txn.OrderCreated {
		result.Outcome = OutcomeSkipped
		result.Reason = "orders already created"
		return result
	}

	hasOrders, err := v.datasource.TransactionHasOrders(ctx, transactionID)
	if err != nil {
		result.Reason = "order lookup failed"
		return result
	}
	if hasOrders {
		// The flag lagged behind the orders table, likely a crash between
		// dispatch and finalize. Repair the flag instead of double-sending.
		if err := v.datasource.MarkTransactionProcessed(ctx, transactionID); err != nil {
			logrus.Errorf("failed to repair order flag for transaction %s: %v", transactionID, err)
		}
		result.Outcome = OutcomeSkipped
		result.Reason = "orders already exist"
		return result
	}

	if txn.Status != model.StatusApproved {
		result.Reason = fmt.Sprintf("transaction status is %s, not %s", txn.Status, model.StatusApproved)
		return result
	}

	service, err := v.datasource.GetService(ctx, txn.ServiceID)
	if err != nil {
		result.Reason = "service not configured"
		return result
	}

	providerID := txn.ProviderID
	if providerID == "" {
		providerID = service.ProviderID
	}
	prv, err := v.datasource.GetProvider(ctx, providerID)
	if err != nil {
		result.Reason = "provider not configured"
		return result
	}

	targets, err := v.resolveTargets(ctx, txn, cfg.Processing.MaxTargets)
	if err != nil {
		result.Reason = "no dispatch targets"
		return result
	}
	result.TargetCount = len(targets)

	shares := splitQuantity(txn.Quantity, len(targets))

	created := v.dispatchOrders(ctx, txn, service, prv, targets, shares, cfg.Processing.ItemDelay())
	result.OrdersCreated = created

	if created == 0 {
		result.Reason = "all order submissions failed"
		return result
	}

	if err := v.datasource.MarkTransactionProcessed(ctx, transactionID); err != nil {
		result.Reason = "failed to finalize transaction"
		return result
	}

	result.Outcome = OutcomeProcessed
	if created < len(targets) {
		result.Reason = fmt.Sprintf("%d of %d targets dispatched", created, len(targets))
	}

	go v.SendWebhook(NewWebhook{
		Event:   "transaction.processed",
		Payload: result,
	})

	return result
}

// dispatchOrders submits one provider order per target. A failed target is
// logged and skipped; the remaining targets still go out.
func (v *Viralship) dispatchOrders(ctx context.Context, txn *model.Transaction, service *model.Service, prv *model.Provider, targets []dispatchTarget, shares []int64, delay time.Duration) int {
	ctx, span := tracer.Start(ctx, "Dispatching provider orders")
	defer span.End()

	created := 0
	for i, target := range targets {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
		}

		providerOrderID, err := v.provider.SubmitOrder(ctx, model.SubmitOrderRequest{
			APIURL:            prv.APIURL,
			APIKey:            prv.APIKey,
			ServiceExternalID: service.ExternalID,
			TargetURL:         target.URL,
			Quantity:          shares[i],
		})
		if err != nil {
			logrus.Errorf("order submission failed for transaction %s target %s: %v", txn.TransactionID, target.URL, err)
			_ = v.datasource.LogProcessingEvent(ctx, &model.ProcessingLog{
				TransactionID: txn.TransactionID,
				Level:         "error",
				Message:       "order submission failed",
				MetaData: map[string]interface{}{
					"target_url": target.URL,
					"quantity":   shares[i],
					"error":      err.Error(),
				},
			})
			continue
		}

		order := &model.Order{
			OrderID:         model.GenerateUUIDWithSuffix("ord"),
			TransactionID:   txn.TransactionID,
			PostID:          target.PostID,
			ProviderID:      prv.ProviderID,
			ProviderOrderID: providerOrderID,
			Status:          model.OrderStatusPending,
			Quantity:        shares[i],
			TargetURL:       target.URL,
			CreatedAt:       time.Now(),
		}
		if _, err := v.datasource.RecordOrder(ctx, order); err != nil {
			logrus.Errorf("failed to record order for transaction %s target %s: %v", txn.TransactionID, target.URL, err)
			continue
		}

		created++
		_ = v.datasource.LogProcessingEvent(ctx, &model.ProcessingLog{
			TransactionID: txn.TransactionID,
			Level:         "info",
			Message:       "order submitted",
			MetaData: map[string]interface{}{
				"order_id":          order.OrderID,
				"provider_order_id": providerOrderID,
				"target_url":        target.URL,
				"quantity":          shares[i],
			},
		})
	}

	return created
}
