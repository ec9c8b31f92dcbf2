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

	"github.com/sirupsen/logrus"

	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/model"
)

// providerStatusPolicy maps the panel status vocabulary onto order statuses.
// A status missing from the table leaves the order untouched; panels grow
// new strings without notice and an unknown word must never flip an order
// into a terminal state.
var providerStatusPolicy = map[string]string{
	"Pending":     model.OrderStatusPending,
	"In progress": model.OrderStatusProcessing,
	"Processing":  model.OrderStatusProcessing,
	"Completed":   model.OrderStatusCompleted,
	"Partial":     model.OrderStatusPartial,
	"Canceled":    model.OrderStatusCanceled,
	"Failed":      model.OrderStatusFailed,
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// CheckOrder polls the provider for one order and applies the mapped status.
// The status row is only written when something changed; the last-checked
// timestamp is written either way.
func (v *Viralship) CheckOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := v.datasource.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.InFlight() {
		return order, nil
	}

	prv, err := v.datasource.GetProvider(ctx, order.ProviderID)
	if err != nil {
		return nil, err
	}

	status, err := v.provider.GetOrderStatus(ctx, model.OrderStatusRequest{
		APIURL:          prv.APIURL,
		APIKey:          prv.APIKey,
		ProviderOrderID: order.ProviderOrderID,
	})
	if err != nil {
		// The poll failed but the pass still happened.
		if touchErr := v.datasource.TouchOrderCheck(ctx, orderID); touchErr != nil {
			logrus.Errorf("failed to touch order %s: %v", orderID, touchErr)
		}
		return nil, err
	}

	mapped, known := providerStatusPolicy[status.Status]
	if !known || (mapped == order.Status && status.Remains == order.Remains && status.StartCount == order.StartCount) {
		if !known {
			logrus.Warnf("unknown provider status %q for order %s", status.Status, orderID)
		}
		if err := v.datasource.TouchOrderCheck(ctx, orderID); err != nil {
			return nil, err
		}
		return order, nil
	}

	if err := v.datasource.UpdateOrderStatus(ctx, orderID, mapped, status.Remains, status.StartCount); err != nil {
		return nil, err
	}

	order.Status = mapped
	order.Remains = status.Remains
	order.StartCount = status.StartCount

	_ = v.datasource.LogProcessingEvent(ctx, &model.ProcessingLog{
		TransactionID: order.TransactionID,
		Level:         "info",
		Message:       "order status updated",
		MetaData: map[string]interface{}{
			"order_id":        orderID,
			"provider_status": status.Status,
			"status":          mapped,
			"remains":         status.Remains,
		},
	})

	return order, nil
}

// CheckPendingOrders reconciles a batch of in-flight orders. One broken
// order never aborts the batch; its failure is counted and the pass moves
// on.
func (v *Viralship) CheckPendingOrders(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{}

	cfg, err := config.Fetch()
	if err != nil {
		return report, err
	}

	orders, err := v.datasource.GetInFlightOrders(ctx, cfg.Reconciliation.BatchLimit)
	if err != nil {
		return report, err
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		before := order.Status
		updated, err := v.CheckOrder(ctx, order.OrderID)
		if err != nil {
			report.Failed++
			logrus.Errorf("reconciliation failed for order %s: %v", order.OrderID, err)
			continue
		}
		if updated.Status != before {
			report.Updated++
		}
	}

	return report, nil
}
