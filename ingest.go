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
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/viralship/viralship/model"
	"github.com/viralship/viralship/payment"
)

// TransactionRequest is a checkout-originated request to create a
// transaction for a paid service.
type TransactionRequest struct {
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ServiceID      string          `json:"service_id"`
	CustomerEmail  string          `json:"customer_email"`
	CheckoutType   string          `json:"checkout_type"`
	TargetUsername string          `json:"target_username,omitempty"`
	TargetLink     string          `json:"target_link,omitempty"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Quantity       int64           `json:"quantity"`
	Posts          []model.Post    `json:"posts,omitempty"`
}

func (req *TransactionRequest) fingerprint() string {
	return model.IdempotencyInput{
		Key:            req.IdempotencyKey,
		ServiceID:      req.ServiceID,
		CustomerEmail:  req.CustomerEmail,
		TargetUsername: req.TargetUsername,
		Amount:         req.Amount,
	}.Fingerprint()
}

// CreateTransaction records a new transaction, or replays the stored result
// when the same logical request was seen before. The idempotency record is
// claimed before the transaction row is written, so two racing duplicates
// can never both create one; the loser reads back the winner's result. The
// returned bool is true for a replay.
func (v *Viralship) CreateTransaction(ctx context.Context, req *TransactionRequest) (*model.Transaction, bool, error) {
	ctx, span := tracer.Start(ctx, "Creating transaction")
	defer span.End()

	fingerprint := req.fingerprint()

	existing, err := v.datasource.GetIdempotencyRecord(ctx, fingerprint)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return replayTransaction(existing)
	}

	checkoutType := req.CheckoutType
	if checkoutType == "" {
		checkoutType = model.CheckoutGeneric
	}

	txn := &model.Transaction{
		TransactionID:  model.GenerateUUIDWithSuffix("txn"),
		Status:         model.StatusPending,
		Amount:         req.Amount,
		ServiceID:      req.ServiceID,
		PaymentID:      req.PaymentID,
		CheckoutType:   checkoutType,
		TargetUsername: req.TargetUsername,
		TargetLink:     req.TargetLink,
		Quantity:       req.Quantity,
		MetaData:       map[string]interface{}{"customer_email": req.CustomerEmail},
		CreatedAt:      time.Now(),
	}

	result, err := txn.ToJSON()
	if err != nil {
		return nil, false, err
	}

	inserted, err := v.datasource.InsertIdempotencyRecord(ctx, fingerprint, result)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost the race to a concurrent duplicate.
		winner, err := v.datasource.GetIdempotencyRecord(ctx, fingerprint)
		if err != nil {
			return nil, false, err
		}
		return replayTransaction(winner)
	}

	posts := make([]model.Post, 0, len(req.Posts))
	for _, post := range model.DeduplicatePosts(req.Posts) {
		post.PostID = model.GenerateUUIDWithSuffix("post")
		post.TransactionID = txn.TransactionID
		post.CreatedAt = time.Now()
		posts = append(posts, post)
	}

	if _, err := v.datasource.RecordTransactionWithPosts(ctx, txn, posts); err != nil {
		// The claim must not outlive a write that never committed, or the
		// fingerprint replays a transaction that does not exist.
		if delErr := v.datasource.DeleteIdempotencyRecord(context.WithoutCancel(ctx), fingerprint); delErr != nil {
			logrus.Errorf("failed to release idempotency claim %s: %v", fingerprint, delErr)
		}
		return nil, false, err
	}

	return txn, false, nil
}

func replayTransaction(record *model.IdempotencyRecord) (*model.Transaction, bool, error) {
	txn := &model.Transaction{}
	if err := json.Unmarshal(record.Result, txn); err != nil {
		return nil, false, err
	}
	return txn, true, nil
}

// mapPaymentState translates the acquirer's vocabulary into transaction
// statuses. States this table does not know keep the transaction pending.
func mapPaymentState(state string) (string, bool) {
	switch state {
	case payment.StateApproved:
		return model.StatusApproved, true
	case payment.StatePending, payment.StateInProcess:
		return model.StatusPending, true
	case payment.StateRejected:
		return model.StatusRejected, true
	case payment.StateCancelled, payment.StateRefunded, payment.StateChargedBack:
		return model.StatusCanceled, true
	}
	return "", false
}

// IngestPaymentStatus polls the acquirer for a payment and applies the
// resulting status to its transaction. An approval enqueues a processing
// task when the queue is configured; the scheduler picks it up otherwise.
func (v *Viralship) IngestPaymentStatus(ctx context.Context, paymentID string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Ingesting payment status")
	defer span.End()

	txn, err := v.datasource.GetTransactionByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if txn.Terminal() {
		return txn, nil
	}

	state, err := v.payments.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	status, known := mapPaymentState(state)
	if !known {
		logrus.Warnf("unknown payment state %q for payment %s, leaving transaction %s untouched", state, paymentID, txn.TransactionID)
		return txn, nil
	}

	if status != txn.Status {
		if err := v.datasource.UpdateTransactionStatus(ctx, txn.TransactionID, status); err != nil {
			return nil, err
		}
		txn.Status = status

		_ = v.datasource.LogProcessingEvent(ctx, &model.ProcessingLog{
			TransactionID: txn.TransactionID,
			Level:         "info",
			Message:       "payment status applied",
			MetaData:      map[string]interface{}{"payment_state": state, "status": status},
		})
	}

	if status == model.StatusApproved && !txn.OrderCreated {
		if v.queue != nil {
			if err := v.queue.EnqueueProcessing(ctx, txn.TransactionID); err != nil {
				logrus.Errorf("failed to enqueue processing for transaction %s: %v", txn.TransactionID, err)
			}
		}
	}

	return txn, nil
}
