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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/viralship/viralship"
	"github.com/viralship/viralship/model"
)

// CreateTransaction is the checkout-facing request body for recording a
// paid-for transaction.
type CreateTransaction struct {
	IdempotencyKey string          `json:"idempotency_key"`
	ServiceID      string          `json:"service_id"`
	CustomerEmail  string          `json:"customer_email"`
	CheckoutType   string          `json:"checkout_type"`
	TargetUsername string          `json:"target_username"`
	TargetLink     string          `json:"target_link"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Quantity       int64           `json:"quantity"`
	Posts          []PostSelection `json:"posts"`
}

type PostSelection struct {
	Code string `json:"code"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

func targetValidation(t *CreateTransaction) validation.RuleFunc {
	return func(value interface{}) error {
		if t.TargetUsername == "" && t.TargetLink == "" && len(t.Posts) == 0 {
			return errors.New("a target username, a target link, or a post selection is required")
		}
		return nil
	}
}

func (t *CreateTransaction) ValidateCreateTransaction() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.ServiceID, validation.Required),
		validation.Field(&t.CustomerEmail, validation.Required),
		validation.Field(&t.PaymentID, validation.Required),
		validation.Field(&t.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&t.CheckoutType, validation.In("", model.CheckoutGeneric, model.CheckoutLikes, model.CheckoutReels)),
		validation.Field(&t.Amount, validation.By(func(interface{}) error {
			if t.Amount.LessThanOrEqual(decimal.Zero) {
				return errors.New("amount must be greater than zero")
			}
			return nil
		})),
		validation.Field(&t.TargetUsername, validation.By(targetValidation(t))),
	)
}

// ToTransactionRequest converts the API request into the coordinator's
// ingestion type.
func (t *CreateTransaction) ToTransactionRequest() *viralship.TransactionRequest {
	posts := make([]model.Post, 0, len(t.Posts))
	for _, post := range t.Posts {
		postType := post.Type
		if postType == "" {
			postType = model.PostTypePost
		}
		posts = append(posts, model.Post{Code: post.Code, URL: post.URL, Type: postType})
	}
	return &viralship.TransactionRequest{
		IdempotencyKey: t.IdempotencyKey,
		ServiceID:      t.ServiceID,
		CustomerEmail:  t.CustomerEmail,
		CheckoutType:   t.CheckoutType,
		TargetUsername: t.TargetUsername,
		TargetLink:     t.TargetLink,
		PaymentID:      t.PaymentID,
		Amount:         t.Amount,
		Quantity:       t.Quantity,
		Posts:          posts,
	}
}

// PaymentNotification is the body Mercado Pago posts to the payment webhook.
type PaymentNotification struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (n *PaymentNotification) ValidatePaymentNotification() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Data, validation.By(func(interface{}) error {
			if n.Data.ID == "" {
				return errors.New("data.id is required")
			}
			return nil
		})),
	)
}
