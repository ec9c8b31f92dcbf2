package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusProcessed = "processed"
	StatusCanceled  = "canceled"
)

// Checkout types drive the dispatch strategy used by the processor.
const (
	CheckoutGeneric = "generic"
	CheckoutLikes   = "likes"
	CheckoutReels   = "reels"
)

// Transaction is one confirmed-or-pending customer payment for a service.
// OrderCreated and the orders table must always agree; the processing lock
// exists to protect that invariant.
type Transaction struct {
	ID              int64                  `json:"-"`
	TransactionID   string                 `json:"id"`
	Status          string                 `json:"status"`
	Amount          decimal.Decimal        `json:"amount"`
	ServiceID       string                 `json:"service_id"`
	ProviderID      string                 `json:"provider_id,omitempty"`
	PaymentID       string                 `json:"payment_id"`
	CheckoutType    string                 `json:"checkout_type"`
	TargetUsername  string                 `json:"target_username,omitempty"`
	TargetLink      string                 `json:"target_link,omitempty"`
	Quantity        int64                  `json:"quantity"`
	OrderCreated    bool                   `json:"order_created"`
	ProcessAttempts int                    `json:"process_attempts"`
	LastError       string                 `json:"last_error,omitempty"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// Terminal reports whether the transaction can no longer become eligible for
// dispatch without operator intervention.
func (transaction *Transaction) Terminal() bool {
	switch transaction.Status {
	case StatusProcessed, StatusRejected, StatusCanceled:
		return true
	}
	return false
}
