package model

import (
	"encoding/json"
	"time"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusPartial    = "partial"
	OrderStatusCanceled   = "canceled"
	OrderStatusFailed     = "failed"
)

// Order is one unit of work dispatched to a provider for a specific target
// URL. Orders are append-only: the processor creates them, the reconciler
// updates their status, nothing deletes them.
type Order struct {
	ID              int64                  `json:"-"`
	OrderID         string                 `json:"id"`
	TransactionID   string                 `json:"transaction_id"`
	PostID          string                 `json:"post_id,omitempty"`
	ProviderID      string                 `json:"provider_id"`
	ProviderOrderID string                 `json:"provider_order_id,omitempty"`
	Status          string                 `json:"status"`
	Quantity        int64                  `json:"quantity"`
	TargetURL       string                 `json:"target_url"`
	Remains         int64                  `json:"remains,omitempty"`
	StartCount      int64                  `json:"start_count,omitempty"`
	LastCheckedAt   time.Time              `json:"last_checked_at,omitempty"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func (order *Order) ToJSON() ([]byte, error) {
	return json.Marshal(order)
}

// InFlight reports whether the reconciler still needs to poll this order.
func (order *Order) InFlight() bool {
	return order.Status == OrderStatusPending || order.Status == OrderStatusProcessing
}
