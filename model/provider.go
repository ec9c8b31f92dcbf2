package model

import "time"

// Provider is a third-party SMM panel that fulfills engagement orders.
type Provider struct {
	ID         int64     `json:"-"`
	ProviderID string    `json:"id"`
	Name       string    `json:"name"`
	APIURL     string    `json:"api_url"`
	APIKey     string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Service is one purchasable catalog entry. ExternalID is the provider-side
// service identifier and is what goes on the wire, never the internal id.
type Service struct {
	ID         int64     `json:"-"`
	ServiceID  string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Quantity   int64     `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmitOrderRequest is the payload handed to the provider dispatch client
// for a single target.
type SubmitOrderRequest struct {
	APIURL            string
	APIKey            string
	ServiceExternalID string
	TargetURL         string
	Quantity          int64
}

// OrderStatusRequest asks the provider for the current state of an accepted
// order.
type OrderStatusRequest struct {
	APIURL          string
	APIKey          string
	ProviderOrderID string
}

// ProviderOrderStatus is the provider's answer to a status poll, still in the
// provider's own vocabulary.
type ProviderOrderStatus struct {
	Status     string `json:"status"`
	Remains    int64  `json:"remains"`
	StartCount int64  `json:"start_count"`
}
