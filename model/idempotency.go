package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// IdempotencyInput carries the identifying fields of a payment-creation
// request. The fingerprint is a pure function of these fields; two true
// retries of the same logical request always collide.
type IdempotencyInput struct {
	Key            string          `json:"key,omitempty"`
	ServiceID      string          `json:"service_id"`
	CustomerEmail  string          `json:"customer_email"`
	TargetUsername string          `json:"target_username"`
	Amount         decimal.Decimal `json:"amount"`
}

// Fingerprint returns the SHA-256 hex digest of the canonical JSON encoding
// of the input. An explicit client-supplied key dominates the derived fields.
func (in IdempotencyInput) Fingerprint() string {
	payload, err := json.Marshal(in)
	if err != nil {
		// Marshalling a flat struct of strings and a decimal cannot fail;
		// fall back to the raw key so a replay still collides.
		payload = []byte(in.Key + in.ServiceID + in.CustomerEmail + in.TargetUsername)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// IdempotencyRecord maps a fingerprint to the outcome of the first execution
// of that fingerprint, forever.
type IdempotencyRecord struct {
	Fingerprint string          `json:"fingerprint"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}
