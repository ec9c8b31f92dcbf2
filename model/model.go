package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix returns a module-prefixed UUID, e.g. "txn_<uuid>".
func GenerateUUIDWithSuffix(module string) string {
	return fmt.Sprintf("%s_%s", module, uuid.New().String())
}

// ProcessingLog is a per-transaction audit row used for operator triage.
// Admin escape hatches (force process, force unlock, reprocess) are recorded
// here as well.
type ProcessingLog struct {
	ID            int64                  `json:"-"`
	TransactionID string                 `json:"transaction_id"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
