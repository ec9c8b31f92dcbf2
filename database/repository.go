package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viralship/viralship/model"
)

type transaction interface {
	RecordTransactionWithPosts(ctx context.Context, txn *model.Transaction, posts []model.Post) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionByPaymentID(ctx context.Context, paymentID string) (*model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status string) error
	MarkTransactionProcessed(ctx context.Context, id string) error
	ClearOrderCreated(ctx context.Context, id string) error
	IncrementProcessAttempts(ctx context.Context, id string, lastError string) error
	GetEligibleTransactions(ctx context.Context, maxAttempts int, limit int) ([]*model.Transaction, error)
}

type post interface {
	GetTransactionPosts(ctx context.Context, transactionID string) ([]model.Post, error)
}

type order interface {
	RecordOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByTransaction(ctx context.Context, transactionID string) ([]*model.Order, error)
	TransactionHasOrders(ctx context.Context, transactionID string) (bool, error)
	UpdateOrderStatus(ctx context.Context, id string, status string, remains int64, startCount int64) error
	TouchOrderCheck(ctx context.Context, id string) error
	GetInFlightOrders(ctx context.Context, limit int) ([]*model.Order, error)
}

type catalog interface {
	GetService(ctx context.Context, id string) (*model.Service, error)
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
}

type processingLock interface {
	AcquireLock(ctx context.Context, transactionID, lockKey, lockedBy string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, transactionID, lockKey string) (bool, error)
	IsLocked(ctx context.Context, transactionID string) (bool, error)
	ForceUnlock(ctx context.Context, transactionID string) (bool, error)
	DeleteExpiredLocks(ctx context.Context) (int64, error)
	LockStatus(ctx context.Context) (*model.LockStatus, error)
}

type idempotency interface {
	InsertIdempotencyRecord(ctx context.Context, fingerprint string, result json.RawMessage) (bool, error)
	DeleteIdempotencyRecord(ctx context.Context, fingerprint string) error
	GetIdempotencyRecord(ctx context.Context, fingerprint string) (*model.IdempotencyRecord, error)
}

type processingLog interface {
	LogProcessingEvent(ctx context.Context, entry *model.ProcessingLog) error
	GetProcessingLogs(ctx context.Context, transactionID string) ([]*model.ProcessingLog, error)
}

// IDataSource is the storage surface of the coordinator.
type IDataSource interface {
	transaction
	post
	order
	catalog
	processingLock
	idempotency
	processingLog
}
