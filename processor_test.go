package viralship

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralship/viralship/model"
)

func TestProcessTransactionGeneric(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_1", 500)

	result := v.ProcessTransaction(context.Background(), "txn_1")

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, 1, result.OrdersCreated)

	txn, err := ds.GetTransaction(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.True(t, txn.OrderCreated)
	assert.Equal(t, model.StatusProcessed, txn.Status)

	orders, err := ds.GetOrdersByTransaction(context.Background(), "txn_1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(500), orders[0].Quantity)
	assert.Equal(t, "https://instagram.com/viraluser", orders[0].TargetURL)
	assert.Equal(t, model.OrderStatusPending, orders[0].Status)

	// Lock released on the way out.
	locked, err := ds.IsLocked(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestProcessTransactionMutualExclusion(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_race", 100)

	// Slow submissions widen the race window.
	providerClient.submitFn = func(req model.SubmitOrderRequest) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "42", nil
	}

	const workers = 8
	results := make([]ProcessResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = v.ProcessTransaction(context.Background(), "txn_race")
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, result := range results {
		if result.Outcome == OutcomeProcessed {
			processed++
		} else {
			assert.Equal(t, OutcomeSkipped, result.Outcome)
		}
	}
	assert.Equal(t, 1, processed)

	orders, err := ds.GetOrdersByTransaction(context.Background(), "txn_race")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, providerClient.submissionCount())
}

func TestProcessTransactionIdempotentReentry(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_again", 250)

	first := v.ProcessTransaction(context.Background(), "txn_again")
	assert.Equal(t, OutcomeProcessed, first.Outcome)

	second := v.ProcessTransaction(context.Background(), "txn_again")
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, "orders already created", second.Reason)

	orders, err := ds.GetOrdersByTransaction(context.Background(), "txn_again")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, providerClient.submissionCount())
}

func TestProcessTransactionRepairsLaggingFlag(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_crash", 100)

	// Simulate a crash after dispatch but before finalize: an order exists
	// and the flag is still false.
	_, err := ds.RecordOrder(context.Background(), &model.Order{
		OrderID:       "ord_orphan",
		TransactionID: "txn_crash",
		ProviderID:    "prv_1",
		Status:        model.OrderStatusPending,
		Quantity:      100,
		TargetURL:     "https://instagram.com/viraluser",
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	result := v.ProcessTransaction(context.Background(), "txn_crash")
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Equal(t, "orders already exist", result.Reason)

	txn, err := ds.GetTransaction(context.Background(), "txn_crash")
	require.NoError(t, err)
	assert.True(t, txn.OrderCreated)
}

func TestProcessTransactionLockSelfHealing(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_stale", 100)

	// A dead worker's lock, already past its TTL.
	ds.locks["txn_stale"] = &model.ProcessingLock{
		TransactionID: "txn_stale",
		LockKey:       "lock_dead",
		LockedBy:      "crashed-worker",
		AcquiredAt:    time.Now().Add(-20 * time.Minute),
		ExpiresAt:     time.Now().Add(-10 * time.Minute),
	}

	result := v.ProcessTransaction(context.Background(), "txn_stale")
	assert.Equal(t, OutcomeProcessed, result.Outcome)
}

func TestProcessTransactionNotApproved(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	txn := seedApprovedTransaction(ds, "txn_pending", 100)
	txn.Status = model.StatusPending

	result := v.ProcessTransaction(context.Background(), "txn_pending")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Reason, "not approved")
	assert.Zero(t, providerClient.submissionCount())
}

func TestProcessTransactionPartialDispatch(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	txn := seedApprovedTransaction(ds, "txn_partial", 99)
	txn.CheckoutType = model.CheckoutLikes
	ds.posts["txn_partial"] = []model.Post{
		{PostID: "post_1", TransactionID: "txn_partial", Code: "aaa111", Type: model.PostTypePost},
		{PostID: "post_2", TransactionID: "txn_partial", Code: "bbb222", Type: model.PostTypePost},
		{PostID: "post_3", TransactionID: "txn_partial", Code: "ccc333", Type: model.PostTypePost},
	}

	calls := 0
	providerClient.submitFn = func(req model.SubmitOrderRequest) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("panel timeout")
		}
		return fmt.Sprintf("%d", 100+calls), nil
	}

	result := v.ProcessTransaction(context.Background(), "txn_partial")

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, 2, result.OrdersCreated)
	assert.Equal(t, 3, result.TargetCount)

	txnAfter, err := ds.GetTransaction(context.Background(), "txn_partial")
	require.NoError(t, err)
	assert.True(t, txnAfter.OrderCreated)

	orders, err := ds.GetOrdersByTransaction(context.Background(), "txn_partial")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	logs, err := ds.GetProcessingLogs(context.Background(), "txn_partial")
	require.NoError(t, err)
	var failureLogged bool
	for _, entry := range logs {
		if entry.Level == "error" {
			failureLogged = true
		}
	}
	assert.True(t, failureLogged)
}

func TestProcessTransactionAllDispatchesFail(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_down", 100)

	providerClient.submitFn = func(req model.SubmitOrderRequest) (string, error) {
		return "", errors.New("panel down")
	}

	result := v.ProcessTransaction(context.Background(), "txn_down")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "all order submissions failed", result.Reason)

	txn, err := ds.GetTransaction(context.Background(), "txn_down")
	require.NoError(t, err)
	assert.False(t, txn.OrderCreated)
	assert.Equal(t, model.StatusApproved, txn.Status)
}

func TestProcessTransactionQuantityConservation(t *testing.T) {
	for n := 1; n <= 7; n++ {
		t.Run(fmt.Sprintf("targets_%d", n), func(t *testing.T) {
			v, ds, _ := newTestCoordinator()
			id := fmt.Sprintf("txn_split_%d", n)
			txn := seedApprovedTransaction(ds, id, 100)
			txn.CheckoutType = model.CheckoutReels
			txn.Quantity = 100

			var posts []model.Post
			for i := 0; i < n; i++ {
				posts = append(posts, model.Post{
					PostID:        fmt.Sprintf("post_%d", i),
					TransactionID: id,
					Code:          fmt.Sprintf("code%d", i),
					Type:          model.PostTypeReel,
				})
			}
			ds.posts[id] = posts

			// Cap is 5 targets; beyond that the extra posts are dropped.
			expectedTargets := n
			if expectedTargets > 5 {
				expectedTargets = 5
			}

			result := v.ProcessTransaction(context.Background(), id)
			require.Equal(t, OutcomeProcessed, result.Outcome)
			assert.Equal(t, expectedTargets, result.OrdersCreated)

			orders, err := ds.GetOrdersByTransaction(context.Background(), id)
			require.NoError(t, err)
			var total int64
			for _, order := range orders {
				total += order.Quantity
			}
			assert.Equal(t, int64(100), total)
		})
	}
}

func TestProcessTransactionPanicReleasesLock(t *testing.T) {
	v, ds, providerClient := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_panic", 100)

	providerClient.submitFn = func(req model.SubmitOrderRequest) (string, error) {
		panic("provider client bug")
	}

	result := v.ProcessTransaction(context.Background(), "txn_panic")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Reason, "panic")

	locked, err := ds.IsLocked(context.Background(), "txn_panic")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestProcessTransactionMissingService(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	txn := seedApprovedTransaction(ds, "txn_nosvc", 100)
	txn.ServiceID = "svc_ghost"

	result := v.ProcessTransaction(context.Background(), "txn_nosvc")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "service not configured", result.Reason)
}

func TestProcessTransactionUnknownID(t *testing.T) {
	v, _, _ := newTestCoordinator()

	result := v.ProcessTransaction(context.Background(), "txn_ghost")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "transaction not found", result.Reason)
}

// brokenReadDataSource fails every transaction read with a plain error, as
// an unreachable database would.
type brokenReadDataSource struct {
	*memoryDataSource
}

func (d *brokenReadDataSource) GetTransaction(_ context.Context, _ string) (*model.Transaction, error) {
	return nil, errors.New("read: connection refused")
}

func TestProcessTransactionStorageErrorIsNotNotFound(t *testing.T) {
	v, ds, _ := newTestCoordinator()
	seedApprovedTransaction(ds, "txn_dbdown", 100)
	v.datasource = &brokenReadDataSource{memoryDataSource: ds}

	result := v.ProcessTransaction(context.Background(), "txn_dbdown")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "transaction lookup failed", result.Reason)
}
