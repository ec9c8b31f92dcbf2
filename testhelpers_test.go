package viralship

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

// memoryDataSource is an in-memory IDataSource used to exercise the
// processor's concurrency behavior, which sqlmock cannot express.
type memoryDataSource struct {
	mu           sync.Mutex
	transactions map[string]*model.Transaction
	posts        map[string][]model.Post
	orders       map[string]*model.Order
	services     map[string]*model.Service
	providers    map[string]*model.Provider
	locks        map[string]*model.ProcessingLock
	idempotency  map[string]*model.IdempotencyRecord
	logs         map[string][]*model.ProcessingLog
}

func newMemoryDataSource() *memoryDataSource {
	return &memoryDataSource{
		transactions: make(map[string]*model.Transaction),
		posts:        make(map[string][]model.Post),
		orders:       make(map[string]*model.Order),
		services:     make(map[string]*model.Service),
		providers:    make(map[string]*model.Provider),
		locks:        make(map[string]*model.ProcessingLock),
		idempotency:  make(map[string]*model.IdempotencyRecord),
		logs:         make(map[string][]*model.ProcessingLog),
	}
}

func (m *memoryDataSource) RecordTransactionWithPosts(_ context.Context, txn *model.Transaction, posts []model.Post) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *txn
	m.transactions[txn.TransactionID] = &cp
	for _, post := range posts {
		m.posts[post.TransactionID] = append(m.posts[post.TransactionID], post)
	}
	return txn, nil
}

func (m *memoryDataSource) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("transaction %s not found", id), nil)
	}
	cp := *txn
	return &cp, nil
}

func (m *memoryDataSource) GetTransactionByPaymentID(_ context.Context, paymentID string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.transactions {
		if txn.PaymentID == paymentID {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("payment %s not found", paymentID)
}

func (m *memoryDataSource) UpdateTransactionStatus(_ context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	txn.Status = status
	return nil
}

func (m *memoryDataSource) MarkTransactionProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	txn.OrderCreated = true
	txn.Status = model.StatusProcessed
	return nil
}

func (m *memoryDataSource) ClearOrderCreated(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	txn.OrderCreated = false
	return nil
}

func (m *memoryDataSource) IncrementProcessAttempts(_ context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	txn.ProcessAttempts++
	txn.LastError = lastError
	return nil
}

func (m *memoryDataSource) GetEligibleTransactions(_ context.Context, maxAttempts int, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var eligible []*model.Transaction
	for _, txn := range m.transactions {
		if txn.Status == model.StatusApproved && !txn.OrderCreated && txn.ProcessAttempts < maxAttempts {
			cp := *txn
			eligible = append(eligible, &cp)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (m *memoryDataSource) GetTransactionPosts(_ context.Context, transactionID string) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Post(nil), m.posts[transactionID]...), nil
}

func (m *memoryDataSource) RecordOrder(_ context.Context, order *model.Order) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.TransactionID == order.TransactionID && existing.TargetURL == order.TargetURL {
			return nil, fmt.Errorf("duplicate order for transaction %s target %s", order.TransactionID, order.TargetURL)
		}
	}
	cp := *order
	m.orders[order.OrderID] = &cp
	return order, nil
}

func (m *memoryDataSource) GetOrder(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	cp := *order
	return &cp, nil
}

func (m *memoryDataSource) GetOrdersByTransaction(_ context.Context, transactionID string) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*model.Order
	for _, order := range m.orders {
		if order.TransactionID == transactionID {
			cp := *order
			orders = append(orders, &cp)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *memoryDataSource) TransactionHasOrders(_ context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryDataSource) UpdateOrderStatus(_ context.Context, id string, status string, remains int64, startCount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	order.Status = status
	order.Remains = remains
	order.StartCount = startCount
	order.LastCheckedAt = time.Now()
	return nil
}

func (m *memoryDataSource) TouchOrderCheck(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[id]; ok {
		order.LastCheckedAt = time.Now()
	}
	return nil
}

func (m *memoryDataSource) GetInFlightOrders(_ context.Context, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*model.Order
	for _, order := range m.orders {
		if order.InFlight() && order.ProviderOrderID != "" {
			cp := *order
			orders = append(orders, &cp)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].LastCheckedAt.Before(orders[j].LastCheckedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (m *memoryDataSource) GetService(_ context.Context, id string) (*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	service, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("service %s not found", id)
	}
	cp := *service
	return &cp, nil
}

func (m *memoryDataSource) GetProvider(_ context.Context, id string) (*model.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	provider, ok := m.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", id)
	}
	cp := *provider
	return &cp, nil
}

func (m *memoryDataSource) AcquireLock(_ context.Context, transactionID, lockKey, lockedBy string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.locks[transactionID]; ok && !existing.Expired(now) {
		return false, nil
	}
	m.locks[transactionID] = &model.ProcessingLock{
		TransactionID: transactionID,
		LockKey:       lockKey,
		LockedBy:      lockedBy,
		AcquiredAt:    now,
		ExpiresAt:     now.Add(ttl),
	}
	return true, nil
}

func (m *memoryDataSource) ReleaseLock(_ context.Context, transactionID, lockKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.locks[transactionID]
	if !ok || existing.LockKey != lockKey {
		return false, nil
	}
	delete(m.locks, transactionID)
	return true, nil
}

func (m *memoryDataSource) IsLocked(_ context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.locks[transactionID]
	return ok && !existing.Expired(time.Now()), nil
}

func (m *memoryDataSource) ForceUnlock(_ context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[transactionID]
	delete(m.locks, transactionID)
	return ok, nil
}

func (m *memoryDataSource) DeleteExpiredLocks(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var deleted int64
	for id, lock := range m.locks {
		if lock.Expired(now) {
			delete(m.locks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryDataSource) LockStatus(_ context.Context) (*model.LockStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := &model.LockStatus{}
	now := time.Now()
	for _, lock := range m.locks {
		status.Total++
		if lock.Expired(now) {
			status.Expired++
		} else {
			status.Active++
		}
	}
	return status, nil
}

func (m *memoryDataSource) InsertIdempotencyRecord(_ context.Context, fingerprint string, result json.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.idempotency[fingerprint]; ok {
		return false, nil
	}
	m.idempotency[fingerprint] = &model.IdempotencyRecord{
		Fingerprint: fingerprint,
		Result:      append(json.RawMessage(nil), result...),
		CreatedAt:   time.Now(),
	}
	return true, nil
}

func (m *memoryDataSource) DeleteIdempotencyRecord(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotency, fingerprint)
	return nil
}

func (m *memoryDataSource) GetIdempotencyRecord(_ context.Context, fingerprint string) (*model.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.idempotency[fingerprint]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

func (m *memoryDataSource) LogProcessingEvent(_ context.Context, entry *model.ProcessingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.logs[entry.TransactionID] = append(m.logs[entry.TransactionID], &cp)
	return nil
}

func (m *memoryDataSource) GetProcessingLogs(_ context.Context, transactionID string) ([]*model.ProcessingLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.ProcessingLog(nil), m.logs[transactionID]...), nil
}

// stubProviderClient lets tests script submissions and status polls.
type stubProviderClient struct {
	mu          sync.Mutex
	nextOrderID int
	submitFn    func(req model.SubmitOrderRequest) (string, error)
	statusFn    func(req model.OrderStatusRequest) (*model.ProviderOrderStatus, error)
	submissions []model.SubmitOrderRequest
}

func (s *stubProviderClient) SubmitOrder(_ context.Context, req model.SubmitOrderRequest) (string, error) {
	s.mu.Lock()
	s.submissions = append(s.submissions, req)
	s.mu.Unlock()
	if s.submitFn != nil {
		return s.submitFn(req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrderID++
	return fmt.Sprintf("%d", s.nextOrderID), nil
}

func (s *stubProviderClient) GetOrderStatus(_ context.Context, req model.OrderStatusRequest) (*model.ProviderOrderStatus, error) {
	if s.statusFn != nil {
		return s.statusFn(req)
	}
	return &model.ProviderOrderStatus{Status: "Pending"}, nil
}

func (s *stubProviderClient) submissionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

// stubPaymentSource serves payment states from a map.
type stubPaymentSource struct {
	states map[string]string
}

func (s *stubPaymentSource) GetPaymentStatus(_ context.Context, paymentID string) (string, error) {
	state, ok := s.states[paymentID]
	if !ok {
		return "", fmt.Errorf("payment %s not found", paymentID)
	}
	return state, nil
}

// newTestCoordinator wires a coordinator around in-memory fakes with a
// catalog of one provider and one service.
func newTestCoordinator() (*Viralship, *memoryDataSource, *stubProviderClient) {
	config.MockConfig(&config.Configuration{
		Processing: config.ProcessingConfig{
			LockTTLMinutes: 10,
			MaxAttempts:    3,
			BatchLimit:     50,
			ItemDelayMs:    0,
			MaxTargets:     5,
		},
	})

	ds := newMemoryDataSource()
	ds.providers["prv_1"] = &model.Provider{
		ProviderID: "prv_1",
		Name:       "smm-panel",
		APIURL:     "https://panel.example.com/api/v2",
		APIKey:     "secret",
	}
	ds.services["svc_followers"] = &model.Service{
		ServiceID:  "svc_followers",
		ProviderID: "prv_1",
		ExternalID: "2001",
		Name:       "Followers",
		Type:       "followers",
	}

	providerClient := &stubProviderClient{}
	v := &Viralship{
		datasource: ds,
		provider:   providerClient,
		payments:   &stubPaymentSource{states: map[string]string{}},
	}
	return v, ds, providerClient
}

func seedApprovedTransaction(ds *memoryDataSource, id string, quantity int64) *model.Transaction {
	txn := &model.Transaction{
		TransactionID:  id,
		Status:         model.StatusApproved,
		ServiceID:      "svc_followers",
		PaymentID:      "pay_" + id,
		CheckoutType:   model.CheckoutGeneric,
		TargetUsername: "viraluser",
		Quantity:       quantity,
		CreatedAt:      time.Now(),
	}
	ds.transactions[id] = txn
	return txn
}
