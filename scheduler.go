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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/internal/lease"
	"github.com/viralship/viralship/model"
)

// BatchReport summarizes one scheduler pass.
type BatchReport struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunSingle processes one transaction and charges an attempt whatever the
// outcome. A skip burns an attempt too: a transaction that keeps getting
// skipped is stuck behind something an operator needs to look at, not
// something worth retrying forever.
func (v *Viralship) RunSingle(ctx context.Context, transactionID string) ProcessResult {
	result := v.ProcessTransaction(ctx, transactionID)

	lastError := ""
	if result.Outcome == OutcomeFailed {
		lastError = result.Reason
	}
	if err := v.datasource.IncrementProcessAttempts(ctx, transactionID, lastError); err != nil {
		logrus.Errorf("failed to record attempt for transaction %s: %v", transactionID, err)
	}

	return result
}

// RunBatch processes eligible transactions oldest first, pausing between
// items so the provider API never sees a burst. When Redis is available the
// whole batch runs under a lease, renewed between items, so overlapping ticks
// on different nodes do not double-scan the table.
func (v *Viralship) RunBatch(ctx context.Context) (BatchReport, error) {
	report := BatchReport{}

	cfg, err := config.Fetch()
	if err != nil {
		return report, err
	}

	var batchLease *lease.Lease
	if v.redis != nil {
		batchLease = lease.NewLease(v.redis, "viralship:scheduler:batch", model.GenerateUUIDWithSuffix("lease"))
		if err := batchLease.Acquire(ctx, cfg.Processing.Interval()); err != nil {
			logrus.Infof("scheduler batch lease not acquired, skipping pass: %v", err)
			return report, nil
		}
		defer func() {
			if err := batchLease.Release(context.WithoutCancel(ctx)); err != nil {
				logrus.Warnf("scheduler batch lease release: %v", err)
			}
		}()
	}

	transactions, err := v.datasource.GetEligibleTransactions(ctx, cfg.Processing.MaxAttempts, cfg.Processing.BatchLimit)
	if err != nil {
		return report, err
	}
	report.Total = len(transactions)

	for i, txn := range transactions {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if i > 0 && cfg.Processing.ItemDelay() > 0 {
			time.Sleep(cfg.Processing.ItemDelay())
		}
		if i > 0 && batchLease != nil {
			// Item delays on a long batch can outlast the initial TTL;
			// push the expiry out so the lease covers the whole pass.
			if err := batchLease.Renew(ctx, cfg.Processing.Interval()); err != nil {
				logrus.Warnf("scheduler batch lease renewal: %v", err)
			}
		}

		result := v.RunSingle(ctx, txn.TransactionID)
		switch result.Outcome {
		case OutcomeProcessed:
			report.Processed++
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	return report, nil
}

// Scheduler drives the periodic work: processing batches, order
// reconciliation, and the expired-lock sweep. The caller owns the lifecycle;
// nothing starts until Start and everything drains on Stop.
type Scheduler struct {
	v    *Viralship
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewScheduler(v *Viralship) *Scheduler {
	return &Scheduler{
		v:    v,
		stop: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	s.loop(ctx, cfg.Processing.Interval(), func(ctx context.Context) {
		report, err := s.v.RunBatch(ctx)
		if err != nil {
			logrus.Errorf("scheduler batch failed: %v", err)
			return
		}
		if report.Total > 0 {
			logrus.Infof("scheduler batch: %d total, %d processed, %d skipped, %d failed",
				report.Total, report.Processed, report.Skipped, report.Failed)
		}
	})

	s.loop(ctx, cfg.Reconciliation.Interval(), func(ctx context.Context) {
		report, err := s.v.CheckPendingOrders(ctx)
		if err != nil {
			logrus.Errorf("order reconciliation failed: %v", err)
			return
		}
		if report.Checked > 0 {
			logrus.Infof("order reconciliation: %d checked, %d updated, %d failed",
				report.Checked, report.Updated, report.Failed)
		}
	})

	s.loop(ctx, cfg.Processing.LockSweep(), func(ctx context.Context) {
		deleted, err := s.v.ClearExpiredLocks(ctx)
		if err != nil {
			logrus.Errorf("lock sweep failed: %v", err)
			return
		}
		if deleted > 0 {
			logrus.Infof("lock sweep reclaimed %d expired locks", deleted)
		}
	})

	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Stop halts the tickers and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}
