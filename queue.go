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
	"encoding/json"
	"errors"
	"log"

	"github.com/hibiken/asynq"

	"github.com/viralship/viralship/config"
	redis_db "github.com/viralship/viralship/internal/redis-db"
)

// Queue hands transaction processing and webhook delivery to asynq workers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, false)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueProcessing schedules a processing pass for a transaction. The task
// ID is the transaction ID, so a payment webhook replay cannot fan out into
// duplicate tasks; the lock still protects against a worker race.
func (q *Queue) EnqueueProcessing(ctx context.Context, transactionID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(transactionID)
	if err != nil {
		return err
	}

	task := asynq.NewTask(cfg.Queue.TransactionQueue, payload,
		asynq.TaskID(transactionID),
		asynq.Queue(cfg.Queue.TransactionQueue),
	)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}
	log.Printf(" [*] Successfully enqueued processing task: %+v", info.ID)
	return nil
}

// ProcessTransactionTask is the asynq handler for queued processing tasks.
func (v *Viralship) ProcessTransactionTask(ctx context.Context, task *asynq.Task) error {
	var transactionID string
	if err := json.Unmarshal(task.Payload(), &transactionID); err != nil {
		return err
	}

	result := v.RunSingle(ctx, transactionID)
	if result.Outcome == OutcomeFailed {
		return errors.New(result.Reason)
	}
	return nil
}
