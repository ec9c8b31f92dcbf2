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
	"embed"

	"github.com/redis/go-redis/v9"

	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/database"
	redis_db "github.com/viralship/viralship/internal/redis-db"
	"github.com/viralship/viralship/model"
	"github.com/viralship/viralship/payment"
	"github.com/viralship/viralship/provider"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// ProviderClient submits and polls orders against an SMM panel.
type ProviderClient interface {
	SubmitOrder(ctx context.Context, req model.SubmitOrderRequest) (string, error)
	GetOrderStatus(ctx context.Context, req model.OrderStatusRequest) (*model.ProviderOrderStatus, error)
}

// PaymentStatusSource reports the acquirer-side state of a payment.
type PaymentStatusSource interface {
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// Viralship is the transaction processing coordinator. It owns the storage
// surface, the provider and payment clients, and the background queue.
type Viralship struct {
	datasource database.IDataSource
	provider   ProviderClient
	payments   PaymentStatusSource
	queue      *Queue
	redis      redis.UniversalClient
}

// NewCoordinator wires a coordinator from explicit dependencies. Callers that
// need the queue or the scheduler lease should use NewViralship instead.
func NewCoordinator(db database.IDataSource, providerClient ProviderClient, payments PaymentStatusSource) *Viralship {
	return &Viralship{
		datasource: db,
		provider:   providerClient,
		payments:   payments,
	}
}

// NewViralship initializes the coordinator with the provided datasource.
// When no Redis DNS is configured the queue and scheduler lease are skipped,
// which keeps single-process deployments and tests self-contained.
func NewViralship(db database.IDataSource) (*Viralship, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	v := &Viralship{
		datasource: db,
		provider:   provider.NewClient(),
		payments:   payment.NewMercadoPagoClient(),
	}

	if configuration.Redis.Dns != "" {
		redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, false)
		if err != nil {
			return nil, err
		}
		v.redis = redisClient.Client()
		v.queue = NewQueue(configuration)
	}

	return v, nil
}
