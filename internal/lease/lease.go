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

// Package lease provides a Redis-backed lease guarding singleton background
// work, such as a scheduler batch that must not run on two nodes at once.
package lease

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Release and Renew only act when the stored holder still matches, so a
// node whose lease expired cannot clobber the next holder's lease.
const (
	releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	renewScript   = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// Lease is a single-holder lease on a Redis key. The holder value is unique
// per acquisition; only the node that acquired the lease can release or
// renew it.
type Lease struct {
	client redis.UniversalClient
	key    string
	holder string
}

func NewLease(client redis.UniversalClient, key, holder string) *Lease {
	return &Lease{
		client: client,
		key:    key,
		holder: holder,
	}
}

// Acquire takes the lease, failing when another holder already has it.
func (l *Lease) Acquire(ctx context.Context, ttl time.Duration) error {
	taken, err := l.client.SetNX(ctx, l.key, l.holder, ttl).Result()
	if err != nil {
		return err
	}
	if !taken {
		return fmt.Errorf("lease %s is held by another node", l.key)
	}
	return nil
}

// Release drops the lease if this node still holds it.
func (l *Lease) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.holder).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lease %s expired or changed holder before release", l.key)
	}
	return nil
}

// Renew pushes the expiry out while work under the lease is still running.
func (l *Lease) Renew(ctx context.Context, extension time.Duration) error {
	result, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.holder, strconv.FormatInt(extension.Milliseconds(), 10)).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lease %s expired or changed holder before renewal", l.key)
	}
	return nil
}
