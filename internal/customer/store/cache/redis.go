// Package cache stores CustomerView read models for the service's Get path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	"customerhub/pkg/platform/sentinel"
)

const (
	keyPrefix   = "customer:view:"
	floorPrefix = "customer:view-floor:"
	DefaultTTL  = 5 * time.Minute
)

// setView writes the view hash unless the floor or the cached version is
// newer. KEYS: view, floor. ARGV: json, version, ttl ms.
var setView = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '0')
local version = tonumber(ARGV[2])
if version < floor then return 0 end
local cached = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if version < cached then return 0 end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'view', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// invalidateView deletes the view and raises the floor. KEYS: view, floor.
// ARGV: version, ttl ms.
var invalidateView = redis.NewScript(`
redis.call('DEL', KEYS[1])
local floor = tonumber(redis.call('GET', KEYS[2]) or '0')
if tonumber(ARGV[1]) > floor then
  redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

// Redis caches views as JSON with a fixed TTL. Each view sits in a hash next
// to its version so a slow reader cannot overwrite a newer view.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Get(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	raw, err := r.client.HGet(ctx, key(customerID), "view").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get view: %w", err)
	}
	var view models.CustomerView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode cached view: %w", err)
	}
	return &view, nil
}

func (r *Redis) Set(ctx context.Context, view *models.CustomerView) error {
	if view == nil {
		return nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	keys := []string{key(view.ID), floorKey(view.ID)}
	if err := setView.Run(ctx, r.client, keys, raw, view.Version, r.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set view: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, customerID id.CustomerID, version int64) error {
	keys := []string{key(customerID), floorKey(customerID)}
	if err := invalidateView.Run(ctx, r.client, keys, version, r.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis invalidate view: %w", err)
	}
	return nil
}

func key(customerID id.CustomerID) string {
	return keyPrefix + customerID.String()
}

func floorKey(customerID id.CustomerID) string {
	return floorPrefix + customerID.String()
}
