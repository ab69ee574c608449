// Package redis mirrors last-known order snapshots so a restarted process
// can warm-start before the broker reconcile completes. Writes run through a
// circuit breaker; a down Redis degrades to broker-only recovery instead of
// slowing the order stream.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"order-systemv1/internal/model"
)

const snapshotKeyPrefix = "order:snapshot:"

// Config configures the snapshot cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache implements model.SnapshotCache.
type Cache struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// New connects and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client, cb: cb}, nil
}

// Client returns the underlying client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// BreakerState reports the circuit breaker state for metrics.
func (c *Cache) BreakerState() State { return c.cb.CurrentState() }

// SaveSnapshot upserts one order snapshot.
func (c *Cache) SaveSnapshot(ctx context.Context, ord model.Order) error {
	data, err := json.Marshal(ord)
	if err != nil {
		return err
	}
	return c.cb.Execute(func() error {
		return c.client.Set(ctx, snapshotKeyPrefix+ord.OrderID, data, 0).Err()
	})
}

// LoadSnapshots scans all cached orders.
func (c *Cache) LoadSnapshots(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	iter := c.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == goredis.Nil {
				continue // expired between scan and get
			}
			return nil, err
		}
		var ord model.Order
		if err := json.Unmarshal(raw, &ord); err != nil {
			log.Printf("[redis] corrupt snapshot at %s: %v", iter.Val(), err)
			continue
		}
		out = append(out, ord)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSnapshot removes a terminal order's snapshot.
func (c *Cache) DeleteSnapshot(ctx context.Context, orderID string) error {
	return c.cb.Execute(func() error {
		return c.client.Del(ctx, snapshotKeyPrefix+orderID).Err()
	})
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
