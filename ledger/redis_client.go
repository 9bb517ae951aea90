// Package ledger implements the durable, process-external KV layer
// described in the data model: namespaced hashes, raw integer
// counters, sets, list-backed queues, and NX+TTL locks, all backed by
// a Redis-compatible store.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/meridianlabs/ioa/core"
)

// Client wraps a go-redis client with the namespacing and error
// classification this repository's ledger operations share.
type Client struct {
	rdb    *redis.Client
	logger core.Logger
}

// ClientOptions configures a new Client.
type ClientOptions struct {
	Host   string
	Port   string
	DB     int
	Logger core.Logger
}

// NewClient connects to host:port, verifying reachability with a
// bounded ping before returning.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Host == "" {
		return nil, core.NewFrameworkError("ledger.NewClient", "ledger", core.ErrValidation).WithID("missing host")
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("ledger")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolTimeout:  10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, core.NewFrameworkError("ledger.NewClient", "ledger", fmt.Errorf("%w: %v", core.ErrLedger, err))
	}

	logger.Info("ledger connected", map[string]interface{}{"addr": fmt.Sprintf("%s:%s", opts.Host, opts.Port)})
	return &Client{rdb: rdb, logger: logger}, nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return core.NewFrameworkError(op, "ledger", fmt.Errorf("%w: %v", core.ErrLedger, err))
}

func formatKey(namespace, key string) string {
	return namespace + ":" + key
}

// HSet stores a JSON-encoded value in the hash at namespace:key under field.
func (c *Client) HSet(ctx context.Context, namespace, key, field string, value []byte) error {
	err := c.rdb.HSet(ctx, formatKey(namespace, key), field, value).Err()
	return wrapErr("ledger.HSet", err)
}

// HGet retrieves the raw bytes stored under field, and whether it existed.
func (c *Client) HGet(ctx context.Context, namespace, key, field string) ([]byte, bool, error) {
	v, err := c.rdb.HGet(ctx, formatKey(namespace, key), field).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr("ledger.HGet", err)
	}
	return v, true, nil
}

// HExists reports whether field is present in the hash.
func (c *Client) HExists(ctx context.Context, namespace, key, field string) (bool, error) {
	ok, err := c.rdb.HExists(ctx, formatKey(namespace, key), field).Result()
	return ok, wrapErr("ledger.HExists", err)
}

// HDel removes field from the hash.
func (c *Client) HDel(ctx context.Context, namespace, key, field string) error {
	return wrapErr("ledger.HDel", c.rdb.HDel(ctx, formatKey(namespace, key), field).Err())
}

// HIncrBy atomically increments an integer counter stored as a hash
// field (used for chunk refcounts) and returns the resulting value.
func (c *Client) HIncrBy(ctx context.Context, namespace, key, field string, delta int64) (int64, error) {
	v, err := c.rdb.HIncrBy(ctx, formatKey(namespace, key), field, delta).Result()
	return v, wrapErr("ledger.HIncrBy", err)
}

// SAdd adds member to the set and returns the number of members newly
// added — 1 only on first insert, which callers use for atomic
// first-seen tests.
func (c *Client) SAdd(ctx context.Context, namespace, key, member string) (int64, error) {
	n, err := c.rdb.SAdd(ctx, formatKey(namespace, key), member).Result()
	return n, wrapErr("ledger.SAdd", err)
}

// SIsMember reports whether member is in the set.
func (c *Client) SIsMember(ctx context.Context, namespace, key, member string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, formatKey(namespace, key), member).Result()
	return ok, wrapErr("ledger.SIsMember", err)
}

// SMembers returns all members of the set.
func (c *Client) SMembers(ctx context.Context, namespace, key string) ([]string, error) {
	m, err := c.rdb.SMembers(ctx, formatKey(namespace, key)).Result()
	return m, wrapErr("ledger.SMembers", err)
}

// SRem removes member from the set.
func (c *Client) SRem(ctx context.Context, namespace, key, member string) error {
	return wrapErr("ledger.SRem", c.rdb.SRem(ctx, formatKey(namespace, key), member).Err())
}

// LPush pushes value onto the head of the list at namespace:key.
func (c *Client) LPush(ctx context.Context, namespace, key string, value string) error {
	return wrapErr("ledger.LPush", c.rdb.LPush(ctx, formatKey(namespace, key), value).Err())
}

// BRPop blocks up to timeout popping one value from the tail of the
// list. Returns ("", false, nil) on timeout.
func (c *Client) BRPop(ctx context.Context, timeout time.Duration, namespace, key string) (string, bool, error) {
	res, err := c.rdb.BRPop(ctx, timeout, formatKey(namespace, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("ledger.BRPop", err)
	}
	// res is [key, value]
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// LLen reports the length of the list.
func (c *Client) LLen(ctx context.Context, namespace, key string) (int64, error) {
	n, err := c.rdb.LLen(ctx, formatKey(namespace, key)).Result()
	return n, wrapErr("ledger.LLen", err)
}

// AcquireLock attempts an atomic SETNX with TTL, returning whether the
// lock was acquired by this caller.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey, "1", ttl).Result()
	return ok, wrapErr("ledger.AcquireLock", err)
}

// ReleaseLock deletes the lock key unconditionally.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return wrapErr("ledger.ReleaseLock", c.rdb.Del(ctx, lockKey).Err())
}

// HealthCheck pings the backing store.
func (c *Client) HealthCheck(ctx context.Context) error {
	return wrapErr("ledger.HealthCheck", c.rdb.Ping(ctx).Err())
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
