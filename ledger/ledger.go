package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// Namespace groups keys by concern, mirroring the Python original's
// LedgerNamespace enum.
type Namespace string

const (
	NamespaceCrawling   Namespace = "crawled"
	NamespaceSessions   Namespace = "sessions"
	NamespaceCrawlQueue Namespace = "crawl_queue"
	NamespaceChunks     Namespace = "chunks"
)

// ShutdownSentinel is pushed once per fetch worker onto the crawl
// queue at stop; a worker that pops this value terminates its loop.
const ShutdownSentinel = "shutdown"

// Ledger is the durable KV contract every ledger-backed component
// (CrawlingLedger, the chunk refcount store, the crawl queue) is built
// on top of. It is implemented by *Client; tests substitute a small
// in-memory fake implementing the same method set.
type Ledger interface {
	HSet(ctx context.Context, namespace, key, field string, value []byte) error
	HGet(ctx context.Context, namespace, key, field string) ([]byte, bool, error)
	HExists(ctx context.Context, namespace, key, field string) (bool, error)
	HDel(ctx context.Context, namespace, key, field string) error
	HIncrBy(ctx context.Context, namespace, key, field string, delta int64) (int64, error)

	SAdd(ctx context.Context, namespace, key, member string) (int64, error)
	SIsMember(ctx context.Context, namespace, key, member string) (bool, error)
	SMembers(ctx context.Context, namespace, key string) ([]string, error)
	SRem(ctx context.Context, namespace, key, member string) error

	LPush(ctx context.Context, namespace, key string, value string) error
	BRPop(ctx context.Context, timeout time.Duration, namespace, key string) (string, bool, error)
	LLen(ctx context.Context, namespace, key string) (int64, error)

	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error

	HealthCheck(ctx context.Context) error
}

// HSetJSON marshals value and stores it, mirroring the Python
// original's ledger.hset(namespace, key, field, json.dumps(value)).
func HSetJSON(ctx context.Context, l Ledger, ns Namespace, key, field string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return l.HSet(ctx, string(ns), key, field, data)
}

// HGetJSON retrieves and unmarshals a value stored by HSetJSON. Returns
// ok=false if the field is absent.
func HGetJSON(ctx context.Context, l Ledger, ns Namespace, key, field string, out interface{}) (bool, error) {
	data, ok, err := l.HGet(ctx, string(ns), key, field)
	if err != nil || !ok {
		return ok, err
	}
	return true, json.Unmarshal(data, out)
}
