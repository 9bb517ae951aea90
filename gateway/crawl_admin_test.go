package gateway

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/crawler"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/vectorstore"
)

// fakeLedger is a minimal in-memory ledger.Ledger, scoped to this
// package's admin-route tests — the crawl queue operations only.
type fakeLedger struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{lists: make(map[string][]string)}
}

func (f *fakeLedger) listKey(namespace, key string) string { return namespace + ":" + key }

func (f *fakeLedger) HSet(ctx context.Context, namespace, key, field string, value []byte) error {
	return nil
}
func (f *fakeLedger) HGet(ctx context.Context, namespace, key, field string) ([]byte, bool, error) {
	return nil, false, nil
}
func (f *fakeLedger) HExists(ctx context.Context, namespace, key, field string) (bool, error) {
	return false, nil
}
func (f *fakeLedger) HDel(ctx context.Context, namespace, key, field string) error { return nil }
func (f *fakeLedger) HIncrBy(ctx context.Context, namespace, key, field string, delta int64) (int64, error) {
	return delta, nil
}
func (f *fakeLedger) SAdd(ctx context.Context, namespace, key, member string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.listKey(namespace, key)
	for _, m := range f.lists[k] {
		if m == member {
			return 0, nil
		}
	}
	f.lists[k] = append(f.lists[k], member)
	return 1, nil
}
func (f *fakeLedger) SIsMember(ctx context.Context, namespace, key, member string) (bool, error) {
	return false, nil
}
func (f *fakeLedger) SMembers(ctx context.Context, namespace, key string) ([]string, error) {
	return nil, nil
}
func (f *fakeLedger) SRem(ctx context.Context, namespace, key, member string) error { return nil }

func (f *fakeLedger) LPush(ctx context.Context, namespace, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.listKey(namespace, key)
	f.lists[k] = append([]string{value}, f.lists[k]...)
	return nil
}
func (f *fakeLedger) BRPop(ctx context.Context, timeout time.Duration, namespace, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.listKey(namespace, key)
	items := f.lists[k]
	if len(items) == 0 {
		return "", false, nil
	}
	last := items[len(items)-1]
	f.lists[k] = items[:len(items)-1]
	return last, true, nil
}
func (f *fakeLedger) LLen(ctx context.Context, namespace, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[f.listKey(namespace, key)])), nil
}

func (f *fakeLedger) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (f *fakeLedger) ReleaseLock(ctx context.Context, lockKey string) error { return nil }
func (f *fakeLedger) HealthCheck(ctx context.Context) error                { return nil }

func newTestCrawlAdmin(t *testing.T) (*CrawlAdmin, *ledger.ChunkStore) {
	t.Helper()
	renderSrv := httptest.NewServer(nil)
	t.Cleanup(renderSrv.Close)
	vectorSrv := httptest.NewServer(nil)
	t.Cleanup(vectorSrv.Close)

	fl := newFakeLedger()
	crawlLedger := ledger.NewCrawlingLedger(fl)
	chunks := ledger.NewChunkStore(fl)
	renderClient := renderer.New(renderSrv.URL+"/render", nil)
	vectorClient := vectorstore.New(vectorSrv.URL, nil)

	c := crawler.New(crawler.DefaultConfig(), crawlLedger, chunks, renderClient, vectorClient, "test", nil)
	return NewCrawlAdmin(c, chunks), chunks
}

func TestCrawlAdminSeedsURLs(t *testing.T) {
	admin, chunks := newTestCrawlAdmin(t)
	gin.SetMode(gin.TestMode)

	gw, _ := newTestGateway(t, "unused")
	s := NewServer(gw)
	admin.Register(s)

	req := httptest.NewRequest("POST", "/crawl", jsonBody(t, map[string]interface{}{"urls": []string{"https://example.com/a", "https://example.com/b"}}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	n, err := chunks.QueueLen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCrawlAdminQueueSizeAndClear(t *testing.T) {
	admin, chunks := newTestCrawlAdmin(t)
	gin.SetMode(gin.TestMode)
	require.NoError(t, chunks.EnqueueURL(context.Background(), "https://example.com/seed"))

	gw, _ := newTestGateway(t, "unused")
	s := NewServer(gw)
	admin.Register(s)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/queue-size", nil))
	require.Equal(t, 200, w.Code)

	w2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(w2, httptest.NewRequest("POST", "/clear-queue", nil))
	require.Equal(t, 200, w2.Code)

	n, err := chunks.QueueLen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
