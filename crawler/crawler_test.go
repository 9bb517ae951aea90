package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/vectorstore"
)

// fakeLedger is a minimal in-process stand-in for ledger.Ledger,
// sufficient for driving one processURL pass end to end without a
// running Redis-compatible server.
type fakeLedger struct {
	mu      sync.Mutex
	hashes  map[string]map[string][]byte
	sets    map[string]map[string]bool
	lists   map[string][]string
	locks   map[string]bool
	lockExp map[string]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		hashes:  make(map[string]map[string][]byte),
		sets:    make(map[string]map[string]bool),
		lists:   make(map[string][]string),
		locks:   make(map[string]bool),
		lockExp: make(map[string]time.Time),
	}
}

func hk(namespace, key string) string { return namespace + ":" + key }

func (f *fakeLedger) HSet(ctx context.Context, namespace, key, field string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	if f.hashes[k] == nil {
		f.hashes[k] = make(map[string][]byte)
	}
	f.hashes[k][field] = value
	return nil
}

func (f *fakeLedger) HGet(ctx context.Context, namespace, key, field string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.hashes[hk(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	v, ok := m[field]
	return v, ok, nil
}

func (f *fakeLedger) HExists(ctx context.Context, namespace, key, field string) (bool, error) {
	_, ok, err := f.HGet(ctx, namespace, key, field)
	return ok, err
}

func (f *fakeLedger) HDel(ctx context.Context, namespace, key, field string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.hashes[hk(namespace, key)]; ok {
		delete(m, field)
	}
	return nil
}

func (f *fakeLedger) HIncrBy(ctx context.Context, namespace, key, field string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	if f.hashes[k] == nil {
		f.hashes[k] = make(map[string][]byte)
	}
	var cur int64
	if v, ok := f.hashes[k][field]; ok {
		json.Unmarshal(v, &cur)
	}
	cur += delta
	b, _ := json.Marshal(cur)
	f.hashes[k][field] = b
	return cur, nil
}

func (f *fakeLedger) SAdd(ctx context.Context, namespace, key, member string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	if f.sets[k] == nil {
		f.sets[k] = make(map[string]bool)
	}
	if f.sets[k][member] {
		return 0, nil
	}
	f.sets[k][member] = true
	return 1, nil
}

func (f *fakeLedger) SIsMember(ctx context.Context, namespace, key, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[hk(namespace, key)][member], nil
}

func (f *fakeLedger) SMembers(ctx context.Context, namespace, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for m := range f.sets[hk(namespace, key)] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeLedger) SRem(ctx context.Context, namespace, key, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sets[hk(namespace, key)], member)
	return nil
}

func (f *fakeLedger) LPush(ctx context.Context, namespace, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	f.lists[k] = append([]string{value}, f.lists[k]...)
	return nil
}

func (f *fakeLedger) BRPop(ctx context.Context, timeout time.Duration, namespace, key string) (string, bool, error) {
	f.mu.Lock()
	k := hk(namespace, key)
	if len(f.lists[k]) > 0 {
		n := len(f.lists[k]) - 1
		v := f.lists[k][n]
		f.lists[k] = f.lists[k][:n]
		f.mu.Unlock()
		return v, true, nil
	}
	f.mu.Unlock()
	return "", false, nil
}

func (f *fakeLedger) LLen(ctx context.Context, namespace, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[hk(namespace, key)])), nil
}

func (f *fakeLedger) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if exp, ok := f.lockExp[lockKey]; ok && time.Now().Before(exp) {
		return false, nil
	}
	f.locks[lockKey] = true
	f.lockExp[lockKey] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeLedger) ReleaseLock(ctx context.Context, lockKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, lockKey)
	delete(f.lockExp, lockKey)
	return nil
}

func (f *fakeLedger) HealthCheck(ctx context.Context) error { return nil }

func newTestCrawler(t *testing.T, renderBody string) (*Crawler, *fakeLedger, *vectorstore.Client, map[string]vectorstore.Document) {
	t.Helper()
	fl := newFakeLedger()

	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(renderer.Result{
			URL:   "https://example.com/a",
			Body:  renderBody,
			Hrefs: []string{"https://example.com/b"},
		})
	}))
	t.Cleanup(renderSrv.Close)

	store := make(map[string]vectorstore.Document)
	var mu sync.Mutex
	vectorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/upsert":
			var doc vectorstore.Document
			json.NewDecoder(r.Body).Decode(&doc)
			store[doc.ID] = doc
		case "/delete":
			var req struct {
				ID string `json:"id"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			delete(store, req.ID)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(vectorSrv.Close)

	renderClient := renderer.New(renderSrv.URL, nil)
	vectorClient := vectorstore.New(vectorSrv.URL, nil)

	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.DomainRateLimit = time.Millisecond
	c := New(cfg, ledger.NewCrawlingLedger(fl), ledger.NewChunkStore(fl), renderClient, vectorClient, "test-ns", nil)
	return c, fl, vectorClient, store
}

func TestProcessURLStoresChunksAndDiscoversLinks(t *testing.T) {
	body := "<html><body><p>" + strings.Repeat("lorem ipsum dolor sit amet ", 80) + "hello world</p></body></html>"
	c, fl, _, store := newTestCrawler(t, body)

	ctx := context.Background()
	c.processURL(ctx, "https://example.com/a")

	rec, ok, err := ledger.NewCrawlingLedger(fl).GetRecord(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusVisited, rec.Status)
	assert.NotEmpty(t, store)

	n, err := fl.LLen(ctx, string(ledger.NamespaceCrawlQueue), "urls")
	require.NoError(t, err)
	assert.Zero(t, n) // discovery goes to the in-memory channel, not straight to the queue
}

func TestProcessURLSkipsFreshURL(t *testing.T) {
	body := "<html><body>hello</body></html>"
	c, fl, _, _ := newTestCrawler(t, body)
	ctx := context.Background()

	cl := ledger.NewCrawlingLedger(fl)
	require.NoError(t, cl.MarkVisited(ctx, "https://example.com/a", "", "somehash"))

	// Claim should never even be attempted: HasBeenCrawled with the
	// default freshness window reports true immediately after MarkVisited.
	c.processURL(ctx, "https://example.com/a")

	locked, err := fl.AcquireLock(ctx, "crawl_lock:"+hashText(ledger.NormalizeURL("https://example.com/a")), time.Second)
	require.NoError(t, err)
	assert.True(t, locked, "claim lock should never have been taken by processURL for a fresh URL")
}

func TestDiscoverLinksOnlyForwardsFirstSeen(t *testing.T) {
	c, _, _, _ := newTestCrawler(t, "")
	ctx := context.Background()

	c.discoverLinks(ctx, "https://example.com/a", []string{"https://example.com/b", "https://example.com/b"})

	select {
	case u := <-c.discovery:
		assert.Equal(t, ledger.NormalizeURL("https://example.com/b"), u)
	case <-time.After(time.Second):
		t.Fatal("expected one discovered URL")
	}
	select {
	case u := <-c.discovery:
		t.Fatalf("unexpected second discovery: %s", u)
	default:
	}
}
