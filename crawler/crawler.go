// Package crawler implements the concurrent web crawler: a fetch-worker
// pool draining the ledger crawl queue, per-domain politeness via
// golang.org/x/time/rate, chunk-diff/refcount-managed vector-store
// writes, and a backpressure-bounded link discovery pipeline.
//
// Grounded on original_source/webcrawler/app/crawler.py's Crawler
// class — the worker loop and fetch-with-retry shape are translated
// directly, and its per-domain semaphore + last-request-time pair is
// replaced by one rate.Limiter per domain; the
// chunk-diff/refcount machinery is new (the Python original always
// re-upserts every chunk on every crawl; this repository instead diffs
// against the URL's previously stored chunk set, matching SPEC_FULL's
// realized REDESIGN FLAG).
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/resilience"
	"github.com/meridianlabs/ioa/textutil"
	"github.com/meridianlabs/ioa/vectorstore"
)

const (
	defaultFreshnessWindow = 24 * time.Hour
	defaultClaimTTL        = 120 * time.Second
	defaultChunkSize       = 1000
	defaultChunkOverlap    = 200
	defaultRenderTimeout   = 15 * time.Second
	defaultDequeueTimeout  = 1 * time.Second
)

// Config tunes one Crawler instance.
type Config struct {
	Workers             int
	DomainRateLimit     time.Duration // minimum interval between requests to one domain
	MaxRetries          int
	DiscoveryBufferSize int
	MaxQueueSize        int
	FreshnessWindow     time.Duration
}

// DefaultConfig returns the crawler's default tuning.
func DefaultConfig() Config {
	return Config{
		Workers:             10,
		DomainRateLimit:     time.Second,
		MaxRetries:          3,
		DiscoveryBufferSize: 256,
		MaxQueueSize:        10000,
		FreshnessWindow:     defaultFreshnessWindow,
	}
}

// Crawler owns the fetch-worker pool and the discovery enqueue manager.
type Crawler struct {
	cfg       Config
	ledger    *ledger.CrawlingLedger
	chunks    *ledger.ChunkStore
	render    *renderer.Client
	vectors   *vectorstore.Client
	logger    core.Logger
	namespace string

	domainLimiters sync.Map // domain string -> *rate.Limiter

	discovery chan string
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// New wires a Crawler against its backing stores.
func New(cfg Config, crawlLedger *ledger.CrawlingLedger, chunks *ledger.ChunkStore, render *renderer.Client, vectors *vectorstore.Client, namespace string, logger core.Logger) *Crawler {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("crawler")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.DomainRateLimit <= 0 {
		cfg.DomainRateLimit = DefaultConfig().DomainRateLimit
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.DiscoveryBufferSize <= 0 {
		cfg.DiscoveryBufferSize = DefaultConfig().DiscoveryBufferSize
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultConfig().MaxQueueSize
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultConfig().FreshnessWindow
	}
	return &Crawler{
		cfg:       cfg,
		ledger:    crawlLedger,
		chunks:    chunks,
		render:    render,
		vectors:   vectors,
		logger:    logger,
		namespace: namespace,
		discovery: make(chan string, cfg.DiscoveryBufferSize),
	}
}

// Seed enqueues urls directly onto the crawl queue, for the gateway's
// admin "POST /crawl" route.
func (c *Crawler) Seed(ctx context.Context, urls []string) error {
	for _, u := range urls {
		normalized := ledger.NormalizeURL(u)
		if _, err := c.chunks.MarkURLSeen(ctx, normalized); err != nil {
			return err
		}
		if err := c.chunks.EnqueueURL(ctx, normalized); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the fetch-worker pool and the discovery enqueue
// manager, returning once both are running.
func (c *Crawler) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.enqueueManager(ctx)

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.fetchWorker(ctx, i)
	}
}

// Stop pushes one shutdown sentinel per fetch worker and closes the
// discovery channel, then waits for every goroutine to exit.
func (c *Crawler) Stop(ctx context.Context) {
	c.stopOnce.Do(func() {
		for i := 0; i < c.cfg.Workers; i++ {
			_ = c.chunks.PushShutdownSentinel(ctx)
		}
		close(c.discovery)
	})
	c.wg.Wait()
}

func (c *Crawler) fetchWorker(ctx context.Context, id int) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		value, ok, err := c.chunks.DequeueURL(ctx, defaultDequeueTimeout)
		if err != nil {
			c.logger.Warn("crawler dequeue failed", map[string]interface{}{"worker": id, "error": err.Error()})
			continue
		}
		if !ok {
			continue // brpop timeout, loop again and re-check shutdown
		}
		if value == ledger.ShutdownSentinel {
			return
		}

		c.processURL(ctx, value)
	}
}

func (c *Crawler) enqueueManager(ctx context.Context) {
	defer c.wg.Done()
	for normalized := range c.discovery {
		for {
			n, err := c.chunks.QueueLen(ctx)
			if err != nil || n < int64(c.cfg.MaxQueueSize) {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
		if err := c.chunks.EnqueueURL(ctx, normalized); err != nil {
			c.logger.Warn("crawler enqueue failed", map[string]interface{}{"url": normalized, "error": err.Error()})
		}
	}
}

// processURL runs the steps 1-11 pipeline in spec order for one URL.
func (c *Crawler) processURL(ctx context.Context, rawURL string) {
	normalized := ledger.NormalizeURL(rawURL)

	fresh, err := c.ledger.HasBeenCrawled(ctx, normalized, c.cfg.FreshnessWindow)
	if err == nil && fresh {
		return
	}

	claimed, err := c.ledger.ClaimForCrawling(ctx, normalized, defaultClaimTTL)
	if err != nil || !claimed {
		return
	}

	if err := c.ledger.MarkInProgress(ctx, normalized); err != nil {
		c.logger.Warn("crawler mark-in-progress failed", map[string]interface{}{"url": normalized, "error": err.Error()})
	}

	domain := hostOf(normalized)
	c.waitForDomainSlot(ctx, domain)

	result := c.fetchWithRetry(ctx, normalized)
	if result.Body == "" {
		_ = c.ledger.MarkFailed(ctx, normalized, "failed to fetch content after retries")
		_ = c.ledger.ReleaseClaim(ctx, normalized)
		return
	}

	cleanText := textutil.ExtractText(result.Body)
	if cleanText == "" {
		_ = c.ledger.MarkFailed(ctx, normalized, "empty or invalid content after parsing")
		_ = c.ledger.ReleaseClaim(ctx, normalized)
		return
	}

	contentHash := hashText(cleanText)

	prevRecord, hadRecord, _ := c.ledger.GetRecord(ctx, normalized)
	if hadRecord && prevRecord.ContentHash == contentHash {
		_ = c.ledger.MarkVisited(ctx, normalized, "", contentHash)
		_ = c.ledger.ReleaseClaim(ctx, normalized)
		c.discoverLinks(ctx, normalized, result.Hrefs)
		return
	}

	if err := c.diffAndStoreChunks(ctx, normalized, cleanText); err != nil {
		c.logger.Warn("crawler chunk storage failed", map[string]interface{}{"url": normalized, "error": err.Error()})
		_ = c.ledger.MarkFailed(ctx, normalized, err.Error())
		_ = c.ledger.ReleaseClaim(ctx, normalized)
		return
	}

	if err := c.ledger.MarkVisited(ctx, normalized, "", contentHash); err != nil {
		c.logger.Warn("crawler mark-visited failed", map[string]interface{}{"url": normalized, "error": err.Error()})
	}
	_ = c.ledger.ReleaseClaim(ctx, normalized)

	c.discoverLinks(ctx, normalized, result.Hrefs)
}

func (c *Crawler) waitForDomainSlot(ctx context.Context, domain string) {
	limiterIface, _ := c.domainLimiters.LoadOrStore(domain, rate.NewLimiter(rate.Every(c.cfg.DomainRateLimit), 1))
	limiter := limiterIface.(*rate.Limiter)
	_ = limiter.Wait(ctx)
}

func (c *Crawler) fetchWithRetry(ctx context.Context, normalizedURL string) renderer.Result {
	var result renderer.Result
	cfg := &resilience.RetryConfig{
		MaxAttempts:   c.cfg.MaxRetries,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
	_ = resilience.Retry(ctx, cfg, func() error {
		result = c.render.Render(ctx, normalizedURL, defaultRenderTimeout)
		if result.Body == "" {
			return fmt.Errorf("%w: empty render body for %s", core.ErrTransport, normalizedURL)
		}
		return nil
	})
	return result
}

// diffAndStoreChunks implements spec §4.7 steps 8-9: split text into
// overlapping windows, diff the chunk-hash set against what is already
// indexed for this URL, and apply refcount-managed vector-store writes
// only for the delta.
func (c *Crawler) diffAndStoreChunks(ctx context.Context, normalizedURL, cleanText string) error {
	urlHash := hashText(normalizedURL)
	oldSet, err := c.chunks.URLChunkSet(ctx, urlHash)
	if err != nil {
		return err
	}

	newChunks := textutil.SplitChunks(cleanText, defaultChunkSize, defaultChunkOverlap)
	newSet := make(map[string]string, len(newChunks)) // hash -> text
	for _, chunk := range newChunks {
		newSet[hashText(chunk)] = chunk
	}

	var toAdd, toRemove []string
	for h := range newSet {
		if !oldSet[h] {
			toAdd = append(toAdd, h)
		}
	}
	for h := range oldSet {
		if _, ok := newSet[h]; !ok {
			toRemove = append(toRemove, h)
		}
	}

	for _, h := range toRemove {
		count, err := c.chunks.DecrChunkRefcount(ctx, h)
		if err != nil {
			return err
		}
		if count <= 0 {
			if err := c.vectors.Delete(ctx, h); err != nil {
				return err
			}
		}
	}

	for _, h := range toAdd {
		count, err := c.chunks.IncrChunkRefcount(ctx, h)
		if err != nil {
			return err
		}
		if count == 1 {
			if err := c.vectors.Upsert(ctx, vectorstore.Document{
				ID:       h,
				Text:     newSet[h],
				Metadata: map[string]string{"source": normalizedURL, "namespace": c.namespace},
			}); err != nil {
				return err
			}
		}
	}

	return c.chunks.SetURLChunks(ctx, urlHash, toAdd, toRemove)
}

func (c *Crawler) discoverLinks(ctx context.Context, sourceURL string, hrefs []string) {
	for _, href := range hrefs {
		normalized := ledger.NormalizeURL(href)
		firstSeen, err := c.chunks.MarkURLSeen(ctx, normalized)
		if err != nil {
			c.logger.Warn("crawler seen-set check failed", map[string]interface{}{"url": normalized, "error": err.Error()})
			continue
		}
		if !firstSeen {
			continue
		}
		select {
		case c.discovery <- normalized:
		case <-ctx.Done():
			return
		}
	}
}

func hostOf(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Host
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
