package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// CrawlStatus is the lifecycle state of a normalized URL.
type CrawlStatus string

const (
	StatusNew        CrawlStatus = "new"
	StatusInProgress CrawlStatus = "in_progress"
	StatusVisited    CrawlStatus = "visited"
	StatusFailed     CrawlStatus = "failed"
)

// URLRecord is the per-normalized-URL record stored in the crawling
// namespace.
type URLRecord struct {
	URL         string      `json:"url"`
	Status      CrawlStatus `json:"status"`
	LastCrawled int64       `json:"last_crawled"`
	ContentHash string      `json:"content_hash,omitempty"`
	ETag        string      `json:"etag,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// CrawlingLedger tracks URL lifecycle state: new/in_progress/visited/
// failed, content hashes, and claim locks, on top of a Ledger.
type CrawlingLedger struct {
	l Ledger
}

// NewCrawlingLedger wraps l with the crawling namespace's operations.
func NewCrawlingLedger(l Ledger) *CrawlingLedger {
	return &CrawlingLedger{l: l}
}

// NormalizeURL lowercases the host and strips the fragment and a
// trailing slash from the path, per the data model's normalization rule.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	normalized := u.Scheme + "://" + u.Host + u.Path
	return strings.TrimSuffix(normalized, "/")
}

func hashURL(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func domainOf(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// HasBeenCrawled reports whether the URL has a record that counts as
// crawled. If freshnessWindow is non-zero it checks recency instead of
// status; with a zero window it reports whether the status is visited.
func (c *CrawlingLedger) HasBeenCrawled(ctx context.Context, rawURL string, freshnessWindow time.Duration) (bool, error) {
	normalized := NormalizeURL(rawURL)
	domain := domainOf(normalized)
	field := hashURL(normalized)

	var rec URLRecord
	ok, err := HGetJSON(ctx, c.l, NamespaceCrawling, domain, field, &rec)
	if err != nil || !ok {
		return false, err
	}

	if freshnessWindow != 0 {
		age := time.Since(time.Unix(rec.LastCrawled, 0))
		return age < freshnessWindow, nil
	}
	return rec.Status == StatusVisited, nil
}

// ClaimForCrawling attempts the atomic per-URL claim lock.
func (c *CrawlingLedger) ClaimForCrawling(ctx context.Context, rawURL string, lockTTL time.Duration) (bool, error) {
	normalized := NormalizeURL(rawURL)
	lockKey := "crawl_lock:" + hashURL(normalized)
	return c.l.AcquireLock(ctx, lockKey, lockTTL)
}

// ReleaseClaim releases the per-URL claim lock, e.g. after an unhandled
// failure.
func (c *CrawlingLedger) ReleaseClaim(ctx context.Context, rawURL string) error {
	normalized := NormalizeURL(rawURL)
	return c.l.ReleaseLock(ctx, "crawl_lock:"+hashURL(normalized))
}

// MarkInProgress records that rawURL is being fetched.
func (c *CrawlingLedger) MarkInProgress(ctx context.Context, rawURL string) error {
	return c.updateStatus(ctx, rawURL, StatusInProgress, "", "", "")
}

// MarkVisited records a successful crawl with its content hash and
// optional etag.
func (c *CrawlingLedger) MarkVisited(ctx context.Context, rawURL, etag, contentHash string) error {
	return c.updateStatus(ctx, rawURL, StatusVisited, etag, contentHash, "")
}

// MarkFailed records a failed crawl attempt with the error string.
func (c *CrawlingLedger) MarkFailed(ctx context.Context, rawURL, errMsg string) error {
	return c.updateStatus(ctx, rawURL, StatusFailed, "", "", errMsg)
}

func (c *CrawlingLedger) updateStatus(ctx context.Context, rawURL string, status CrawlStatus, etag, contentHash, errMsg string) error {
	normalized := NormalizeURL(rawURL)
	domain := domainOf(normalized)
	field := hashURL(normalized)

	rec := URLRecord{
		URL:         normalized,
		Status:      status,
		LastCrawled: time.Now().Unix(),
		ETag:        etag,
		ContentHash: contentHash,
		Error:       errMsg,
	}
	return HSetJSON(ctx, c.l, NamespaceCrawling, domain, field, rec)
}

// GetRecord returns the current record for rawURL, if any.
func (c *CrawlingLedger) GetRecord(ctx context.Context, rawURL string) (*URLRecord, bool, error) {
	normalized := NormalizeURL(rawURL)
	domain := domainOf(normalized)
	field := hashURL(normalized)
	var rec URLRecord
	ok, err := HGetJSON(ctx, c.l, NamespaceCrawling, domain, field, &rec)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rec, true, nil
}
