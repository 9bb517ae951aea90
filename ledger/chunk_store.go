package ledger

import (
	"context"
	"time"
)

// ChunkStore manages the global chunk refcount map, the per-URL chunk
// set used to diff re-crawls, the global seen-URL set, and the
// crawl queue. Each single ledger call (hincrby, sadd, list push/pop) is
// atomic relative to peer crawlers; SetURLChunks and ClearQueue make
// several such calls and are not atomic as a whole.
type ChunkStore struct {
	l Ledger
}

// NewChunkStore wraps l with the crawler's chunk/queue operations.
func NewChunkStore(l Ledger) *ChunkStore {
	return &ChunkStore{l: l}
}

const (
	refcountKey  = "refcount"
	urlChunksKey = "url_chunks"
	seenURLsKey  = "seen_urls"
)

// IncrChunkRefcount increments the global refcount for chunkHash and
// returns the resulting value. Callers insert the chunk into the
// vector store iff the returned value is 1.
func (c *ChunkStore) IncrChunkRefcount(ctx context.Context, chunkHash string) (int64, error) {
	return c.l.HIncrBy(ctx, string(NamespaceChunks), refcountKey, chunkHash, 1)
}

// DecrChunkRefcount decrements the global refcount for chunkHash and
// returns the resulting value. When it is <= 0 the refcount entry is
// deleted here, and callers delete the chunk from the vector store.
func (c *ChunkStore) DecrChunkRefcount(ctx context.Context, chunkHash string) (int64, error) {
	v, err := c.l.HIncrBy(ctx, string(NamespaceChunks), refcountKey, chunkHash, -1)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		_ = c.l.HDel(ctx, string(NamespaceChunks), refcountKey, chunkHash)
	}
	return v, nil
}

// URLChunkSet returns the set of chunk hashes currently indexed for
// urlHash (the sha256 hex of the normalized URL).
func (c *ChunkStore) URLChunkSet(ctx context.Context, urlHash string) (map[string]bool, error) {
	members, err := c.l.SMembers(ctx, string(NamespaceChunks), urlChunksKey+":"+urlHash)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	return set, nil
}

// SetURLChunks applies a diff to the URL's chunk set: members of toAdd
// are SADD'd, then members of toRemove are SREM'd; other members stay.
func (c *ChunkStore) SetURLChunks(ctx context.Context, urlHash string, toAdd, toRemove []string) error {
	key := urlChunksKey + ":" + urlHash
	for _, h := range toAdd {
		if _, err := c.l.SAdd(ctx, string(NamespaceChunks), key, h); err != nil {
			return err
		}
	}
	for _, h := range toRemove {
		if err := c.l.SRem(ctx, string(NamespaceChunks), key, h); err != nil {
			return err
		}
	}
	return nil
}

// MarkURLSeen performs the atomic first-seen test on the global
// seen-URL set: it returns true only the first time normalizedURL is
// inserted.
func (c *ChunkStore) MarkURLSeen(ctx context.Context, normalizedURL string) (firstSeen bool, err error) {
	n, err := c.l.SAdd(ctx, string(NamespaceChunks), seenURLsKey, normalizedURL)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// EnqueueURL pushes normalizedURL onto the crawl queue.
func (c *ChunkStore) EnqueueURL(ctx context.Context, normalizedURL string) error {
	return c.l.LPush(ctx, string(NamespaceCrawlQueue), "urls", normalizedURL)
}

// DequeueURL blocks up to timeout for the next URL (or shutdown
// sentinel) on the crawl queue.
func (c *ChunkStore) DequeueURL(ctx context.Context, timeout time.Duration) (value string, ok bool, err error) {
	return c.l.BRPop(ctx, timeout, string(NamespaceCrawlQueue), "urls")
}

// QueueLen reports the current crawl queue length.
func (c *ChunkStore) QueueLen(ctx context.Context) (int64, error) {
	return c.l.LLen(ctx, string(NamespaceCrawlQueue), "urls")
}

// PushShutdownSentinel pushes one shutdown sentinel, to be popped by
// exactly one fetch worker, unblocking a BRPop already in flight.
func (c *ChunkStore) PushShutdownSentinel(ctx context.Context) error {
	return c.l.LPush(ctx, string(NamespaceCrawlQueue), "urls", ShutdownSentinel)
}

// ClearQueue drains every pending URL (and any shutdown sentinel) from
// the crawl queue, for the gateway's admin "POST /clear-queue" route.
// It polls with a short timeout rather than BRPop's 0 (block-forever)
// so an empty queue returns promptly.
func (c *ChunkStore) ClearQueue(ctx context.Context) (int64, error) {
	var drained int64
	for {
		_, ok, err := c.l.BRPop(ctx, 10*time.Millisecond, string(NamespaceCrawlQueue), "urls")
		if err != nil {
			return drained, err
		}
		if !ok {
			return drained, nil
		}
		drained++
	}
}
