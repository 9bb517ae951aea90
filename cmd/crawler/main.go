// Command crawler runs the concurrent web crawler's fetch-worker pool
// and discovery pipeline as a standalone background process, draining
// the Redis-backed crawl queue. It exposes no HTTP surface of its own
// — seeding, queue-size, and clear-queue are admin operations exposed
// through cmd/gateway, which shares the same Redis-backed ledger.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/meridianlabs/ioa/config"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/crawler"
	"github.com/meridianlabs/ioa/internal/bootstrap"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/vectorstore"
)

func main() {
	cfg := config.Load()
	logger := core.NewProductionLogger("crawler")

	rdb, err := bootstrap.Ledger(cfg, logger)
	if err != nil {
		log.Fatalf("crawler: ledger: %v", err)
	}

	crawlLedger := ledger.NewCrawlingLedger(rdb)
	chunks := ledger.NewChunkStore(rdb)
	render := renderer.New(cfg.WebPerceptorURL, logger)
	vectors := vectorstore.New(cfg.ChromaURL, logger)

	c := crawler.New(crawler.DefaultConfig(), crawlLedger, chunks, render, vectors, cfg.NamespaceVersion, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("crawler starting", map[string]interface{}{"namespace": cfg.NamespaceVersion})
	c.Start(ctx)

	<-ctx.Done()
	logger.Info("crawler shutting down", map[string]interface{}{})
	c.Stop(context.Background())
}
