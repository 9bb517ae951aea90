// Command gateway runs the public HTTP surface from SPEC_FULL.md §6
// (submit, poll, stream, crawler admin) together with the SPEAKER
// agent, as a standalone process talking to a conductor over HTTPBus.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/meridianlabs/ioa/config"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/crawler"
	"github.com/meridianlabs/ioa/gateway"
	"github.com/meridianlabs/ioa/internal/bootstrap"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/vectorstore"
)

func main() {
	cfg := config.Load()
	logger := core.NewProductionLogger("gateway")

	conductorAddr := envOr("CONDUCTOR_ADDRESS", "http://localhost:8090")

	llm, err := llmclient.New(cfg.OllamaBaseURL, logger)
	if err != nil {
		log.Fatalf("gateway: llm client: %v", err)
	}

	mux := http.NewServeMux()
	b := bootstrap.HTTPBus(mux)

	gw := gateway.New(cfg.GatewayAddress, conductorAddr, b, llm, cfg.LLMModel, cfg.ChatServerURL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gw.Register(ctx); err != nil {
		log.Fatalf("gateway: register: %v", err)
	}

	server := gateway.NewServer(gw)
	// "/goal" (the bus inbox mounted by gw.Register above) takes
	// priority as an exact match; everything else falls through to the
	// gin-routed public API.
	mux.Handle("/", server.Handler())

	rdb, err := bootstrap.Ledger(cfg, logger)
	if err != nil {
		logger.Warn("gateway: ledger unavailable, crawler admin routes disabled", map[string]interface{}{"error": err.Error()})
	} else {
		crawlLedger := ledger.NewCrawlingLedger(rdb)
		chunks := ledger.NewChunkStore(rdb)
		render := renderer.New(cfg.WebPerceptorURL, logger)
		vectors := vectorstore.New(cfg.ChromaURL, logger)
		c := crawler.New(crawler.DefaultConfig(), crawlLedger, chunks, render, vectors, cfg.NamespaceVersion, logger)
		gateway.NewCrawlAdmin(c, chunks).Register(server)
	}

	httpServer := &http.Server{Addr: bootstrap.ListenPort(cfg.GatewayAddress), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	logger.Info("gateway listening", map[string]interface{}{"address": cfg.GatewayAddress, "conductor": conductorAddr})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("gateway: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
