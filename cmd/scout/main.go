// Command scout runs the Scout agent as a standalone process. See
// cmd/planner's doc comment for the single-process-deployment caveat.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianlabs/ioa/config"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/internal/bootstrap"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/workers"
)

func main() {
	cfg := config.Load()
	logger := core.NewProductionLogger("scout")

	address := envOr("SCOUT_ADDRESS", "http://localhost:8082")
	conductorAddr := envOr("CONDUCTOR_ADDRESS", "http://localhost:8090")

	llm, err := llmclient.New(cfg.OllamaBaseURL, logger)
	if err != nil {
		log.Fatalf("scout: llm client: %v", err)
	}

	render := renderer.New(cfg.WebPerceptorURL, logger)
	search := workers.DuckDuckGoSearcher(&http.Client{Timeout: 15 * time.Second})

	mux := http.NewServeMux()
	b := bootstrap.HTTPBus(mux)

	task := workers.NewScout(cfg.LLMModel, llm, search, render, workers.PassThroughFilter)
	w := workers.New(messages.AgentScout, address, conductorAddr, memory.New(), b, task, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Register(ctx); err != nil {
		log.Fatalf("scout: register: %v", err)
	}

	srv := &http.Server{Addr: bootstrap.ListenPort(address), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("scout worker listening", map[string]interface{}{"address": address, "conductor": conductorAddr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("scout: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
