// Command planner runs the Planner agent as a standalone process,
// reachable from a conductor over HTTPBus. For the all-in-one
// single-process deployment see cmd/conductor instead, which hosts
// every worker in one address space sharing one SharedMemory store.
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
	"github.com/meridianlabs/ioa/internal/bootstrap"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/workers"
)

func main() {
	cfg := config.Load()
	logger := core.NewProductionLogger("planner")

	address := envOr("PLANNER_ADDRESS", "http://localhost:8081")
	conductorAddr := envOr("CONDUCTOR_ADDRESS", "http://localhost:8090")

	llm, err := llmclient.New(cfg.OllamaBaseURL, logger)
	if err != nil {
		log.Fatalf("planner: llm client: %v", err)
	}

	mux := http.NewServeMux()
	b := bootstrap.HTTPBus(mux)

	w := workers.New(messages.AgentPlanner, address, conductorAddr, memory.New(), b, workers.NewPlanner(cfg.LLMModel, llm), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Register(ctx); err != nil {
		log.Fatalf("planner: register: %v", err)
	}

	srv := &http.Server{Addr: bootstrap.ListenPort(address), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("planner worker listening", map[string]interface{}{"address": address, "conductor": conductorAddr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("planner: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
