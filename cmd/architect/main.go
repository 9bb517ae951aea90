// Command architect runs the Architect (Synthesizer) agent as a
// standalone process, registered under messages.AgentSynthesize. See
// cmd/planner's doc comment for the single-process-deployment caveat.
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
	logger := core.NewProductionLogger("architect")

	address := envOr("ARCHITECT_ADDRESS", "http://localhost:8084")
	conductorAddr := envOr("CONDUCTOR_ADDRESS", "http://localhost:8090")

	llm, err := llmclient.New(cfg.OllamaBaseURL, logger)
	if err != nil {
		log.Fatalf("architect: llm client: %v", err)
	}

	mux := http.NewServeMux()
	b := bootstrap.HTTPBus(mux)

	task := workers.NewArchitect(cfg.LLMModel, llm, logger)
	w := workers.New(messages.AgentSynthesize, address, conductorAddr, memory.New(), b, task, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Register(ctx); err != nil {
		log.Fatalf("architect: register: %v", err)
	}

	srv := &http.Server{Addr: bootstrap.ListenPort(address), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("architect worker listening", map[string]interface{}{"address": address, "conductor": conductorAddr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("architect: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
