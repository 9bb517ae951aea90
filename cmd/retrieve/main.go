// Command retrieve runs the Retrieve agent as a standalone process.
// See cmd/planner's doc comment for the single-process-deployment
// caveat.
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
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/vectorstore"
	"github.com/meridianlabs/ioa/workers"
)

func main() {
	cfg := config.Load()
	logger := core.NewProductionLogger("retrieve")

	address := envOr("RETRIEVE_ADDRESS", "http://localhost:8083")
	conductorAddr := envOr("CONDUCTOR_ADDRESS", "http://localhost:8090")

	vectors := vectorstore.New(cfg.ChromaURL, logger)

	mux := http.NewServeMux()
	b := bootstrap.HTTPBus(mux)

	w := workers.New(messages.AgentRetrieve, address, conductorAddr, memory.New(), b, workers.NewRetrieve(vectors), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Register(ctx); err != nil {
		log.Fatalf("retrieve: register: %v", err)
	}

	srv := &http.Server{Addr: bootstrap.ListenPort(address), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("retrieve worker listening", map[string]interface{}{"address": address, "conductor": conductorAddr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("retrieve: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
