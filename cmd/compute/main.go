// Command compute runs the Compute agent as a standalone process,
// sandboxing each task in a subprocess under the configured
// interpreter. See cmd/planner's doc comment for the
// single-process-deployment caveat.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/internal/bootstrap"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/workers"
)

func main() {
	logger := core.NewProductionLogger("compute")

	address := envOr("COMPUTE_ADDRESS", "http://localhost:8085")
	conductorAddr := envOr("CONDUCTOR_ADDRESS", "http://localhost:8090")
	interpreter := envOr("COMPUTE_INTERPRETER", "python3")

	mux := http.NewServeMux()
	b := bootstrap.HTTPBus(mux)

	w := workers.New(messages.AgentCompute, address, conductorAddr, memory.New(), b, workers.NewCompute(interpreter), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Register(ctx); err != nil {
		log.Fatalf("compute: register: %v", err)
	}

	srv := &http.Server{Addr: bootstrap.ListenPort(address), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("compute worker listening", map[string]interface{}{"address": address, "conductor": conductorAddr, "interpreter": interpreter})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("compute: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
