// Command conductor runs the all-in-one, single-process deployment:
// SharedMemory, the in-memory AgentRegistry, every worker, the
// Orchestrator/Conductor pair, and the Gateway all share one address
// space over an InProcessBus, per SPEC_FULL.md §4.3's
// "single-conductor-process deployment" note. This is the only
// topology in which every worker's impression reads and writes land in
// the same SharedMemory store — the standalone cmd/planner,
// cmd/scout, etc. processes exist for operators who want to scale an
// individual worker type out, but a graph that fans impressions across
// two standalone workers needs them colocated to see each other's
// writes, since SharedMemory is intentionally process-local (see
// memory/store.go).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/config"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/gateway"
	"github.com/meridianlabs/ioa/internal/bootstrap"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/orchestrator"
	"github.com/meridianlabs/ioa/registry"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/vectorstore"
	"github.com/meridianlabs/ioa/workers"
)

const (
	conductorAddr  = "conductor"
	plannerAddr    = "planner"
	scoutAddr      = "scout"
	retrieveAddr   = "retrieve"
	architectAddr  = "architect"
	computeAddr    = "compute"
	strategistAddr = "strategist"
	gatewayAddr    = "gateway"
)

func main() {
	cfg := config.Load()
	logger := core.NewProductionLogger("conductor")

	llm, err := llmclient.New(cfg.OllamaBaseURL, logger)
	if err != nil {
		log.Fatalf("conductor: llm client: %v", err)
	}
	vectors := vectorstore.New(cfg.ChromaURL, logger)
	render := renderer.New(cfg.WebPerceptorURL, logger)
	search := workers.DuckDuckGoSearcher(&http.Client{Timeout: 15 * time.Second})

	store := memory.New()
	store.SetLogger(logger)
	b := bus.NewInProcessBus()
	reg := registry.NewInMemory()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Conductor and Gateway must register their bus inboxes before any
	// worker does, since a worker's own Register sends an
	// AgentRegistration to conductorAddr synchronously.
	orch := orchestrator.NewOrchestrator(reg, b, store, conductorAddr, gatewayAddr, logger)
	conductor := orchestrator.NewConductor(orch, reg, b, store, conductorAddr, plannerAddr, gatewayAddr, logger)
	if err := conductor.Register(ctx); err != nil {
		log.Fatalf("conductor: register: %v", err)
	}

	gw := gateway.New(gatewayAddr, conductorAddr, b, llm, cfg.LLMModel, cfg.ChatServerURL, logger)
	if err := gw.Register(ctx); err != nil {
		log.Fatalf("conductor: register gateway: %v", err)
	}
	server := gateway.NewServer(gw)

	// Session ledger: best-effort restart recovery. A process that
	// can't reach Redis still runs, just without detecting requests
	// abandoned by a previous crash.
	if rdb, err := bootstrap.Ledger(cfg, logger); err != nil {
		logger.Warn("conductor: session ledger unavailable, restart recovery disabled", map[string]interface{}{"error": err.Error()})
	} else {
		sessions := ledger.NewSessionLedger(rdb)
		orch.SetSessions(sessions)
		abandoned, err := sessions.Reconcile(ctx)
		if err != nil {
			logger.Warn("conductor: session reconciliation failed", map[string]interface{}{"error": err.Error()})
		}
		for _, requestID := range abandoned {
			gw.MarkAbandoned(requestID)
		}
		if len(abandoned) > 0 {
			logger.Info("conductor: reconciled abandoned requests from a prior run", map[string]interface{}{"count": len(abandoned)})
		}
	}

	registerWorker := func(agentType messages.AgentType, address string, task workers.Task) {
		w := workers.New(agentType, address, conductorAddr, store, b, task, logger)
		if err := w.Register(ctx); err != nil {
			log.Fatalf("conductor: register %s worker: %v", agentType, err)
		}
	}

	registerWorker(messages.AgentPlanner, plannerAddr, workers.NewPlanner(cfg.LLMModel, llm))
	registerWorker(messages.AgentScout, scoutAddr, workers.NewScout(cfg.LLMModel, llm, search, render, workers.PassThroughFilter))
	registerWorker(messages.AgentRetrieve, retrieveAddr, workers.NewRetrieve(vectors))
	registerWorker(messages.AgentSynthesize, architectAddr, workers.NewArchitect(cfg.LLMModel, llm, logger))
	registerWorker(messages.AgentCompute, computeAddr, workers.NewCompute(envOr("COMPUTE_INTERPRETER", "python3")))

	if envOr("ENABLE_STRATEGIST", "") != "" {
		registerWorker(messages.AgentStrategist, strategistAddr, workers.NewStrategist(cfg.LLMModel, llm))
	}

	httpServer := &http.Server{Addr: bootstrap.ListenPort(cfg.GatewayAddress), Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	logger.Info("conductor (all-in-one) listening", map[string]interface{}{"address": cfg.GatewayAddress})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("conductor: http server: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
