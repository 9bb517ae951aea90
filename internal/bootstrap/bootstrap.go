// Package bootstrap centralizes the wiring every cmd/*/main.go repeats:
// dialing the Redis-backed ledger, choosing a registry implementation,
// and hosting an HTTPBus on a ServeMux. Grounded on the teacher's
// core/config.go precedence pattern, narrowed from struct-tag
// reflection to the handful of constructors each process actually
// needs.
package bootstrap

import (
	"net/http"
	"net/url"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/config"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/registry"
)

// Ledger dials the namespaced Redis client every crawler/ledger-backed
// process needs.
func Ledger(cfg *config.Config, logger core.Logger) (*ledger.Client, error) {
	return ledger.NewClient(ledger.ClientOptions{
		Host:   cfg.RedisHost,
		Port:   cfg.RedisPort,
		Logger: logger,
	})
}

// Registry returns registry.NewInMemory() for the all-in-one
// single-process deployment (every agent address is already known
// locally, per SPEC_FULL.md §4.3) or a Redis-backed registry.Registry
// for standalone worker processes that must discover a conductor
// running elsewhere.
func Registry(cfg *config.Config, distributed bool, logger core.Logger) (registry.Registry, error) {
	if !distributed {
		return registry.NewInMemory(), nil
	}
	return registry.NewRedisRegistry(registry.RedisRegistryOptions{
		Host:   cfg.RedisHost,
		Port:   cfg.RedisPort,
		Logger: logger,
	})
}

// HTTPBus returns a bus.Bus fronted by an HTTP handler on mux, for any
// process that talks to peers across the network rather than in one
// address space.
func HTTPBus(mux *http.ServeMux) bus.Bus {
	return bus.NewHTTPBus(mux)
}

// ListenPort extracts ":port" from a worker's own externally-reachable
// address, defaulting to ":8080" when address doesn't parse or names
// no port.
func ListenPort(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.Port() == "" {
		return ":8080"
	}
	return ":" + u.Port()
}
