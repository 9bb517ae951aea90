// Package registry implements the agent registry: a map from agent
// type to a set of addresses, with uniform-random load-balanced
// lookup. There is no leasing or health indexing — workers maintain
// their own FIFO ordering, per the spec's narrower contract than the
// teacher's capability-aware discovery service.
package registry

import (
	"context"
	"math/rand"
	"sync"

	"github.com/meridianlabs/ioa/messages"
)

// Registry maps agent types to addresses.
type Registry interface {
	// Register idempotently adds address under agentType.
	Register(ctx context.Context, agentType messages.AgentType, address string) error
	// GetAgent returns one address for agentType chosen uniformly at
	// random, and false if none are registered.
	GetAgent(ctx context.Context, agentType messages.AgentType) (string, bool, error)
	// GetAgentType reverse-looks-up the type registered for address.
	GetAgentType(ctx context.Context, address string) (messages.AgentType, bool, error)
}

// InMemory is a process-local Registry for single-conductor-process
// deployments.
type InMemory struct {
	mu        sync.RWMutex
	byType    map[messages.AgentType][]string
	byAddress map[string]messages.AgentType
	rng       *rand.Rand
}

// NewInMemory returns an empty in-memory registry.
func NewInMemory() *InMemory {
	return &InMemory{
		byType:    make(map[messages.AgentType][]string),
		byAddress: make(map[string]messages.AgentType),
		rng:       rand.New(rand.NewSource(1)),
	}
}

// Register adds address under agentType if not already present,
// preserving insertion order.
func (r *InMemory) Register(ctx context.Context, agentType messages.AgentType, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byType[agentType] {
		if a == address {
			return nil
		}
	}
	r.byType[agentType] = append(r.byType[agentType], address)
	r.byAddress[address] = agentType
	return nil
}

// GetAgent picks one address for agentType uniformly at random.
func (r *InMemory) GetAgent(ctx context.Context, agentType messages.AgentType) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := r.byType[agentType]
	if len(addrs) == 0 {
		return "", false, nil
	}
	return addrs[r.rng.Intn(len(addrs))], true, nil
}

// GetAgentType reverse-looks-up the type registered for address.
func (r *InMemory) GetAgentType(ctx context.Context, address string) (messages.AgentType, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byAddress[address]
	return t, ok, nil
}
