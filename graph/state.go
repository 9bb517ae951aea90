package graph

import (
	"sort"
	"sync"
)

// State is one request's in-flight execution graph bookkeeping:
// in-degree per node, a ready queue, the running set, node_outputs,
// and a monotonic step_counter. It realizes Kahn's algorithm exactly
// as the spec's §3/§4.4 invariants describe.
//
// State guards its fields with its own mutex, so every method is safe
// to call from any goroutine; the orchestrator calls it from whichever
// goroutine delivers a Thought.
type State struct {
	plan *Plan

	dependencies map[string][]string // node -> direct predecessors, sorted edge order
	dependents   map[string][]string // node -> direct successors, sorted edge order
	inDegree     map[string]int

	queue        []string // ready-to-run ids, FIFO
	running      map[string]bool
	completed    map[string]bool
	nodeOutputs  map[string][]string
	stepCounter  int

	mu sync.Mutex
}

// NewState builds the initial dispatch state for plan: every id with
// in-degree 0 starts in the ready queue.
func NewState(plan *Plan) *State {
	deps := make(map[string][]string, len(plan.Nodes))
	dependents := make(map[string][]string, len(plan.Nodes))
	inDegree := make(map[string]int, len(plan.Nodes))
	for id := range plan.Nodes {
		inDegree[id] = 0
	}
	for _, e := range plan.Edges {
		deps[e.To] = append(deps[e.To], e.From)
		dependents[e.From] = append(dependents[e.From], e.To)
		inDegree[e.To]++
	}

	s := &State{
		plan:         plan,
		dependencies: deps,
		dependents:   dependents,
		inDegree:     inDegree,
		running:      make(map[string]bool),
		completed:    make(map[string]bool),
		nodeOutputs:  make(map[string][]string),
	}
	for id, deg := range inDegree {
		if deg == 0 {
			s.queue = append(s.queue, id)
		}
	}
	// Deterministic entry order: ids listed in entry_nodes come first in
	// that order, then any other in-degree-0 ids in lexicographic order.
	sort.Strings(s.queue)
	s.queue = orderByList(s.queue, plan.EntryNodes)
	return s
}

func orderByList(ids []string, preferred []string) []string {
	pos := make(map[string]int, len(preferred))
	for i, id := range preferred {
		pos[id] = i
	}
	out := append([]string(nil), ids...)
	// stable-ish insertion ordering by preferred position, falling back
	// to original order for ids not present in preferred.
	sortByKey(out, func(a, b string) bool {
		pa, oka := pos[a]
		pb, okb := pos[b]
		if oka && okb {
			return pa < pb
		}
		if oka != okb {
			return oka
		}
		return false
	})
	return out
}

func sortByKey(s []string, less func(a, b string) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// DispatchItem is one node ready to be sent out, with its computed
// step id and concatenated predecessor input keys.
type DispatchItem struct {
	Node   Node
	StepID int
	Inputs []string
}

// NextReady pops the next ready node, if any, incrementing step_counter
// and moving the node from the queue into the running set. Per §4.4,
// a node only enters running on successful dequeue here — callers that
// fail to obtain a registry address for the node's type must call
// Requeue to put it back at the front, so it is retried next tick.
func (s *State) NextReady() (DispatchItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return DispatchItem{}, false
	}
	s.stepCounter++
	id := s.queue[0]
	s.queue = s.queue[1:]
	s.running[id] = true

	var inputs []string
	for _, dep := range s.dependencies[id] {
		inputs = append(inputs, s.nodeOutputs[dep]...)
	}

	return DispatchItem{
		Node:   s.plan.Nodes[id],
		StepID: s.stepCounter,
		Inputs: inputs,
	}, true
}

// Requeue puts id back at the front of the ready queue and out of
// running, used when dispatch could not find a registered agent.
func (s *State) Requeue(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
	s.queue = append([]string{id}, s.queue...)
}

// OnNodeComplete records a RESOLVED thought for node id: it leaves
// running, its impressions are recorded, and every successor whose
// in-degree reaches zero is enqueued.
func (s *State) OnNodeComplete(id string, impressions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
	s.completed[id] = true
	s.nodeOutputs[id] = append(s.nodeOutputs[id], impressions...)

	for _, dependent := range s.dependents[id] {
		s.inDegree[dependent]--
		if s.inDegree[dependent] == 0 {
			s.queue = append(s.queue, dependent)
		}
	}
}

// IsComplete reports whether every node has completed.
func (s *State) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed) == len(s.plan.Nodes)
}

// HasStalled reports whether no node is ready or running and the graph
// is not complete. ParsePlan rejects cyclic and unreachable-terminal
// plans, and a node whose type has no registered agent is requeued
// rather than dropped, so neither of those leaves the graph stalled.
func (s *State) HasStalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && len(s.running) == 0 && len(s.completed) != len(s.plan.Nodes)
}

// TerminalImpression returns the single impression key produced by the
// terminal node — the spec's "single impression key" contract.
func (s *State) TerminalImpression() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outs := s.nodeOutputs[s.plan.TerminalNode]
	if len(outs) == 0 {
		return "", false
	}
	return outs[0], true
}

// StepCounter returns the current step counter value.
func (s *State) StepCounter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCounter
}

// InDegree returns the current in-degree of id, for tests and invariant checks.
func (s *State) InDegree(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inDegree[id]
}
