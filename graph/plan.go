// Package graph implements the per-request execution graph: YAML plan
// parsing and validation, and Kahn's-algorithm-based dispatch state.
// Grounded on the teacher's orchestration/workflow_dag.go (cycle
// detection, topological structure) and on the original source's
// GraphExecutionManager (execution queue, node_outputs, step_counter).
package graph

import (
	"fmt"
	"sort"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/messages"
	"gopkg.in/yaml.v3"
)

// Node is one node of a plan: an id and an agent type.
type Node struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// Edge is a directed dependency from one node to another.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// graphDef is the wire shape nested under the "graph" key.
type graphDef struct {
	Nodes        []Node   `yaml:"nodes"`
	Edges        []Edge   `yaml:"edges"`
	EntryNodes   []string `yaml:"entry_nodes"`
	TerminalNode string   `yaml:"terminal_node"`
}

type planDoc struct {
	Graph graphDef `yaml:"graph"`
}

// Plan is a parsed and validated execution graph.
type Plan struct {
	Nodes        map[string]Node
	Edges        []Edge // sorted lexicographically by (From, To)
	EntryNodes   []string
	TerminalNode string
}

// ParsePlan parses YAML plan content and validates it as a DAG with a
// reachable terminal node. Invalid plans return an error wrapping
// core.ErrValidation, which callers treat identically to a worker
// FAILED per the error handling design.
func ParsePlan(yamlContent string) (*Plan, error) {
	var doc planDoc
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		return nil, core.NewFrameworkError("graph.ParsePlan", "validation", fmt.Errorf("%w: %v", core.ErrValidation, err))
	}

	nodes := make(map[string]Node, len(doc.Graph.Nodes))
	for _, n := range doc.Graph.Nodes {
		if !messages.AgentType(n.Type).Valid() {
			return nil, validationErr("unknown node type %q for node %q", n.Type, n.ID)
		}
		nodes[n.ID] = n
	}

	for _, e := range doc.Graph.Edges {
		if _, ok := nodes[e.From]; !ok {
			return nil, validationErr("edge references unknown node %q", e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, validationErr("edge references unknown node %q", e.To)
		}
	}
	for _, id := range doc.Graph.EntryNodes {
		if _, ok := nodes[id]; !ok {
			return nil, validationErr("entry_nodes references unknown node %q", id)
		}
	}
	if doc.Graph.TerminalNode == "" {
		return nil, validationErr("terminal_node is required")
	}
	if _, ok := nodes[doc.Graph.TerminalNode]; !ok {
		return nil, validationErr("terminal_node references unknown node %q", doc.Graph.TerminalNode)
	}

	// Sort edges lexicographically by (from, to) — resolves the spec's
	// determinism open question for Go's unordered maps.
	edges := append([]Edge(nil), doc.Graph.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	p := &Plan{
		Nodes:        nodes,
		Edges:        edges,
		EntryNodes:   doc.Graph.EntryNodes,
		TerminalNode: doc.Graph.TerminalNode,
	}

	if err := p.validateDAG(); err != nil {
		return nil, err
	}
	if !p.terminalReachable() {
		return nil, validationErr("terminal_node %q is not reachable from any entry node", p.TerminalNode)
	}
	return p, nil
}

func validationErr(format string, args ...interface{}) error {
	return core.NewFrameworkError("graph.ParsePlan", "validation",
		fmt.Errorf("%w: %s", core.ErrValidation, fmt.Sprintf(format, args...)))
}

func (p *Plan) adjacency() map[string][]string {
	adj := make(map[string][]string, len(p.Nodes))
	for _, e := range p.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// validateDAG runs DFS cycle detection over the node set.
func (p *Plan) validateDAG() error {
	adj := p.adjacency()
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return validationErr("cycle detected involving node %q", next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(p.Nodes))
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Plan) terminalReachable() bool {
	adj := p.adjacency()
	visited := make(map[string]bool)
	var stack []string
	stack = append(stack, p.EntryNodes...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		if id == p.TerminalNode {
			return true
		}
		stack = append(stack, adj[id]...)
	}
	return false
}
