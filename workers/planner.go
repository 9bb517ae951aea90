package workers

import (
	"context"
	"fmt"

	"github.com/meridianlabs/ioa/graph"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
)

// plannerSystemPrompt asks the model for a plan expressed exactly in the
// external plan YAML contract (graph.nodes/edges/entry_nodes/terminal_node).
const plannerSystemPrompt = `You are a planning agent. Given a user query, emit a YAML execution plan with this exact shape:

graph:
  nodes: [{id, type}]
  edges: [{from, to}]
  entry_nodes: [id]
  terminal_node: id

Valid node types: PLANNER, RETRIEVE, SCOUT, SEMANTICS, CODER, COMPUTE, REASON, SYNTHESIZE, VALIDATE, SPEAKER, CONDUCTOR, STRATEGIST.
Respond with YAML only, no commentary.`

// NewPlanner returns a Planner worker: it reads the original query and
// asks the model for a YAML plan, validating it parses to a DAG before
// replying. The reply's goal_type is PLAN, per §4.5's conductor routing.
func NewPlanner(model string, llm *llmclient.Client) Task {
	return func(ctx context.Context, goal messages.AgentGoal, store *memory.Store, requestID, stepID string) ([]string, error) {
		query, _ := store.Get(memory.QueryKey(requestID))

		reply, err := llm.Chat(ctx, model, []llmclient.Message{
			{Role: "system", Content: plannerSystemPrompt},
			{Role: "user", Content: query},
		}, llmclient.ChatOptions{Temperature: 0.2})
		if err != nil {
			return nil, fmt.Errorf("planner llm call failed: %w", err)
		}

		if _, err := graph.ParsePlan(reply); err != nil {
			return nil, fmt.Errorf("planner produced an invalid plan: %w", err)
		}

		const impression = "plan"
		store.Set(memory.ImpressionKey(requestID, stepID, impression), reply)
		return []string{impression}, nil
	}
}
