package workers

import (
	"context"
	"fmt"

	"github.com/meridianlabs/ioa/graph"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
)

const strategistSystemPrompt = `You are a planning critic. Given a candidate execution plan (YAML) and nothing else, either return it unchanged if it is sound, or return a corrected version fixing any missing edges, unreachable terminal node, or redundant steps. Respond with YAML only, no commentary, in the exact same shape you were given.`

// NewStrategist returns a Strategist (plan critique) worker: a
// supplemented, optional role grounded on
// original_source/src/agents/strategist.py. It is only ever invoked by
// the Conductor's optional round-trip (see orchestrator.Conductor) —
// registering no STRATEGIST agent skips this step entirely and the
// base planning scenarios are unaffected.
func NewStrategist(model string, llm *llmclient.Client) Task {
	return func(ctx context.Context, goal messages.AgentGoal, store *memory.Store, requestID, stepID string) ([]string, error) {
		planYAML, ok := store.Get(goal.Content)
		if !ok {
			return nil, fmt.Errorf("strategist could not find the candidate plan at key %q", goal.Content)
		}

		reply, err := llm.Chat(ctx, model, []llmclient.Message{
			{Role: "system", Content: strategistSystemPrompt},
			{Role: "user", Content: planYAML},
		}, llmclient.ChatOptions{Temperature: 0.0})
		if err != nil {
			return nil, fmt.Errorf("strategist llm call failed: %w", err)
		}

		if _, err := graph.ParsePlan(reply); err != nil {
			return nil, fmt.Errorf("strategist produced an invalid plan: %w", err)
		}

		const impression = "revised_plan"
		store.Set(memory.ImpressionKey(requestID, stepID, impression), reply)
		return []string{impression}, nil
	}
}
