package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianlabs/ioa/llmclient"
)

const speakerSystemPrompt = `You turn a synthesized answer into a clear, conversational markdown reply for the user who asked the original question below. Never wrap your reply in a code fence and never emit raw JSON.`

const failureSystemPrompt = `The system was unable to answer the user's question below. Write a brief, graceful markdown message acknowledging this and suggesting how the user might refine their question. Never wrap your reply in a code fence and never emit raw JSON.`

const retryInstruction = "\n\nSYSTEM ALERT: the previous reply was rejected for containing a code fence or raw JSON. Respond again with plain markdown prose only."

const formattingFallback = "I apologize, but I am having trouble formatting the answer correctly. Please try again."

// narrate turns data (the graph's synthesized content; not used when
// failure is set) into a user-facing markdown reply via the llm,
// retrying once if the reply looks like JSON or a code fence. Grounded
// on original_source/src/agents/gateway.py's process_cognition_stack
// strict-validation-then-retry loop.
func (g *Gateway) narrate(ctx context.Context, query, data string, failure bool) (string, error) {
	system := speakerSystemPrompt
	user := fmt.Sprintf("Original question: %s\n\nSynthesized answer: %s", query, data)
	if failure {
		system = failureSystemPrompt
		user = fmt.Sprintf("Original question: %s", query)
	}

	reply, err := g.llm.Chat(ctx, g.model, []llmclient.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, llmclient.ChatOptions{Temperature: 0.3})
	if err != nil {
		return "", err
	}

	if looksMalformed(reply) {
		retryReply, err := g.llm.Chat(ctx, g.model, []llmclient.Message{
			{Role: "system", Content: system + retryInstruction},
			{Role: "user", Content: user},
		}, llmclient.ChatOptions{Temperature: 0.3})
		if err != nil {
			return "", err
		}
		if looksMalformed(retryReply) {
			g.logger.Warn("speaker failed to produce valid markdown after retry", map[string]interface{}{})
			return formattingFallback, nil
		}
		return retryReply, nil
	}

	return reply, nil
}

func looksMalformed(reply string) bool {
	stripped := strings.TrimSpace(reply)
	return strings.HasPrefix(stripped, "```") || strings.HasPrefix(stripped, "{") || strings.HasPrefix(stripped, "[")
}
