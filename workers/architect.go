package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/textutil"
)

const (
	architectChunkSize       = 2000
	architectChunkOverlap    = 200
	architectContextMaxChars = 8000
	architectMaxCondense     = 3
)

// NewArchitect returns an Architect (Synthesizer) worker: map-reduce
// synthesis over the documents produced upstream (Scout/Retrieve),
// bounded-recursion condensing, and a final synthesis prompt.
//
// Per-chunk LLM failures are logged and skipped rather than aborting
// the whole request — partial context beats no context, per §7's
// policy for the Architect specifically.
func NewArchitect(model string, llm *llmclient.Client, logger core.Logger) Task {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return func(ctx context.Context, goal messages.AgentGoal, store *memory.Store, requestID, stepID string) ([]string, error) {
		originalQuery, _ := store.Get(memory.QueryKey(requestID))
		if originalQuery == "" {
			return nil, fmt.Errorf("architect could not find the original query")
		}

		documents := InputImpressions(store, goal.Content)

		var docSummaries []string
		var chunkFailures int
		for _, doc := range documents {
			summary, failures := summarizeDocument(ctx, llm, model, originalQuery, doc)
			chunkFailures += failures
			if summary != "" {
				docSummaries = append(docSummaries, summary)
			}
		}
		if chunkFailures > 0 {
			logger.WarnWithContext(ctx, "architect tolerated per-chunk failures", map[string]interface{}{"request_id": requestID, "failures": chunkFailures})
		}

		answer := "Insufficient information gathered to form an answer."
		if len(docSummaries) > 0 {
			context := strings.Join(docSummaries, "\n\n---\n\n")
			condensed, truncated := condense(ctx, llm, model, originalQuery, context)
			if truncated {
				logger.WarnWithContext(ctx, "architect hard-truncated context after exhausting condense attempts", map[string]interface{}{"request_id": requestID})
			}

			finalReply, err := llm.Chat(ctx, model, []llmclient.Message{
				{Role: "system", Content: "Answer the user's question using only the provided context. Respond with the answer only."},
				{Role: "user", Content: fmt.Sprintf("Question: %s\n\nContext:\n%s", originalQuery, condensed)},
			}, llmclient.ChatOptions{Temperature: 0.2})
			if err != nil {
				return nil, fmt.Errorf("architect final synthesis failed: %w", err)
			}
			answer = finalReply
		}

		const impression = "final_answer"
		store.Set(memory.ImpressionKey(requestID, stepID, impression), answer)
		return []string{impression}, nil
	}
}

// summarizeDocument splits doc into overlapping chunks and maps each
// through a per-chunk summarization prompt, joining the results. Chunks
// whose LLM call fails are skipped; the returned failure count lets the
// caller decide whether to log.
func summarizeDocument(ctx context.Context, llm *llmclient.Client, model, query, doc string) (string, int) {
	chunks := textutil.SplitChunks(doc, architectChunkSize, architectChunkOverlap)
	var summaries []string
	failures := 0
	for _, chunk := range chunks {
		reply, err := llm.Chat(ctx, model, []llmclient.Message{
			{Role: "system", Content: "Extract only the information in this passage relevant to the question. Respond with the extract only, or an empty response if nothing is relevant."},
			{Role: "user", Content: fmt.Sprintf("Question: %s\n\nPassage:\n%s", query, chunk)},
		}, llmclient.ChatOptions{Temperature: 0.0})
		if err != nil {
			failures++
			continue
		}
		if reply != "" {
			summaries = append(summaries, reply)
		}
	}
	return strings.Join(summaries, "\n"), failures
}

// condense recursively reduces context until it is at or under
// architectContextMaxChars, bounded by architectMaxCondense rounds.
// Exceeding the bound yields a hard character truncation rather than
// indefinite recursion.
func condense(ctx context.Context, llm *llmclient.Client, model, query, context string) (string, bool) {
	for attempt := 0; attempt < architectMaxCondense && len([]rune(context)) > architectContextMaxChars; attempt++ {
		summary, _ := summarizeDocument(ctx, llm, model, query, context)
		if summary == "" {
			break
		}
		context = summary
	}
	runes := []rune(context)
	if len(runes) > architectContextMaxChars {
		return string(runes[:architectContextMaxChars]), true
	}
	return context, false
}
