package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/renderer"
	"github.com/meridianlabs/ioa/textutil"
)

const (
	scoutSearchDepth   = 3
	scoutRenderTimeout = 15 * time.Second
)

// TextFilter narrows rendered page text down to query-relevant content.
// NewScout treats a nil filter as PassThroughFilter, which keeps the base
// contract in spec §4.6 unchanged. PassThroughFilter is the only
// TextFilter in this repository; both binaries wire it in.
type TextFilter func(ctx context.Context, query, text string) (string, error)

// PassThroughFilter returns text unchanged — the default when no
// filtering stage is wired in.
func PassThroughFilter(ctx context.Context, query, text string) (string, error) {
	return text, nil
}

// NewScout returns a Scout worker: query rewrite, web search, concurrent
// render, clean-text extraction, and an optional filter pass.
func NewScout(model string, llm *llmclient.Client, search Searcher, render *renderer.Client, filter TextFilter) Task {
	if filter == nil {
		filter = PassThroughFilter
	}
	return func(ctx context.Context, goal messages.AgentGoal, store *memory.Store, requestID, stepID string) ([]string, error) {
		query, _ := store.Get(memory.QueryKey(requestID))
		if query == "" {
			return nil, fmt.Errorf("scout received an empty search query")
		}

		rewritten, err := llm.Chat(ctx, model, []llmclient.Message{
			{Role: "system", Content: "Rewrite the user's question as a concise web search query. Respond with the query only."},
			{Role: "user", Content: query},
		}, llmclient.ChatOptions{Temperature: 0.0})
		if err != nil || rewritten == "" {
			rewritten = query
		}

		urls, err := search(ctx, rewritten, scoutSearchDepth)
		if err != nil {
			return nil, fmt.Errorf("scout web search failed: %w", err)
		}

		bodies := make([]string, len(urls))
		var wg sync.WaitGroup
		for i, u := range urls {
			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				bodies[i] = render.Render(ctx, u, scoutRenderTimeout).Body
			}(i, u)
		}
		wg.Wait()

		var cleanTexts []string
		for _, body := range bodies {
			if body == "" {
				continue
			}
			text := textutil.ExtractText(body)
			if text == "" {
				continue
			}
			filtered, err := filter(ctx, query, text)
			if err != nil || filtered == "" {
				continue
			}
			cleanTexts = append(cleanTexts, filtered)
		}

		encoded, err := json.Marshal(cleanTexts)
		if err != nil {
			return nil, err
		}

		const impression = "clean_text_bodies"
		store.Set(memory.ImpressionKey(requestID, stepID, impression), string(encoded))
		return []string{impression}, nil
	}
}
