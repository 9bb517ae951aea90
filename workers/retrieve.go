package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/vectorstore"
)

const retrieveTopK = 5

// NewRetrieve returns a Retrieve worker: queries the vector store for
// the top-k documents most similar to the request's query.
func NewRetrieve(store *vectorstore.Client) Task {
	return func(ctx context.Context, goal messages.AgentGoal, mem *memory.Store, requestID, stepID string) ([]string, error) {
		query, _ := mem.Get(memory.QueryKey(requestID))
		if query == "" {
			return nil, fmt.Errorf("retrieve received an empty query")
		}

		docs, err := store.Query(ctx, query, retrieveTopK)
		if err != nil {
			return nil, fmt.Errorf("retrieve vector store query failed: %w", err)
		}

		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Text
		}

		encoded, err := json.Marshal(texts)
		if err != nil {
			return nil, err
		}

		const impression = "retrieved_context"
		mem.Set(memory.ImpressionKey(requestID, stepID, impression), string(encoded))
		return []string{impression}, nil
	}
}
