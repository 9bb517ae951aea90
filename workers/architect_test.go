package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
)

func newRoutingLLMClient(t *testing.T) *llmclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []llmclient.Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		reply := "extracted relevant fact"
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "Answer the user's question") {
			reply = "4\n"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": reply},
		})
	}))
	t.Cleanup(srv.Close)
	client, err := llmclient.New(srv.URL, &core.NoOpLogger{})
	require.NoError(t, err)
	return client
}

func TestArchitectSynthesizesRawAnswer(t *testing.T) {
	llm := newRoutingLLMClient(t)
	store := memory.New()
	store.Set(memory.QueryKey("req1"), "what is 2+2?")
	store.Set("req1:s0:doc1", "two plus two equals four, a basic arithmetic fact")

	task := NewArchitect("test-model", llm, nil)
	impressions, err := task(context.Background(), messages.AgentGoal{RequestID: "req1", Content: "req1:s0:doc1"}, store, "req1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"final_answer"}, impressions)

	v, ok := store.Get("req1:s1:final_answer")
	require.True(t, ok)
	assert.Equal(t, "4\n", v, "final_answer must be the raw string, not JSON-encoded")
}

func TestArchitectWithNoDocumentsReturnsFallback(t *testing.T) {
	llm := newRoutingLLMClient(t)
	store := memory.New()
	store.Set(memory.QueryKey("req1"), "what is 2+2?")

	task := NewArchitect("test-model", llm, nil)
	impressions, err := task(context.Background(), messages.AgentGoal{RequestID: "req1", Content: "req1:s0:missing"}, store, "req1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"final_answer"}, impressions)

	v, ok := store.Get("req1:s1:final_answer")
	require.True(t, ok)
	assert.Equal(t, "Insufficient information gathered to form an answer.", v)
}

func TestArchitectRequiresOriginalQuery(t *testing.T) {
	llm := newRoutingLLMClient(t)
	store := memory.New()

	task := NewArchitect("test-model", llm, nil)
	_, err := task(context.Background(), messages.AgentGoal{RequestID: "req1", Content: ""}, store, "req1", "s1")
	assert.Error(t, err)
}
