package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/messages"
)

func newTestLLMServer(t *testing.T, reply string) *llmclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": reply},
		})
	}))
	t.Cleanup(srv.Close)

	client, err := llmclient.New(srv.URL, nil)
	require.NoError(t, err)
	return client
}

func newTestGateway(t *testing.T, reply string) (*Gateway, *bus.InProcessBus) {
	t.Helper()
	b := bus.NewInProcessBus()
	llm := newTestLLMServer(t, reply)
	gw := New("gateway", "conductor", b, llm, "llama3", "", nil)
	require.NoError(t, gw.Register(context.Background()))
	return gw, b
}

func TestSubmitSendsUserQueryAndRecordsPendingStatus(t *testing.T) {
	gw, b := newTestGateway(t, "narrated answer")
	ctx := context.Background()

	var received messages.UserQuery
	require.NoError(t, b.Register("conductor", func(ctx context.Context, msg interface{}) error {
		received = msg.(messages.UserQuery)
		return nil
	}))

	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))

	assert.Equal(t, "req1", received.RequestID)
	assert.Equal(t, "what is 2+2?", received.Text)

	status, _, ok := gw.GetStatus("req1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, status)
}

func TestHandleResponseNarratesSuccessAndMarksDone(t *testing.T) {
	gw, b := newTestGateway(t, "here is your narrated answer")
	ctx := context.Background()
	require.NoError(t, b.Register("conductor", func(ctx context.Context, msg interface{}) error { return nil }))

	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))
	require.NoError(t, b.Send(ctx, "gateway", messages.Response{RequestID: "req1", Content: "4", Type: -1}))

	status, text, ok := gw.GetStatus("req1")
	require.True(t, ok)
	assert.Equal(t, StatusDone, status)
	assert.Equal(t, "here is your narrated answer", text)
}

func TestHandleResponseNarratesFailureAndMarksFailed(t *testing.T) {
	gw, b := newTestGateway(t, "sorry, please try rephrasing your question")
	ctx := context.Background()
	require.NoError(t, b.Register("conductor", func(ctx context.Context, msg interface{}) error { return nil }))

	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))
	require.NoError(t, b.Send(ctx, "gateway", messages.Response{RequestID: "req1", Content: "boom", Type: messages.ResponseFailure}))

	status, text, ok := gw.GetStatus("req1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, "sorry, please try rephrasing your question", text)
}

func TestHandleResponseRetriesOnMalformedReply(t *testing.T) {
	gw, b := newTestGateway(t, `{"not": "markdown"}`)
	ctx := context.Background()
	require.NoError(t, b.Register("conductor", func(ctx context.Context, msg interface{}) error { return nil }))

	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))
	require.NoError(t, b.Send(ctx, "gateway", messages.Response{RequestID: "req1", Content: "4", Type: -1}))

	_, text, ok := gw.GetStatus("req1")
	require.True(t, ok)
	assert.Equal(t, formattingFallback, text, "fake llm always returns malformed JSON, so both attempts fail and the gateway must fall back")
}

func TestGetStatusUnknownRequestReturnsNotOK(t *testing.T) {
	gw, _ := newTestGateway(t, "unused")
	_, _, ok := gw.GetStatus("never-submitted")
	assert.False(t, ok)
}

func TestMarkAbandonedSurfacesFailedStatus(t *testing.T) {
	gw, _ := newTestGateway(t, "unused")

	gw.MarkAbandoned("req-from-before-restart")

	status, text, ok := gw.GetStatus("req-from-before-restart")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status)
	assert.Empty(t, text)
}

func TestSubscribeDeliversIncrementalEvents(t *testing.T) {
	gw, b := newTestGateway(t, "final narrated text")
	ctx := context.Background()
	require.NoError(t, b.Register("conductor", func(ctx context.Context, msg interface{}) error { return nil }))
	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))

	ch, cancel, ok := gw.Subscribe("req1")
	require.True(t, ok)
	defer cancel()

	require.NoError(t, b.Send(ctx, "gateway", messages.Response{RequestID: "req1", Content: "4", Type: -1}))

	event := <-ch
	assert.Equal(t, StatusDone, event.Status)
	assert.Equal(t, "final narrated text", event.Text)
}
