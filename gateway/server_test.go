package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/messages"
)

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func newTestServer(t *testing.T, reply string) (*Server, *Gateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gw, b := newTestGateway(t, reply)
	require.NoError(t, b.Register("conductor", func(ctx context.Context, msg interface{}) error { return nil }))
	return NewServer(gw), gw
}

func TestHandleQueryMintsRequestIDAndReturnsPending(t *testing.T) {
	s, _ := newTestServer(t, "unused")

	req := httptest.NewRequest("POST", "/api/query", jsonBody(t, map[string]string{"text": "what is 2+2?"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, StatusPending, body["status"])
}

func TestHandleGetStatusUnknownReturns404(t *testing.T) {
	s, _ := newTestServer(t, "unused")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/get_status/nope", nil))

	assert.Equal(t, 404, w.Code)
}

func TestHandleGetStatusReturnsDoneTextAfterFinalize(t *testing.T) {
	s, gw := newTestServer(t, "narrated final answer")
	ctx := context.Background()

	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))
	require.NoError(t, gw.handleResponse(ctx, messages.Response{RequestID: "req1", Content: "4", Type: -1}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/get_status/req1", nil))

	require.Equal(t, 200, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusDone, body["status"])
	assert.Equal(t, "narrated final answer", body["text"])
}

func TestHandleSubmitForwardsUserQueryUnderGivenID(t *testing.T) {
	s, gw := newTestServer(t, "unused")

	req := httptest.NewRequest("POST", "/submit", jsonBody(t, map[string]string{"text": "hello", "request_id": "ext-1"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	status, _, ok := gw.GetStatus("ext-1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, status)
}

func TestHandleStreamResultReplaysFinalEventWhenAlreadyDone(t *testing.T) {
	s, gw := newTestServer(t, "narrated final answer")
	ctx := context.Background()
	require.NoError(t, gw.Submit(ctx, "req1", "what is 2+2?"))
	require.NoError(t, gw.handleResponse(ctx, messages.Response{RequestID: "req1", Content: "4", Type: -1}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/stream_result/req1", nil))

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "narrated final answer")
	assert.Contains(t, w.Body.String(), StatusDone)
}

func TestHandleResultAppendsViaHTTPContract(t *testing.T) {
	s, _ := newTestServer(t, "unused")

	req := httptest.NewRequest("POST", "/api/result", jsonBody(t, map[string]interface{}{"text": "chunk one", "request_id": "ext-2", "type": -1}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
}
