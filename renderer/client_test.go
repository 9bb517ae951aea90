package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReturnsBodyAndHrefs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com", req.URL)
		_ = json.NewEncoder(w).Encode(Result{
			URL:   req.URL,
			Body:  "hello world",
			Hrefs: []string{"https://example.com/a", "https://example.com/b"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result := c.Render(context.Background(), "https://example.com", 5*time.Second)
	assert.Equal(t, "hello world", result.Body)
	assert.Len(t, result.Hrefs, 2)
}

func TestRenderOnNon2xxReturnsEmptyBodyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result := c.Render(context.Background(), "https://example.com", time.Second)
	assert.Equal(t, "https://example.com", result.URL)
	assert.Empty(t, result.Body)
	assert.Nil(t, result.Hrefs)
}

func TestRenderOnUnreachableServerReturnsEmptyBody(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	result := c.Render(context.Background(), "https://example.com", 500*time.Millisecond)
	assert.Equal(t, "https://example.com", result.URL)
	assert.Empty(t, result.Body)
}
