package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSendsDocument(t *testing.T) {
	var gotPath string
	var gotBody upsertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.Upsert(context.Background(), Document{ID: "doc-1", Text: "hello", Metadata: map[string]string{"url": "https://example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "/upsert", gotPath)
	assert.Equal(t, "doc-1", gotBody.ID)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestQueryReturnsDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		_ = json.NewEncoder(w).Encode(queryResponse{Documents: []Document{
			{ID: "doc-1", Text: "hello"},
			{ID: "doc-2", Text: "world"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	docs, err := c.Query(context.Background(), "greeting", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-1", docs[0].ID)
}

func TestDeleteNonExistentIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.Delete(context.Background(), "missing-id")
	require.NoError(t, err)
}

func TestNon2xxReturnsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetByMetadata(context.Background(), map[string]string{"url": "https://example.com"})
	require.Error(t, err)
}
