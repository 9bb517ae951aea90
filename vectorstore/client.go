// Package vectorstore is a thin REST client over the external vector
// database named only at its interface by the spec (upsert / query /
// delete / get-by-metadata). Grounded on the teacher's ai/providers
// request/response pattern — one struct per call, JSON over net/http —
// narrowed to the four operations this repository's Retrieve worker and
// crawler chunk pipeline actually need.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meridianlabs/ioa/core"
)

// Document is one chunk stored in or returned from the vector store.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Client talks to CHROMA_URL's REST surface.
type Client struct {
	baseURL string
	http    *http.Client
	logger  core.Logger
}

// New returns a Client against baseURL (e.g. CHROMA_URL).
func New(baseURL string, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("vectorstore")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type upsertRequest struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Upsert inserts or replaces one document, keyed by id.
func (c *Client) Upsert(ctx context.Context, doc Document) error {
	body, err := json.Marshal(upsertRequest{ID: doc.ID, Text: doc.Text, Metadata: doc.Metadata})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/upsert", body, nil)
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Documents []Document `json:"documents"`
}

// Query returns the topK documents most similar to query.
func (c *Client) Query(ctx context.Context, query string, topK int) ([]Document, error) {
	body, err := json.Marshal(queryRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	var out queryResponse
	if err := c.do(ctx, http.MethodPost, "/query", body, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

type deleteRequest struct {
	ID string `json:"id"`
}

// Delete removes the document with the given id. Deleting a document
// that no longer exists is not an error.
func (c *Client) Delete(ctx context.Context, id string) error {
	body, err := json.Marshal(deleteRequest{ID: id})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/delete", body, nil)
}

type getByMetadataRequest struct {
	Metadata map[string]string `json:"metadata"`
}

type getByMetadataResponse struct {
	Documents []Document `json:"documents"`
}

// GetByMetadata returns every document whose metadata matches filter exactly.
func (c *Client) GetByMetadata(ctx context.Context, filter map[string]string) ([]Document, error) {
	body, err := json.Marshal(getByMetadataRequest{Metadata: filter})
	if err != nil {
		return nil, err
	}
	var out getByMetadataResponse
	if err := c.do(ctx, http.MethodPost, "/get", body, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("vectorstore request failed", map[string]interface{}{"path": path, "error": err.Error()})
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: vectorstore %s returned status %d", core.ErrTransport, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
