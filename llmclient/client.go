// Package llmclient is the chat + embeddings HTTP client, speaking the
// Ollama-shaped contract named in the external interfaces section.
// Grounded on the teacher's ai/client.go request/response shape,
// adapted to this repository's wire format instead of the teacher's
// OpenAI-chat-completions shape.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/resilience"
)

// ChatOptions configures one chat call.
type ChatOptions struct {
	Temperature float64
	NumPredict  int
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string     `json:"model"`
	Messages []Message  `json:"messages"`
	Stream   bool       `json:"stream"`
	Options  chatOption `json:"options"`
}

type chatOption struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Client is a per-agent-type configured LLM client: each agent type can
// be pointed at a different model while sharing one HTTP transport.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *resilience.CircuitBreaker
	logger  core.Logger
}

// New returns a Client against baseURL (e.g. OLLAMA_BASE_URL), with the
// spec's 300s LLM call upper bound and a circuit breaker guarding
// repeated failures.
func New(baseURL string, logger core.Logger) (*Client, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("llmclient")
	}
	cbCfg := resilience.DefaultConfig()
	cbCfg.Name = "llmclient"
	cb, err := resilience.NewCircuitBreaker(cbCfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 300 * time.Second},
		cb:      cb,
		logger:  logger,
	}, nil
}

// Chat sends a chat completion request for model with messages,
// returning the assistant's reply content.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	req := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: chatOption{
			Temperature: opts.Temperature,
			NumPredict:  opts.NumPredict,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var out chatResponse
	err = c.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			return c.post(ctx, "/api/chat", body, &out)
		})
	})
	if err != nil {
		c.logger.ErrorWithContext(ctx, "llm chat failed", map[string]interface{}{"model": model, "error": err.Error()})
		return "", fmt.Errorf("%w: chat call failed: %v", core.ErrTransport, err)
	}
	return out.Message.Content, nil
}

// Embed returns the embedding vector for prompt under model.
func (c *Client) Embed(ctx context.Context, model, prompt string) ([]float64, error) {
	req := embeddingsRequest{Model: model, Prompt: prompt}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var out embeddingsResponse
	err = resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		return c.post(ctx, "/api/embeddings", body, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings call failed: %v", core.ErrTransport, err)
	}
	return out.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", core.ErrTransport, resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
