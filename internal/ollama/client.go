package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/pders01/trace/internal/embeddings"
	"github.com/pders01/trace/internal/llm"
)

const (
	// DefaultModel is the recommended embedding model
	DefaultModel = "nomic-embed-text"
	// DefaultURL is the default Ollama API endpoint
	DefaultURL = "http://localhost:11434"
)

// Client wraps the Ollama API client for a single model
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a new Ollama client bound to url and model
func NewClient(rawURL, model string) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama url %q: %w", rawURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama url %q must include scheme and host", rawURL)
	}

	return &Client{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}, nil
}

// IsAvailable checks if Ollama is running and accessible
func IsAvailable(url string) bool {
	if url == "" {
		url = DefaultURL
	}

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// GenerateEmbedding generates an embedding vector for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	req := &api.EmbedRequest{
		Model: c.model,
		Input: text,
	}

	resp, err := c.client.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := embeddings.FromFloat32(resp.Embeddings[0])
	if err := embeddings.ValidateEmbedding(vec); err != nil {
		return nil, fmt.Errorf("invalid embedding from %s: %w", c.model, err)
	}
	return vec, nil
}

// Complete sends a single non-streaming chat request and returns the
// assistant message
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	stream := false
	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	chat := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.JSON {
		chat.Format = json.RawMessage(`"json"`)
	}

	var out strings.Builder
	err := c.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var status api.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return "", llm.NewPermanentError(fmt.Errorf("model %s not found: %w", c.model, err))
		}
		return "", fmt.Errorf("chat with %s failed: %w", c.model, err)
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("empty response from %s", c.model)
	}
	return text, nil
}

// CheckModel checks if the specified model is available
func (c *Client) CheckModel(ctx context.Context) error {
	listResp, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range listResp.Models {
		if sameModel(model.Name, c.model) || sameModel(model.Model, c.model) {
			return nil
		}
	}

	return fmt.Errorf("model '%s' not found - run: ollama pull %s", c.model, c.model)
}

// Name returns the model being used
func (c *Client) Name() string {
	return c.model
}

// sameModel treats an untagged name as :latest, the way ollama resolves it
func sameModel(have, want string) bool {
	if have == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}
	return false
}
