package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	genai "google.golang.org/genai"

	"github.com/pders01/trace/internal/llm"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// ErrNoCandidates is returned when the API answers without any text part
var ErrNoCandidates = errors.New("gemini returned no candidates")

// Client is a thin wrapper around the genai client bound to one model.
// Retries, timeouts and logging are applied via llm middleware.
type Client struct {
	cli   *genai.Client
	model string
}

// NewClient creates a Gemini client. An empty apiKey falls back to
// GEMINI_API_KEY from the environment.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	return newClient(ctx, apiKey, model, "")
}

func newClient(ctx context.Context, apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set (gemini.api_key or GEMINI_API_KEY)")
	}
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{cli: cli, model: model}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

// Complete sends a single GenerateContent call
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	temp := float32(req.Temperature)
	gc := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		gc,
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && isPermanent(apiErr.Code) {
			return "", llm.NewPermanentError(fmt.Errorf("gemini %s: %w", c.model, err))
		}
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoCandidates
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrNoCandidates
	}
	return text, nil
}

// Bad requests, auth failures and unknown models will not succeed on retry
func isPermanent(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
