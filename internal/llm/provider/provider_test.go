package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/llm"
)

type recorder struct {
	model string
	req   llm.Request
	fails int
	calls int
}

func (r *recorder) Name() string { return r.model }

func (r *recorder) Complete(_ context.Context, req llm.Request) (string, error) {
	r.calls++
	r.req = req
	if r.calls <= r.fails {
		return "", errors.New("temporarily unavailable")
	}
	return "ok", nil
}

func TestFactoryAppliesRoleSettings(t *testing.T) {
	cfg := config.Default()
	rec := &recorder{fails: 1}
	f := NewFactory(cfg, nil).WithBuilder(func(_ context.Context, _ *config.Config, model string) (llm.Completer, error) {
		rec.model = model
		return rec, nil
	})

	c, err := f.Completer(context.Background(), config.RoleAuditor)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), llm.Request{Prompt: "review", Temperature: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "gemma3:27b-cloud", rec.model)
	assert.Equal(t, 0.0, rec.req.Temperature)
	assert.Equal(t, 2, rec.calls)
}

func TestFactoryUnknownRole(t *testing.T) {
	f := NewFactory(config.Default(), nil)
	_, err := f.Completer(context.Background(), "scribe")
	assert.ErrorIs(t, err, config.ErrUnknownRole)
}

func TestBackendSelection(t *testing.T) {
	cfg := config.Default()

	c, err := Backend(context.Background(), cfg, "ministral-3:14b-cloud")
	require.NoError(t, err)
	assert.Equal(t, "ministral-3:14b-cloud", c.Name())

	cfg.Provider = "openai"
	_, err = Backend(context.Background(), cfg, "x")
	assert.ErrorIs(t, err, config.ErrInvalidProvider)
}
