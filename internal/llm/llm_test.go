package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	replies []string
	errs    []error
	calls   int
	last    Request
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(ctx context.Context, req Request) (string, error) {
	i := s.calls
	s.calls++
	s.last = req
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func TestRetryRecovers(t *testing.T) {
	stub := &stubCompleter{
		replies: []string{"", "ok"},
		errs:    []error{errors.New("connection refused"), nil},
	}
	c := Chain(stub, Retry(3, time.Millisecond))

	out, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, stub.calls)
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("model overloaded")
	stub := &stubCompleter{errs: []error{boom, boom, boom}}
	c := Chain(stub, Retry(3, time.Millisecond))

	_, err := c.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletion)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, stub.calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	stub := &stubCompleter{errs: []error{NewPermanentError(errors.New("invalid api key")), nil}}
	c := Chain(stub, Retry(5, time.Millisecond))

	_, err := c.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletion)
	assert.Equal(t, 1, stub.calls)
}

func TestRetryHonorsCancellation(t *testing.T) {
	stub := &stubCompleter{errs: []error{errors.New("a"), errors.New("b")}}
	c := Chain(stub, Retry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Complete(ctx, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.calls)
}

type slowCompleter struct{}

func (slowCompleter) Name() string { return "slow" }

func (slowCompleter) Complete(ctx context.Context, _ Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	c := Chain(slowCompleter{}, Retry(1, time.Millisecond), WithTimeout(5*time.Millisecond))

	_, err := c.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrCompletion)
}

func TestChainPassesRequestThrough(t *testing.T) {
	stub := &stubCompleter{replies: []string{"done"}}
	c := Chain(stub, WithLogging(nil, "author"), WithTimeout(time.Second), Retry(1, 0))

	req := Request{System: "sys", Prompt: "p", Temperature: 0.7, JSON: true}
	out, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, req, stub.last)
	assert.Equal(t, "stub", c.Name())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Status string `json:"status"`
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare object", raw: `{"status":"approved"}`, want: "approved"},
		{name: "fenced", raw: "```json\n{\"status\":\"rejected\"}\n```", want: "rejected"},
		{name: "prose around", raw: "Here you go: {\"status\":\"approved\"} hope it helps", want: "approved"},
		{name: "no object", raw: "APPROVED", wantErr: true},
		{name: "broken object", raw: `{"status": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := DecodeJSON(tt.raw, &p)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Status)
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "plain", StripFences("  plain \n"))
	assert.Equal(t, "Test Case ID: TC_NEW_1", StripFences("```text\nTest Case ID: TC_NEW_1\n```"))
	assert.Equal(t, "a\nb", StripFences("```\na\nb\n```"))
}

func TestWithTemperature(t *testing.T) {
	stub := &stubCompleter{replies: []string{"x"}}
	c := Chain(stub, WithTemperature(0.7))

	_, err := c.Complete(context.Background(), Request{Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.7, stub.last.Temperature)
}
