package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Middleware decorates a Completer with a cross-cutting concern
type Middleware func(next Completer) Completer

// Chain applies mws so that the first middleware is the outermost
func Chain(c Completer, mws ...Middleware) Completer {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// WithTimeout bounds every call with its own deadline
func WithTimeout(d time.Duration) Middleware {
	return func(next Completer) Completer {
		return &timeout{next: next, d: d}
	}
}

type timeout struct {
	next Completer
	d    time.Duration
}

func (t *timeout) Name() string { return t.next.Name() }

func (t *timeout) Complete(ctx context.Context, req Request) (string, error) {
	if t.d <= 0 {
		return t.next.Complete(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Complete(ctx, req)
}

// Retry retries Complete up to maxAttempts with exponential backoff starting
// at baseDelay. Cancellation and permanent errors stop immediately. The error
// that finally escapes is tagged with ErrCompletion.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Completer) Completer {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Completer
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Complete(ctx context.Context, req Request) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		last = err

		var pErr *PermanentError
		if errors.As(err, &pErr) {
			break
		}
		if ctx.Err() != nil || i == r.max-1 {
			break
		}

		select {
		case <-ctx.Done():
			return "", tagCompletion(r.next.Name(), ctx.Err())
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", tagCompletion(r.next.Name(), last)
}

func tagCompletion(name string, err error) error {
	if errors.Is(err, ErrCompletion) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrCompletion, name, err)
}

// WithLogging logs request size, latency and errors
func WithLogging(logger *slog.Logger, role string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Completer) Completer {
		return &logging{next: next, log: logger.With("role", role, "model", next.Name())}
	}
}

type logging struct {
	next Completer
	log  *slog.Logger
}

func (l *logging) Name() string { return l.next.Name() }

func (l *logging) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	l.log.Debug("completion request", "bytes", len(req.System)+len(req.Prompt), "json", req.JSON)
	out, err := l.next.Complete(ctx, req)
	if err != nil {
		l.log.Warn("completion failed", "error", err, "elapsed", time.Since(start))
		return out, err
	}
	l.log.Debug("completion response", "bytes", len(out), "elapsed", time.Since(start))
	return out, nil
}

// WithTemperature pins the sampling temperature of a role
func WithTemperature(temp float64) Middleware {
	return func(next Completer) Completer {
		return &tempered{next: next, temp: temp}
	}
}

type tempered struct {
	next Completer
	temp float64
}

func (t *tempered) Name() string { return t.next.Name() }

func (t *tempered) Complete(ctx context.Context, req Request) (string, error) {
	req.Temperature = t.temp
	return t.next.Complete(ctx, req)
}
