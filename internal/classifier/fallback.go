package classifier

import (
	"context"
	"errors"
	"log"
	"time"
)

// FallbackClassifier tries the primary (remote) classifier under a hard
// timeout and degrades to the deterministic fallback on timeout or
// malformed output. The pipeline never stalls on the reasoning engine.
type FallbackClassifier struct {
	primary    Classifier
	fallback   Classifier
	timeout    time.Duration
	onFallback func() // metrics hook, may be nil
}

// NewFallbackClassifier wraps primary with fallback. A nil primary (no API
// key configured) runs the fallback directly.
func NewFallbackClassifier(primary, fallback Classifier, timeout time.Duration) *FallbackClassifier {
	return &FallbackClassifier{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
}

// OnFallback registers a hook invoked whenever the primary is bypassed
func (c *FallbackClassifier) OnFallback(fn func()) {
	c.onFallback = fn
}

func (c *FallbackClassifier) Name() string {
	if c.primary != nil {
		return c.primary.Name() + "+" + c.fallback.Name()
	}
	return c.fallback.Name()
}

func (c *FallbackClassifier) Classify(ctx context.Context, req *Request) (*Result, error) {
	if c.primary != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := c.primary.Classify(callCtx, req)
		cancel()

		if err == nil {
			return result, nil
		}

		if errors.Is(err, ErrReasoningTimeout) || errors.Is(err, context.DeadlineExceeded) {
			log.Printf("[Classifier] %s timed out after %s, falling back to %s (finding: %s)",
				c.primary.Name(), c.timeout, c.fallback.Name(), req.Finding.Ref())
		} else if errors.Is(err, ErrMalformedOutput) {
			log.Printf("[Classifier] %s returned malformed output, falling back to %s (finding: %s)",
				c.primary.Name(), c.fallback.Name(), req.Finding.Ref())
		} else {
			log.Printf("[Classifier] %s failed: %v, falling back to %s (finding: %s)",
				c.primary.Name(), err, c.fallback.Name(), req.Finding.Ref())
		}

		if c.onFallback != nil {
			c.onFallback()
		}
	}

	return c.fallback.Classify(ctx, req)
}
