package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(nil))
	assert.NoError(t, ignoreCanceled(context.Canceled))

	// Background tasks wrap the cancellation before errgroup surfaces it
	wrapped := fmt.Errorf("sla tracker stopped: %w", context.Canceled)
	assert.NoError(t, ignoreCanceled(wrapped))

	failure := errors.New("nats connection lost")
	assert.Equal(t, failure, ignoreCanceled(failure))
	assert.Error(t, ignoreCanceled(context.DeadlineExceeded))
}
