package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req_123")
	assert.Equal(t, "req_123", RequestID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))
}

func TestWithLogger(t *testing.T) {
	logger := New("debug", "text")
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestLAnnotatesRequestID(t *testing.T) {
	logger := New("info", "json")
	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req_abc")

	// L should return a derived logger, not the original.
	assert.NotSame(t, logger, L(ctx))
}

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		assert.NotNil(t, New(level, "text"), "level %s", level)
	}
}
