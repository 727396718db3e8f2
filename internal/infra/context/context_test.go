package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	context_ "github.com/mkrupp/lostbuddy/internal/infra/context"
)

func TestClientID(t *testing.T) {
	t.Parallel()

	_, ok := context_.ClientIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = context_.ClientIDFromContext(context_.WithClientID(context.Background(), ""))
	assert.False(t, ok, "empty client id selects the default slot")

	clientID, ok := context_.ClientIDFromContext(context_.WithClientID(context.Background(), "c1"))
	assert.True(t, ok)
	assert.Equal(t, "c1", clientID)
}

func TestTraceID(t *testing.T) {
	t.Parallel()

	_, ok := context_.TraceIDFromContext(context.Background())
	assert.False(t, ok)

	traceID, ok := context_.TraceIDFromContext(context_.WithTraceID(context.Background(), "t1"))
	assert.True(t, ok)
	assert.Equal(t, "t1", traceID)
}
