package trace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextSpanIDIncrementsWithinRequest(t *testing.T) {
	ctx := WithRequestAndSpan(context.Background(), "req-1", 0)

	assert.Equal(t, "0", CurrentSpanID(ctx))
	reqID, span := NextSpanID(ctx)
	assert.Equal(t, "req-1", reqID)
	assert.Equal(t, "1", span)
	_, span = NextSpanID(ctx)
	assert.Equal(t, "2", span)
	assert.Equal(t, "2", CurrentSpanID(ctx))
}

func TestNextSpanIDWithoutTrace(t *testing.T) {
	reqID, span := NextSpanID(context.Background())
	assert.Len(t, reqID, 32)
	assert.Equal(t, "1", span)
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestDetachKeepsTraceButDropsCancellation(t *testing.T) {
	parent, cancel := context.WithTimeout(WithRequestAndSpan(context.Background(), "req-2", 0), time.Millisecond)
	defer cancel()

	detached := Detach(parent)
	<-parent.Done()

	assert.NoError(t, detached.Err())
	assert.Equal(t, "req-2", RequestIDFromContext(detached))
}
