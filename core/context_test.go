package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFlags(t *testing.T) {
	ctx := context.Background()
	assert.False(t, shouldSuppressHeader(ctx))
	assert.False(t, shouldSkipRunRecord(ctx))

	suppressed := WithSuppressHeader(ctx)
	assert.True(t, shouldSuppressHeader(suppressed))
	assert.False(t, shouldSkipRunRecord(suppressed))

	both := WithSkipRunRecord(suppressed)
	assert.True(t, shouldSuppressHeader(both))
	assert.True(t, shouldSkipRunRecord(both))
}

func TestContextFlagsIgnoreForeignValues(t *testing.T) {
	ctx := context.WithValue(context.Background(), suppressHeaderKey, "yes")
	assert.False(t, shouldSuppressHeader(ctx))
}
