package clog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAttributes(t *testing.T) {
	ctx := ContextWithSlog(context.Background())
	AddAttribute(ctx, "action", "01ABC")
	AddError(ctx, errors.New("write failed"))
	AddStack(ctx, "goroutine 1 [running]")

	attrs := GetAttributes(ctx)
	require.Len(t, attrs, 3)
	assert.Equal(t, "01ABC", attrs["action"])
	assert.EqualError(t, attrs[ErrorAttributeKey].(error), "write failed")
	assert.Equal(t, "goroutine 1 [running]", attrs[StackAttributeKey])
}

func TestContextAttributes_NoCarrier(t *testing.T) {
	ctx := context.Background()
	// Without a carrier these are no-ops, not panics.
	AddAttribute(ctx, "action", "01ABC")
	AddError(ctx, errors.New("x"))
	assert.Nil(t, GetAttributes(ctx))
}

func TestContextAttributes_CopyIsDetached(t *testing.T) {
	ctx := ContextWithSlog(context.Background())
	AddAttribute(ctx, "kind", "run_command")

	attrs := GetAttributes(ctx)
	attrs["kind"] = "edited"
	assert.Equal(t, "run_command", GetAttributes(ctx)["kind"])
}
