package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_CeilingPerWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(
		WithLimit(ClassCommand, Limit{Count: 3, Window: time.Minute}),
		WithClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		assert.True(t, l.CheckAndRecord("proj", ClassCommand), "call %d should pass", i+1)
	}
	assert.False(t, l.CheckAndRecord("proj", ClassCommand), "call past the ceiling must be denied")
}

func TestLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(
		WithLimit(ClassCommand, Limit{Count: 2, Window: time.Minute}),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, l.CheckAndRecord("proj", ClassCommand))
	assert.True(t, l.CheckAndRecord("proj", ClassCommand))
	assert.False(t, l.CheckAndRecord("proj", ClassCommand))

	// Once the window has elapsed the old events no longer count.
	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.CheckAndRecord("proj", ClassCommand))
}

func TestLimiter_DeniedCallsAreNotRecorded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(
		WithLimit(ClassCommand, Limit{Count: 1, Window: time.Minute}),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, l.CheckAndRecord("proj", ClassCommand))
	// Denied attempts must not push the window forward.
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Second)
		assert.False(t, l.CheckAndRecord("proj", ClassCommand))
	}
	// 60s after the single recorded event, the key is usable again even
	// though denied attempts happened in between.
	now = now.Add(11 * time.Second)
	assert.True(t, l.CheckAndRecord("proj", ClassCommand))
}

func TestLimiter_KeysAndClassesAreIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(
		WithLimit(ClassCommand, Limit{Count: 1, Window: time.Minute}),
		WithLimit(ClassAPICall, Limit{Count: 1, Window: time.Minute}),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, l.CheckAndRecord("a", ClassCommand))
	assert.False(t, l.CheckAndRecord("a", ClassCommand))

	// Different key, same class.
	assert.True(t, l.CheckAndRecord("b", ClassCommand))
	// Same key, different class.
	assert.True(t, l.CheckAndRecord("a", ClassAPICall))
}

func TestLimiter_UnknownClassDenies(t *testing.T) {
	l := NewLimiter()
	assert.False(t, l.CheckAndRecord("proj", Class("bogus")))
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter()
	assert.Equal(t, Limit{Count: 100, Window: time.Hour}, l.limits[ClassAPICall])
	assert.Equal(t, Limit{Count: 50, Window: 5 * time.Minute}, l.limits[ClassCommand])
}
