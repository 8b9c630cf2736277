package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryAllow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(3, time.Minute)
	m.now = func() time.Time { return now }

	t.Run("UpToLimit", func(t *testing.T) {
		assert.True(t, m.Allow("1.2.3.4"))
		assert.True(t, m.Allow("1.2.3.4"))
		assert.True(t, m.Allow("1.2.3.4"))
		assert.False(t, m.Allow("1.2.3.4"))
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		assert.True(t, m.Allow("5.6.7.8"))
	})

	t.Run("WindowSlides", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		assert.True(t, m.Allow("1.2.3.4"))
	})

	t.Run("PartialExpiry", func(t *testing.T) {
		m2 := NewMemory(2, time.Minute)
		base := now
		m2.now = func() time.Time { return base }
		assert.True(t, m2.Allow("k"))
		base = base.Add(40 * time.Second)
		assert.True(t, m2.Allow("k"))
		assert.False(t, m2.Allow("k"))
		// first attempt ages out, second is still inside the window
		base = base.Add(25 * time.Second)
		assert.True(t, m2.Allow("k"))
		assert.False(t, m2.Allow("k"))
	})
}

func TestNewMemoryDefaults(t *testing.T) {
	m := NewMemory(0, 0)
	assert.Equal(t, 60, m.limit)
	assert.Equal(t, time.Minute, m.window)
}
