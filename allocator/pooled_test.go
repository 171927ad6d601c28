package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/resource"
)

func TestPooledAllocate(t *testing.T) {
	t.Run("reuses released buffers", func(t *testing.T) {
		p := NewPooled(64)

		buf, err := p.Allocate(64)
		require.NoError(t, err)
		require.Len(t, buf, 64)
		buf[0] = 0xff
		p.Release(buf)

		again, err := p.Allocate(64)
		require.NoError(t, err)
		assert.Equal(t, byte(0xff), again[0], "freelist should hand the buffer back")
	})

	t.Run("rejects wrong size", func(t *testing.T) {
		p := NewPooled(64)
		_, err := p.Allocate(128)
		require.ErrorIs(t, err, ErrWrongSize)
	})

	t.Run("ignores foreign sized release", func(t *testing.T) {
		p := NewPooled(64)
		p.Release(make([]byte, 32))

		buf, err := p.Allocate(64)
		require.NoError(t, err)
		assert.Len(t, buf, 64)
	})
}

func TestPooledController(t *testing.T) {
	t.Run("charges fresh buffers against the budget", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 128})
		p := NewPooled(64, WithController(ctrl))

		b1, err := p.Allocate(64)
		require.NoError(t, err)
		_, err = p.Allocate(64)
		require.NoError(t, err)
		assert.Equal(t, int64(128), ctrl.MemoryUsage())

		// Freelist reuse must not charge again.
		p.Release(b1)
		_, err = p.Allocate(64)
		require.NoError(t, err)
		assert.Equal(t, int64(128), ctrl.MemoryUsage())
	})

	t.Run("max free returns overflow to the controller", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 256})
		p := NewPooled(64, WithController(ctrl), WithMaxFree(1))

		b1, err := p.Allocate(64)
		require.NoError(t, err)
		b2, err := p.Allocate(64)
		require.NoError(t, err)
		assert.Equal(t, int64(128), ctrl.MemoryUsage())

		p.Release(b1)
		p.Release(b2)
		assert.Equal(t, int64(64), ctrl.MemoryUsage())
	})

	t.Run("close returns all charged memory", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 256})
		p := NewPooled(64, WithController(ctrl))

		buf, err := p.Allocate(64)
		require.NoError(t, err)
		p.Release(buf)

		p.Close()
		assert.Equal(t, int64(0), ctrl.MemoryUsage())
	})
}
