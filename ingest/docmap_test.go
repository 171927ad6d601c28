package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitrow/index"
)

func TestDocumentMap(t *testing.T) {
	t.Run("insert and lookup", func(t *testing.T) {
		m := NewDocumentMap()
		require.NoError(t, m.Insert(1, index.DocumentHandle{}))

		assert.True(t, m.Contains(1))
		assert.False(t, m.Contains(2))
		assert.Equal(t, 1, m.Len())

		_, ok := m.Get(1)
		assert.True(t, ok)
		_, ok = m.Get(2)
		assert.False(t, ok)
	})

	t.Run("duplicate insert", func(t *testing.T) {
		m := NewDocumentMap()
		require.NoError(t, m.Insert(1, index.DocumentHandle{}))
		require.ErrorIs(t, m.Insert(1, index.DocumentHandle{}), ErrDuplicateDocument)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("remove", func(t *testing.T) {
		m := NewDocumentMap()
		require.NoError(t, m.Insert(1, index.DocumentHandle{}))

		_, ok := m.Remove(1)
		assert.True(t, ok)
		assert.False(t, m.Contains(1))
		assert.Equal(t, 0, m.Len())

		_, ok = m.Remove(1)
		assert.False(t, ok, "removing a missing id reports absence")
	})
}
