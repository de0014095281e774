package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupdex/dupdex/internal/database"
)

func TestPgVectorRoundTrip(t *testing.T) {
	v := database.NewPgVector([]float64{0.5, -1, 3.25})

	val, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1,3.25]", val)

	var scanned database.PgVector
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, []float64{0.5, -1, 3.25}, scanned.Floats())
	assert.Equal(t, 3, scanned.Dimension())
}

func TestPgVectorScan(t *testing.T) {
	t.Run("bytes input", func(t *testing.T) {
		var v database.PgVector
		require.NoError(t, v.Scan([]byte("[1,2]")))
		assert.Equal(t, []float64{1, 2}, v.Floats())
	})

	t.Run("empty vector", func(t *testing.T) {
		var v database.PgVector
		require.NoError(t, v.Scan("[]"))
		assert.Empty(t, v.Floats())
		assert.NotNil(t, v.Floats())
	})

	t.Run("nil value", func(t *testing.T) {
		var v database.PgVector
		require.NoError(t, v.Scan(nil))
		assert.Nil(t, v.Floats())
	})

	t.Run("unsupported type", func(t *testing.T) {
		var v database.PgVector
		assert.Error(t, v.Scan(42))
	})

	t.Run("malformed element", func(t *testing.T) {
		var v database.PgVector
		assert.Error(t, v.Scan("[1,abc]"))
	})
}

func TestPgVectorCopies(t *testing.T) {
	src := []float64{1, 2, 3}
	v := database.NewPgVector(src)
	src[0] = 99
	assert.Equal(t, []float64{1, 2, 3}, v.Floats())
}
