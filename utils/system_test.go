package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNan(t *testing.T) {
	assert.False(t, IsNan(1.))
	assert.True(t, IsNan(math.NaN()))
	assert.False(t, IsNan([]float64{1, 2}))
	assert.True(t, IsNan([]float64{1, math.NaN()}))
	assert.False(t, IsNan("not numeric"))

	T := NewTriplets(2)
	T.Add(0, 0, 1)
	T.Add(1, 1, math.NaN())
	M, err := T.ToCSR(2, 2)
	require.NoError(t, err)
	assert.True(t, IsNan(M))
	assert.True(t, IsNan(&M))
	E, err := NewTriplets(0).ToCSR(0, 0)
	require.NoError(t, err)
	assert.False(t, IsNan(E))
}

func TestGetMemUsage(t *testing.T) {
	assert.Contains(t, GetMemUsage(), "MiB")
}
