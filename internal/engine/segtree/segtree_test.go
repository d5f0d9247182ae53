package segtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFirstEmptyTree(t *testing.T) {
	tr := New(16)
	_, ok := tr.FindFirst(0, 15)
	require.False(t, ok)
}

func TestFindFirstSmallestTieBreak(t *testing.T) {
	tr := New(16)
	tr.Add(10, 1)
	tr.Add(3, 1)
	tr.Add(7, 1)

	idx, ok := tr.FindFirst(0, 15)
	require.True(t, ok)
	require.Equal(t, 3, idx)
}

func TestFindFirstRespectsBounds(t *testing.T) {
	tr := New(16)
	tr.Add(2, 1)
	tr.Add(12, 1)

	idx, ok := tr.FindFirst(5, 15)
	require.True(t, ok)
	require.Equal(t, 12, idx)

	_, ok = tr.FindFirst(3, 11)
	require.False(t, ok)
}

func TestFindLastSymmetric(t *testing.T) {
	tr := New(16)
	tr.Add(2, 1)
	tr.Add(9, 1)
	tr.Add(12, 1)

	idx, ok := tr.FindLast(0, 10)
	require.True(t, ok)
	require.Equal(t, 9, idx)
}

func TestAddDecrementToZeroRemovesFromSearch(t *testing.T) {
	tr := New(8)
	tr.Add(4, 1)
	idx, ok := tr.FindFirst(0, 7)
	require.True(t, ok)
	require.Equal(t, 4, idx)

	tr.Add(4, -1)
	_, ok = tr.FindFirst(0, 7)
	require.False(t, ok)
}

func TestPopulationReflectsNetDelta(t *testing.T) {
	tr := New(8)
	tr.Add(1, 3)
	tr.Add(1, -1)
	require.EqualValues(t, 2, tr.Population(1))
}

func TestAnyMatchesFindFirstPresence(t *testing.T) {
	tr := New(8)
	require.False(t, tr.Any(0, 7))

	tr.Add(5, 1)
	require.True(t, tr.Any(0, 7))
	require.True(t, tr.Any(5, 5))
	require.False(t, tr.Any(0, 4))
}
