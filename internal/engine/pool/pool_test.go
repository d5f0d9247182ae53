package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(4)
	require.Equal(t, 4, p.Capacity())

	n1, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, uint32(1), n1.Generation)

	idx, gen := n1.Index, n1.Generation
	got, ok := p.Get(idx, gen)
	require.True(t, ok)
	require.Same(t, n1, got)

	p.Release(n1)
	_, ok = p.Get(idx, gen)
	require.False(t, ok, "released slot must not validate against its old generation once reacquired elsewhere")
}

func TestAcquireBumpsGenerationOnReuse(t *testing.T) {
	p := New(1)
	n1, err := p.Acquire()
	require.NoError(t, err)
	gen1 := n1.Generation
	p.Release(n1)

	n2, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, gen1+1, n2.Generation)

	// The old handle must no longer validate.
	_, ok := p.Get(n1.Index, gen1)
	require.False(t, ok)

	_, ok = p.Get(n2.Index, n2.Generation)
	require.True(t, ok)
}

func TestExhaustion(t *testing.T) {
	p := New(2)
	_, err := p.Acquire()
	require.NoError(t, err)
	_, err = p.Acquire()
	require.NoError(t, err)

	_, err = p.Acquire()
	require.ErrorIs(t, err, ErrPoolExhausted)
}

func TestResetClearsHotFieldsNotCold(t *testing.T) {
	p := New(1)
	n, err := p.Acquire()
	require.NoError(t, err)
	n.Hot.Filled = 10
	n.Cold.ClientID = "abc"
	p.Release(n)

	n2, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, int64(0), n2.Hot.Filled)
	require.Equal(t, "abc", n2.Cold.ClientID, "cold fields survive reuse until the caller repopulates them")
}
