package clock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonotonicIsNonDecreasing(t *testing.T) {
	m := Monotonic{}
	a := m.NowNS()
	b := m.NowNS()
	require.LessOrEqual(t, a, b)
}

func TestCalibrateThenNowNSTracksCounter(t *testing.T) {
	var ticks uint64
	c := NewCalibrated(func() uint64 {
		ticks += 1_000_000
		return ticks
	})

	ok := c.Calibrate(20 * time.Millisecond)
	require.True(t, ok)

	ns := c.NowNS()
	require.Greater(t, ns, uint64(0))
}

func TestUncalibratedFallsBackToMonotonic(t *testing.T) {
	c := NewCalibrated(func() uint64 { return 0 })
	ns := c.NowNS()
	require.Greater(t, ns, uint64(0))
}

func TestSaveLoadCalibrationRoundTrip(t *testing.T) {
	var ticks uint64
	c := NewCalibrated(func() uint64 {
		ticks += 1_000_000
		return ticks
	})
	require.True(t, c.Calibrate(20*time.Millisecond))

	dir := t.TempDir()
	path := filepath.Join(dir, "cal.bin")
	require.NoError(t, c.SaveCalibration(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 36)
	require.Equal(t, "HFTTSC", string(data[0:6]))

	c2 := NewCalibrated(func() uint64 { return ticks })
	require.True(t, c2.LoadCalibration(path))
	require.Greater(t, c2.NowNS(), uint64(0))
}

func TestLoadCalibrationRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 36), 0o600))

	c := NewCalibrated(func() uint64 { return 0 })
	require.False(t, c.LoadCalibration(path))
}
