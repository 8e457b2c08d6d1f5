package orientation

import (
	"fmt"
	"math"
)

const (
	// DefaultFilterLength is the number of samples averaged by a TiltFilter.
	DefaultFilterLength = 20

	// DefaultFullScale is the raw Z count read at 1g.
	DefaultFullScale = 17694.0
)

// TiltFilter is a moving average over the last N gravity-normalized
// vertical samples.
//
// Slots start at zero and are included in the mean, so the filtered value
// ramps up over the first N updates.
type TiltFilter struct {
	buf       []float64
	index     int
	fullScale float64
}

// NewTiltFilter returns a filter of length n normalizing raw counts by
// fullScale counts per g.
func NewTiltFilter(n int, fullScale float64) (*TiltFilter, error) {
	if n < 1 {
		return nil, fmt.Errorf("orientation: filter length must be at least 1, got %d", n)
	}
	if fullScale == 0 {
		return nil, fmt.Errorf("orientation: full scale must not be zero")
	}
	return &TiltFilter{buf: make([]float64, n), fullScale: fullScale}, nil
}

// Len returns the filter length.
func (f *TiltFilter) Len() int {
	return len(f.buf)
}

// Add inserts a normalized sample, overwriting the oldest one.
func (f *TiltFilter) Add(g float64) {
	f.buf[f.index] = g
	f.index++
	if f.index >= len(f.buf) {
		f.index = 0
	}
}

// Mean returns the average of every slot.
func (f *TiltFilter) Mean() float64 {
	var sum float64
	for _, v := range f.buf {
		sum += v
	}
	return sum / float64(len(f.buf))
}

// Angle returns the tilt of the filtered vertical axis in degrees.
func (f *TiltFilter) Angle() float64 {
	return TiltFromG(f.Mean())
}

// Normalize converts a raw vertical count to g.
func (f *TiltFilter) Normalize(rawZ int16) float64 {
	return float64(rawZ) / f.fullScale
}

// Update normalizes rawZ, adds it and returns the filtered tilt angle.
func (f *TiltFilter) Update(rawZ int16) float64 {
	f.Add(f.Normalize(rawZ))
	return f.Angle()
}

// TiltFromG returns acos(g) in degrees, in [0, 180]. Values above 1g occur
// under motion and are treated as exactly 1g.
func TiltFromG(g float64) float64 {
	if g > 1 {
		g = 1
	}
	return math.Acos(g) * 180 / math.Pi
}
