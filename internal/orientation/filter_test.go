package orientation

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func newFilter(t *testing.T, n int) *TiltFilter {
	t.Helper()
	f, err := NewTiltFilter(n, DefaultFullScale)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestNewTiltFilter_invalid(t *testing.T) {
	if _, err := NewTiltFilter(0, DefaultFullScale); err == nil {
		t.Error("expected error for zero length")
	}
	if _, err := NewTiltFilter(DefaultFilterLength, 0); err == nil {
		t.Error("expected error for zero full scale")
	}
}

func TestTiltFilter_constantOne(t *testing.T) {
	f := newFilter(t, DefaultFilterLength)
	for i := 0; i < 2*f.Len(); i++ {
		f.Add(1.0)
	}
	if m := f.Mean(); m != 1.0 {
		t.Fatalf("Mean() = %f, want 1", m)
	}
	if a := f.Angle(); a != 0 {
		t.Fatalf("Angle() = %f, want 0", a)
	}
}

func TestTiltFilter_constantZero(t *testing.T) {
	f := newFilter(t, DefaultFilterLength)
	for i := 0; i < f.Len(); i++ {
		f.Add(0)
	}
	if a := f.Angle(); math.Abs(a-90) > tolerance {
		t.Fatalf("Angle() = %f, want 90", a)
	}
}

func TestTiltFilter_startupTransient(t *testing.T) {
	f := newFilter(t, DefaultFilterLength)

	// the unwritten slots are zero and pull the mean down
	f.Add(1.0)
	if m := f.Mean(); math.Abs(m-0.05) > tolerance {
		t.Fatalf("Mean() after one sample = %f, want 0.05", m)
	}
	prev := f.Angle()
	for i := 1; i < f.Len(); i++ {
		f.Add(1.0)
		a := f.Angle()
		if a >= prev {
			t.Fatalf("sample %d: angle %f did not decrease from %f", i, a, prev)
		}
		prev = a
	}
	if prev != 0 {
		t.Fatalf("angle after %d samples = %f, want 0", f.Len(), prev)
	}
}

func TestTiltFilter_wraps(t *testing.T) {
	f := newFilter(t, 3)
	for _, v := range []float64{1, 2, 3, 4} {
		f.Add(v)
	}
	// 4 replaced 1
	if m := f.Mean(); math.Abs(m-3) > tolerance {
		t.Fatalf("Mean() = %f, want 3", m)
	}
	if f.index != 1 {
		t.Fatalf("index = %d, want 1", f.index)
	}
}

func TestTiltFilter_Update(t *testing.T) {
	f := newFilter(t, DefaultFilterLength)
	var a float64
	for i := 0; i < f.Len(); i++ {
		a = f.Update(int16(DefaultFullScale))
	}
	if a != 0 {
		t.Fatalf("Update() = %f, want 0", a)
	}
	if g := f.Normalize(-17694); g != -1 {
		t.Fatalf("Normalize(-17694) = %f, want -1", g)
	}
}

func TestTiltFromG(t *testing.T) {
	data := []struct {
		g, want float64
	}{
		{1.0, 0},
		{1.2, 0},
		{0.5, 60},
		{0, 90},
		{-1, 180},
	}
	for _, line := range data {
		got := TiltFromG(line.g)
		if math.IsNaN(got) || math.Abs(got-line.want) > tolerance {
			t.Errorf("TiltFromG(%f) = %f, want %f", line.g, got, line.want)
		}
	}
}

func TestTiltFromG_belowMinusOne(t *testing.T) {
	// only the upper side is clamped
	if got := TiltFromG(-1.2); !math.IsNaN(got) {
		t.Fatalf("TiltFromG(-1.2) = %f, want NaN", got)
	}
}
