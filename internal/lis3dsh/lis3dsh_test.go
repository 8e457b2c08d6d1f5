package lis3dsh

import (
	"math"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// tracePin records every level driven on the chip select.
type tracePin struct {
	gpiotest.Pin
	levels []gpio.Level
}

func (p *tracePin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

func initOps() []conntest.IO {
	return []conntest.IO{
		{W: []byte{0x20, 0x5F}},
		{W: []byte{0x24, 0x80}},
		{W: []byte{0x2E, 0x00}},
		{W: []byte{0x25, 0x10}},
		{W: []byte{0x20, 0x00}},
		{W: []byte{0x20, 0x37}},
	}
}

func readOp(addr, value byte) conntest.IO {
	return conntest.IO{W: []byte{addr | 0x80, 0x00}, R: []byte{0x00, value}}
}

func newPlayback(ops ...conntest.IO) *spitest.Playback {
	return &spitest.Playback{Playback: conntest.Playback{Ops: append(initOps(), ops...), DontPanic: true}}
}

func newDev(t *testing.T, pb *spitest.Playback) (*Dev, *tracePin) {
	t.Helper()
	cs := &tracePin{Pin: gpiotest.Pin{N: "CS", L: gpio.Low}}
	tr, err := NewTransport(pb, cs)
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(tr)
	if err != nil {
		t.Fatal(err)
	}
	return d, cs
}

func TestNew(t *testing.T) {
	pb := newPlayback()
	d, cs := newDev(t, pb)
	if s := d.String(); s != "LIS3DSH" {
		t.Fatalf("String() = %q", s)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
	// released high first, then one low/high pair per register write
	if len(cs.levels) != 1+2*6 {
		t.Fatalf("got %d chip select edges, want %d", len(cs.levels), 13)
	}
	for i, l := range cs.levels {
		want := gpio.High
		if i%2 == 1 {
			want = gpio.Low
		}
		if l != want {
			t.Fatalf("chip select edge %d = %s, want %s", i, l, want)
		}
	}
}

func TestNew_error(t *testing.T) {
	// the third write is not what the device expects
	pb := &spitest.Playback{Playback: conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0x20, 0x5F}},
			{W: []byte{0x24, 0x80}},
			{W: []byte{0x25, 0x10}},
		},
		DontPanic: true,
	}}
	tr, err := NewTransport(pb, &gpiotest.Pin{N: "CS"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(tr); err == nil {
		t.Fatal("expected init error")
	}
}

func TestDetect(t *testing.T) {
	for i := 0; i < 256; i++ {
		id := byte(i)
		want := id == 0x3F
		pb := newPlayback(readOp(WhoAmI, id))
		d, _ := newDev(t, pb)
		got, err := d.Detect()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Detect() with WHO_AM_I=%#02x = %t, want %t", id, got, want)
		}
		if err := pb.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReadRaw(t *testing.T) {
	data := []struct {
		h, l byte
		want int16
	}{
		{0x00, 0x00, 0},
		{0x7F, 0xFF, math.MaxInt16},
		{0x80, 0x00, math.MinInt16},
		{0xFF, 0xFF, -1},
		{0x01, 0x02, 0x0102},
	}
	for _, line := range data {
		// distinct Y and Z values keep the axes apart
		pb := newPlayback(
			readOp(OutXH, line.h), readOp(OutXL, line.l),
			readOp(OutYH, 0x00), readOp(OutYL, 0x01),
			readOp(OutZH, 0xFF), readOp(OutZL, 0xFE),
		)
		d, _ := newDev(t, pb)
		raw, err := d.ReadRaw()
		if err != nil {
			t.Fatal(err)
		}
		want := imu.Raw{X: line.want, Y: 1, Z: -2}
		if raw != want {
			t.Errorf("ReadRaw() = %v, want %v", raw, want)
		}
		if err := pb.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReadRaw_error(t *testing.T) {
	pb := newPlayback(readOp(OutXH, 0x00))
	d, _ := newDev(t, pb)
	if _, err := d.ReadRaw(); err == nil {
		t.Fatal("expected error when the bus runs out of data")
	}
}

func TestWriteRegister_clearsReadBit(t *testing.T) {
	pb := newPlayback(conntest.IO{W: []byte{0x20, 0x07}})
	d, _ := newDev(t, pb)
	if err := d.WriteRegister(0xA0, 0x07); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadRegister_framing(t *testing.T) {
	pb := newPlayback(readOp(CtrlReg4, 0x37))
	d, cs := newDev(t, pb)
	cs.levels = nil
	v, err := d.ReadRegister(CtrlReg4)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x37 {
		t.Fatalf("ReadRegister() = %#02x, want 0x37", v)
	}
	if len(cs.levels) != 2 || cs.levels[0] != gpio.Low || cs.levels[1] != gpio.High {
		t.Fatalf("chip select edges = %v, want [Low High]", cs.levels)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTransport_debug(t *testing.T) {
	pb := newPlayback(readOp(WhoAmI, 0x3F))
	d, _ := newDev(t, pb)
	var calls int
	d.t.EnableDebug(func(string, ...interface{}) { calls++ })
	if _, err := d.Detect(); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("debug called %d times, want 2", calls)
	}
}

func TestReadAngles(t *testing.T) {
	// X=0, Y=0, Z=-141 counts: 1g on Z after the sign inversion
	pb := newPlayback(
		readOp(OutXH, 0x00), readOp(OutXL, 0x00),
		readOp(OutYH, 0x00), readOp(OutYL, 0x00),
		readOp(OutZH, 0xFF), readOp(OutZL, 0x73),
	)
	d, _ := newDev(t, pb)
	p, err := d.ReadAngles()
	if err != nil {
		t.Fatal(err)
	}
	want := GToDegrees(1, 0)
	if p.Roll != want || p.Pitch != want {
		t.Fatalf("ReadAngles() = %v, want roll=pitch=%f", p, want)
	}
}

func TestAnglesFromRaw_truncates(t *testing.T) {
	// 140 counts is below one step and truncates to zero
	p := AnglesFromRaw(imu.Raw{X: 140, Y: -282, Z: -141})
	if want := GToDegrees(1, 0); p.Roll != want {
		t.Errorf("Roll = %f, want %f", p.Roll, want)
	}
	if want := GToDegrees(1, 2); p.Pitch != want {
		t.Errorf("Pitch = %f, want %f", p.Pitch, want)
	}
}

func TestGToDegrees(t *testing.T) {
	data := []struct {
		name string
		v, h float64
		want float64
	}{
		{"first quadrant", 1, 1, 45},
		{"second quadrant", 1, -1, 135},
		{"third quadrant", -1, -1, 225},
		{"fourth quadrant", -1, 1, 315},
		{"steep", math.Sqrt(3), 1, 60},
		{"shallow negative ratio", 1, -math.Sqrt(3), 150},
		{"both zero", 0, 0, 45},
	}
	for _, line := range data {
		got := GToDegrees(line.v, line.h)
		if math.Abs(got-line.want) > 1e-9 {
			t.Errorf("%s: GToDegrees(%f, %f) = %f, want %f", line.name, line.v, line.h, got, line.want)
		}
	}
}

func TestGToDegrees_zeroHorizontal(t *testing.T) {
	got := GToDegrees(1, 0)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("GToDegrees(1, 0) = %f", got)
	}
	if got < 89.9 || got > 90 {
		t.Fatalf("GToDegrees(1, 0) = %f, want close to 90", got)
	}
	got = GToDegrees(0, 1)
	if got < 0 || got > 0.1 {
		t.Fatalf("GToDegrees(0, 1) = %f, want close to 0", got)
	}
}
