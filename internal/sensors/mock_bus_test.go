package sensors

import (
	"testing"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/imu"
)

func openMock(t *testing.T) *Accelerometer {
	t.Helper()
	acc, err := OpenMockAccelerometer(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { acc.Close() })
	return acc
}

func TestMockBus_initWrites(t *testing.T) {
	acc := openMock(t)
	want := []RegisterWrite{
		{0x20, 0x5F},
		{0x24, 0x80},
		{0x2E, 0x00},
		{0x25, 0x10},
		{0x20, 0x00},
		{0x20, 0x37},
	}
	got := acc.Mock.Writes()
	if len(got) != len(want) {
		t.Fatalf("got %d writes, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if v := acc.Mock.Register(0x20); v != 0x37 {
		t.Errorf("CTRL_REG4 = %#02x, want 0x37", v)
	}
}

func TestMockBus_missingReads(t *testing.T) {
	acc := openMock(t)
	acc.Mock.MissingReads = 2
	for i, want := range []bool{false, false, true, true} {
		ok, err := acc.Dev.Detect()
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Errorf("attempt %d: Detect() = %t, want %t", i, ok, want)
		}
	}
}

func TestMockBus_tilt(t *testing.T) {
	acc := openMock(t)
	fs := int16(config.Default().FullScale)
	data := []struct {
		tilt float64
		want imu.Raw
	}{
		{0, imu.Raw{X: 0, Y: 0, Z: fs}},
		{90, imu.Raw{X: fs, Y: 0, Z: 0}},
		{180, imu.Raw{X: 0, Y: 0, Z: -fs}},
	}
	for _, line := range data {
		tilt := line.tilt
		acc.Mock.Tilt = func() float64 { return tilt }
		raw, err := acc.Dev.ReadRaw()
		if err != nil {
			t.Fatal(err)
		}
		if raw != line.want {
			t.Errorf("tilt %.0f: ReadRaw() = %v, want %v", line.tilt, raw, line.want)
		}
	}
}

func TestMockBus_clamps(t *testing.T) {
	m := NewMockBus(40000)
	m.Tilt = func() float64 { return 180 }
	r := make([]byte, 2)
	if err := m.Tx([]byte{0x29 | 0x80, 0}, r); err != nil {
		t.Fatal(err)
	}
	if m.Register(0x2D) != 0x80 || m.Register(0x2C) != 0x00 {
		t.Fatalf("Z = %#02x%02x, want 0x8000", m.Register(0x2D), m.Register(0x2C))
	}
}

func TestMockBus_badTransaction(t *testing.T) {
	m := NewMockBus(17694)
	if err := m.Tx([]byte{0x8F}, make([]byte, 1)); err == nil {
		t.Error("expected error for a one byte transaction")
	}
	if err := m.Tx([]byte{0x8F, 0}, nil); err == nil {
		t.Error("expected error for a read without buffer")
	}
	if _, err := m.Connect(1, 3, 16); err == nil {
		t.Error("expected error for 16 bits per word")
	}
}

func TestRegisterMap(t *testing.T) {
	data := []struct {
		addr     byte
		writable bool
	}{
		{0x0F, false},
		{0x10, true},
		{0x20, true},
		{0x25, true},
		{0x27, false},
		{0x29, false},
		{0x2E, true},
		{0x40, false},
	}
	for _, line := range data {
		if got := IsRegisterWritable(line.addr); got != line.writable {
			t.Errorf("IsRegisterWritable(%#02x) = %t, want %t", line.addr, got, line.writable)
		}
	}

	readable := ReadableRegisters()
	if len(readable) != len(LIS3DSHRegisterMap()) {
		t.Fatalf("got %d readable registers, want %d", len(readable), len(LIS3DSHRegisterMap()))
	}
	if readable[0] != 0x0D || readable[len(readable)-1] != 0x2E {
		t.Fatalf("readable = %x", readable)
	}

	if _, err := ParseAddress("20"); err == nil {
		t.Error("expected error for address without prefix")
	}
	if a, err := ParseAddress("0x2e"); err != nil || a != 0x2E {
		t.Errorf("ParseAddress(0x2e) = %#02x, %v", a, err)
	}
}
