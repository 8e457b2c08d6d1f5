// Package lis3dsh controls an ST LIS3DSH 3-axis accelerometer over SPI.
//
// # Datasheet
//
// https://www.st.com/resource/en/datasheet/lis3dsh.pdf
package lis3dsh

import (
	"fmt"
	"math"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/orientation"
)

// Sensitivity converts raw counts to g for ReadAngles. The sign is inverted:
// a negative count is a positive acceleration.
const Sensitivity = -141

// zeroEpsilon replaces exact zero components in GToDegrees.
const zeroEpsilon = 0.001

var (
	_ imu.RawSource      = (*Dev)(nil)
	_ orientation.Source = (*Dev)(nil)
)

// Dev is a driver for the LIS3DSH accelerometer.
type Dev struct {
	t *Transport
}

// New configures the device behind t and returns a Dev.
//
// New does not verify the device identity; use Detect for that.
func New(t *Transport) (*Dev, error) {
	d := &Dev{t: t}
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return "LIS3DSH"
}

// Init writes the measurement configuration.
func (d *Dev) Init() error {
	config := []struct {
		reg, val byte
	}{
		{CtrlReg4, ctrl4Normal50Hz},
		{CtrlReg5, ctrl5Filter2G},
		{FifoCtrl, fifoBypass},
		{CtrlReg6, ctrl6AutoInc},

		// Sampling can lock up after configuration. Powering the ODR down and
		// writing it again is the known workaround for that erratum. The
		// order of these two writes matters.
		{CtrlReg4, ctrl4PowerDown},
		{CtrlReg4, ctrl4Running},
	}
	for _, c := range config {
		if err := d.t.WriteRegister(c.reg, c.val); err != nil {
			return fmt.Errorf("lis3dsh: init: %w", err)
		}
	}
	return nil
}

// Detect reports whether the identity register reads DeviceID.
func (d *Dev) Detect() (bool, error) {
	id, err := d.t.ReadRegister(WhoAmI)
	if err != nil {
		return false, err
	}
	return id == DeviceID, nil
}

// ReadRegister reads a single register.
func (d *Dev) ReadRegister(address byte) (byte, error) {
	return d.t.ReadRegister(address)
}

// WriteRegister writes a single register.
func (d *Dev) WriteRegister(address, value byte) error {
	return d.t.WriteRegister(address, value)
}

// ReadRaw reads the three axes. Each axis is read high byte first.
func (d *Dev) ReadRaw() (imu.Raw, error) {
	x, err := d.readAxis(OutXH, OutXL)
	if err != nil {
		return imu.Raw{}, err
	}
	y, err := d.readAxis(OutYH, OutYL)
	if err != nil {
		return imu.Raw{}, err
	}
	z, err := d.readAxis(OutZH, OutZL)
	if err != nil {
		return imu.Raw{}, err
	}
	return imu.Raw{X: x, Y: y, Z: z}, nil
}

func (d *Dev) readAxis(high, low byte) (int16, error) {
	h, err := d.t.ReadRegister(high)
	if err != nil {
		return 0, err
	}
	l, err := d.t.ReadRegister(low)
	if err != nil {
		return 0, err
	}
	return int16(uint16(h)<<8 | uint16(l)), nil
}

// ReadAngles reads a sample and returns roll (Z/X plane) and pitch (Z/Y
// plane) in degrees.
func (d *Dev) ReadAngles() (orientation.Pose, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return orientation.Pose{}, err
	}
	return AnglesFromRaw(raw), nil
}

// AnglesFromRaw converts a raw sample the way ReadAngles does. Counts are
// scaled with integer division, so readings below one g step truncate to 0.
func AnglesFromRaw(raw imu.Raw) orientation.Pose {
	x := float64(raw.X / Sensitivity)
	y := float64(raw.Y / Sensitivity)
	z := float64(raw.Z / Sensitivity)
	return orientation.Pose{
		Roll:  GToDegrees(z, x),
		Pitch: GToDegrees(z, y),
	}
}

// GToDegrees returns the angle between a vertical component v and a
// horizontal component h, nominally in [0, 360).
//
// Negative arctangents are shifted by 90 before the quadrant offset is
// added. Results are neither wrapped nor clamped.
func GToDegrees(v, h float64) float64 {
	if h == 0 {
		h = zeroEpsilon
	}
	if v == 0 {
		v = zeroEpsilon
	}

	var offset float64
	switch {
	case h > 0 && v > 0:
		offset = 0
	case h < 0 && v > 0:
		offset = 90
	case h < 0 && v < 0:
		offset = 180
	case h > 0 && v < 0:
		offset = 270
	}

	deg := math.Atan(v/h) * 180 / math.Pi
	if deg < 0 {
		deg += 90
	}
	return math.Abs(deg) + offset
}
