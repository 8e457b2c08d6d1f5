// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "fmt"

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register for the register debug tool.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// LIS3DSHRegisterMap returns metadata for the LIS3DSH registers used by this project.
func LIS3DSHRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Identification
		{Address: "0x0D", Name: "INFO1", Description: "Information register 1", Access: "R", Default: "0x21"},
		{Address: "0x0E", Name: "INFO2", Description: "Information register 2", Access: "R", Default: "0x00"},
		{Address: "0x0F", Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: "0x3F",
			BitFields: []BitField{
				{Bits: "7:0", Name: "WHO_AM_I", Description: "Fixed device identity", Values: "0x3F=LIS3DSH"},
			}},

		// Offset correction
		{Address: "0x10", Name: "OFF_X", Description: "X-Axis offset correction", Access: "RW", Default: "0x00"},
		{Address: "0x11", Name: "OFF_Y", Description: "Y-Axis offset correction", Access: "RW", Default: "0x00"},
		{Address: "0x12", Name: "OFF_Z", Description: "Z-Axis offset correction", Access: "RW", Default: "0x00"},

		// Control registers
		{Address: "0x20", Name: "CTRL_REG4", Description: "Output data rate and axis enable", Access: "RW", Default: "0x07",
			BitFields: []BitField{
				{Bits: "7:4", Name: "ODR", Description: "Output data rate", Values: "0=Power down, 1=3.125Hz, 2=6.25Hz, 3=12.5Hz, 4=25Hz, 5=50Hz, 6=100Hz, 7=400Hz, 8=800Hz, 9=1600Hz"},
				{Bits: "3", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=Wait for MSB and LSB read"},
				{Bits: "2", Name: "ZEN", Description: "Z-Axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "YEN", Description: "Y-Axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "XEN", Description: "X-Axis enable", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: "0x21", Name: "CTRL_REG1", Description: "State machine 1 control", Access: "RW", Default: "0x00"},
		{Address: "0x22", Name: "CTRL_REG2", Description: "State machine 2 control", Access: "RW", Default: "0x00"},
		{Address: "0x23", Name: "CTRL_REG3", Description: "Interrupt control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DR_EN", Description: "Data-ready signal on INT1", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "IEA", Description: "Interrupt polarity", Values: "0=Active low, 1=Active high"},
				{Bits: "5", Name: "IEL", Description: "Interrupt latching", Values: "0=Latched, 1=Pulsed"},
				{Bits: "0", Name: "STRT", Description: "Soft reset", Values: "1=Reset"},
			}},
		{Address: "0x24", Name: "CTRL_REG5", Description: "Antialias filter, full scale, self-test", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "BW", Description: "Antialias filter bandwidth", Values: "0=800Hz, 1=200Hz, 2=400Hz, 3=50Hz"},
				{Bits: "5:3", Name: "FSCALE", Description: "Full scale", Values: "0=±2g, 1=±4g, 2=±6g, 3=±8g, 4=±16g"},
				{Bits: "2:1", Name: "ST", Description: "Self-test", Values: "0=Normal, 1=Positive, 2=Negative"},
				{Bits: "0", Name: "SIM", Description: "SPI mode", Values: "0=4-wire, 1=3-wire"},
			}},
		{Address: "0x25", Name: "CTRL_REG6", Description: "FIFO and address auto-increment", Access: "RW", Default: "0x10",
			BitFields: []BitField{
				{Bits: "7", Name: "BOOT", Description: "Reboot memory content", Values: "1=Reboot"},
				{Bits: "6", Name: "FIFO_EN", Description: "FIFO enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "ADD_INC", Description: "Register address auto-increment", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: "0x27", Name: "STATUS", Description: "Data status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "ZYXOR", Description: "X, Y, Z data overrun", Values: ""},
				{Bits: "3", Name: "ZYXDA", Description: "X, Y, Z new data available", Values: ""},
			}},

		// Output registers (read-only)
		{Address: "0x28", Name: "OUT_X_L", Description: "X-Axis low byte", Access: "R"},
		{Address: "0x29", Name: "OUT_X_H", Description: "X-Axis high byte", Access: "R"},
		{Address: "0x2A", Name: "OUT_Y_L", Description: "Y-Axis low byte", Access: "R"},
		{Address: "0x2B", Name: "OUT_Y_H", Description: "Y-Axis high byte", Access: "R"},
		{Address: "0x2C", Name: "OUT_Z_L", Description: "Z-Axis low byte", Access: "R"},
		{Address: "0x2D", Name: "OUT_Z_H", Description: "Z-Axis high byte", Access: "R"},

		{Address: "0x2E", Name: "FIFO_CTRL", Description: "FIFO mode and watermark", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "FMODE", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream, 3=Stream-to-FIFO"},
				{Bits: "4:0", Name: "WTMP", Description: "Watermark pointer", Values: "0-31"},
			}},
	}
}

// ParseAddress parses a "0x.." register address string.
func ParseAddress(s string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(s, "0x%X", &b); err != nil {
		return 0, fmt.Errorf("invalid address format: %s", s)
	}
	return b, nil
}

// IsRegisterWritable reports whether addr is listed as writable in the register map.
func IsRegisterWritable(addr byte) bool {
	for _, r := range LIS3DSHRegisterMap() {
		a, err := ParseAddress(r.Address)
		if err != nil || a != addr {
			continue
		}
		return r.Access == "RW" || r.Access == "W"
	}
	return false
}

// ReadableRegisters returns the addresses of every readable register in map order.
func ReadableRegisters() []byte {
	var out []byte
	for _, r := range LIS3DSHRegisterMap() {
		if r.Access == "W" {
			continue
		}
		a, err := ParseAddress(r.Address)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}
