// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// RegisterWrite is one write seen by a MockBus.
type RegisterWrite struct {
	Address byte
	Value   byte
}

// MockBus emulates a LIS3DSH behind an SPI port. It keeps a register file,
// records writes and synthesizes output registers from a tilt angle.
//
// The sample is latched when OUT_X_H is read, which is the first register a
// raw read touches.
type MockBus struct {
	mu sync.Mutex

	// Tilt returns the emulated tilt of the Z axis in degrees. The default
	// sweeps slowly between lying and sitting.
	Tilt func() float64
	// FullScale is the Z count at 1g.
	FullScale float64
	// MissingReads is the number of WHO_AM_I reads that answer 0x00 before
	// the device shows up.
	MissingReads int

	regs   [256]byte
	writes []RegisterWrite
	start  time.Time
}

// NewMockBus returns an emulated device answering WHO_AM_I with 0x3F.
func NewMockBus(fullScale float64) *MockBus {
	m := &MockBus{FullScale: fullScale, start: time.Now()}
	m.Tilt = m.sweep
	m.regs[0x0D] = 0x21
	m.regs[0x0F] = 0x3F
	m.regs[0x20] = 0x07
	m.regs[0x25] = 0x10
	return m
}

// sweep generates smooth changing values between 0 and 90 degrees.
func (m *MockBus) sweep() float64 {
	elapsed := time.Since(m.start).Seconds()
	return 45 + 45*math.Sin(elapsed*0.3)
}

func (m *MockBus) String() string {
	return "lis3dsh-mock"
}

// Connect implements spi.Port.
func (m *MockBus) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("lis3dsh-mock: unsupported bits per word %d", bits)
	}
	return m, nil
}

// LimitSpeed implements spi.Port.
func (m *MockBus) LimitSpeed(f physic.Frequency) error {
	return nil
}

// Duplex implements conn.Conn.
func (m *MockBus) Duplex() conn.Duplex {
	return conn.Full
}

// TxPackets implements spi.Conn.
func (m *MockBus) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := m.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Tx implements conn.Conn. Every transaction is one address byte followed
// by one data byte.
func (m *MockBus) Tx(w, r []byte) error {
	if len(w) != 2 {
		return errors.New("lis3dsh-mock: expected a 2 byte transaction")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := w[0] &^ 0x80
	if w[0]&0x80 == 0 {
		m.regs[addr] = w[1]
		m.writes = append(m.writes, RegisterWrite{Address: addr, Value: w[1]})
		return nil
	}

	if len(r) != 2 {
		return errors.New("lis3dsh-mock: read needs a 2 byte buffer")
	}
	switch addr {
	case 0x0F:
		if m.MissingReads > 0 {
			m.MissingReads--
			r[0], r[1] = 0, 0
			return nil
		}
	case 0x29:
		m.latch()
	}
	r[0] = 0
	r[1] = m.regs[addr]
	return nil
}

// latch computes a new sample into the output registers.
func (m *MockBus) latch() {
	rad := m.Tilt() * math.Pi / 180
	x := clampCount(m.FullScale * math.Sin(rad))
	z := clampCount(m.FullScale * math.Cos(rad))
	putAxis(&m.regs, 0x28, x)
	putAxis(&m.regs, 0x2A, 0)
	putAxis(&m.regs, 0x2C, z)
}

func putAxis(regs *[256]byte, low byte, v int16) {
	regs[low] = byte(uint16(v))
	regs[low+1] = byte(uint16(v) >> 8)
}

func clampCount(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// SetTilt replaces the tilt source while transactions may be running.
func (m *MockBus) SetTilt(f func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tilt = f
}

// SetRegister sets a register without recording a write.
func (m *MockBus) SetRegister(addr, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
}

// Register returns the current content of a register.
func (m *MockBus) Register(addr byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// Writes returns a copy of every register write seen so far.
func (m *MockBus) Writes() []RegisterWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RegisterWrite(nil), m.writes...)
}
