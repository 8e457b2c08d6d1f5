package lis3dsh

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Bus parameters of the LIS3DSH SPI interface.
var (
	SpiFrequency = physic.MegaHertz
	SpiMode      = spi.Mode3 // clock idle high, sample on rising edge
	SpiBits      = 8
)

// DebugF the debug function type.
type DebugF func(string, ...interface{})

// Transport frames single-register transactions between an explicit
// chip-select assert and deassert.
type Transport struct {
	conn   spi.Conn
	cs     gpio.PinOut
	closer io.Closer
	debug  DebugF
}

// NewSpiTransport opens the SPI port at path and builds a transport using cs as chip select.
func NewSpiTransport(path string, cs gpio.PinOut) (*Transport, error) {
	p, err := spireg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lis3dsh: can't open SPI %q: %w", path, err)
	}
	t, err := NewTransport(p, cs)
	if err != nil {
		p.Close()
		return nil, err
	}
	t.closer = p
	return t, nil
}

// NewTransport connects p with the LIS3DSH bus parameters and drives cs high.
func NewTransport(p spi.Port, cs gpio.PinOut) (*Transport, error) {
	c, err := p.Connect(SpiFrequency, SpiMode, SpiBits)
	if err != nil {
		return nil, fmt.Errorf("lis3dsh: can't initialize SPI: %w", err)
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("lis3dsh: chip select %s: %w", cs, err)
	}
	return &Transport{conn: c, cs: cs, debug: noop}, nil
}

// EnableDebug Sets the debugging output using the local print function.
func (t *Transport) EnableDebug(f DebugF) {
	t.debug = f
}

// WriteRegister writes value to the register at address. The read bit is
// always clear in the transmitted address byte.
func (t *Transport) WriteRegister(address, value byte) error {
	t.debug("write register %x value %x", address, value)
	buf := [...]byte{address &^ readBit, value}
	if err := t.cs.Out(gpio.Low); err != nil {
		return err
	}
	if err := t.conn.Tx(buf[:], nil); err != nil {
		t.cs.Out(gpio.High)
		return fmt.Errorf("lis3dsh: write %#02x: %w", address, err)
	}
	return t.cs.Out(gpio.High)
}

// ReadRegister reads the register at address. The device clocks the
// register content out during the second byte.
func (t *Transport) ReadRegister(address byte) (byte, error) {
	t.debug("read register %x", address)
	var (
		buf = [...]byte{address | readBit, 0}
		res [2]byte
	)
	if err := t.cs.Out(gpio.Low); err != nil {
		return 0, err
	}
	if err := t.conn.Tx(buf[:], res[:]); err != nil {
		t.cs.Out(gpio.High)
		return 0, fmt.Errorf("lis3dsh: read %#02x: %w", address, err)
	}
	t.debug("register content %x:%x", res[0], res[1])
	if err := t.cs.Out(gpio.High); err != nil {
		return 0, err
	}
	return res[1], nil
}

// Close releases the SPI port when the transport opened it.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func noop(string, ...interface{}) {}
