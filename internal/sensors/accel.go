// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/lis3dsh"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

// Accelerometer is an initialized LIS3DSH and the transport it owns.
type Accelerometer struct {
	Dev  *lis3dsh.Dev
	Mock *MockBus // set when the device is emulated

	tr *lis3dsh.Transport
}

// Close releases the SPI port.
func (a *Accelerometer) Close() error {
	return a.tr.Close()
}

// OpenAccelerometer initializes the LIS3DSH over SPI.
func OpenAccelerometer(cfg *config.Config) (*Accelerometer, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("accelerometer: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("accelerometer: CS pin %q not found", cfg.CSPin)
	}

	tr, err := lis3dsh.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("accelerometer: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	dev, err := lis3dsh.New(tr)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("accelerometer: device configuration: %w", err)
	}
	log.Printf("accelerometer: LIS3DSH configured on SPI %q, CS %s", cfg.SPIDevice, cs)
	return &Accelerometer{Dev: dev, tr: tr}, nil
}

// OpenMockAccelerometer returns an accelerometer backed by a MockBus.
func OpenMockAccelerometer(cfg *config.Config) (*Accelerometer, error) {
	bus := NewMockBus(cfg.FullScale)
	cs := &gpiotest.Pin{N: "MOCK_CS", L: gpio.High}

	tr, err := lis3dsh.NewTransport(bus, cs)
	if err != nil {
		return nil, fmt.Errorf("accelerometer: mock transport: %w", err)
	}
	dev, err := lis3dsh.New(tr)
	if err != nil {
		return nil, fmt.Errorf("accelerometer: mock device configuration: %w", err)
	}
	log.Println("accelerometer: using emulated LIS3DSH")
	return &Accelerometer{Dev: dev, Mock: bus, tr: tr}, nil
}

// OpenIndicator returns the posture indicator pin, or nil when none is configured.
// host.Init must have run.
func OpenIndicator(cfg *config.Config) (gpio.PinOut, error) {
	if cfg.LEDPin == "" {
		return nil, nil
	}
	p := gpioreg.ByName(cfg.LEDPin)
	if p == nil {
		return nil, fmt.Errorf("indicator: LED pin %q not found", cfg.LEDPin)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("indicator: LED pin %s: %w", p, err)
	}
	return p, nil
}
