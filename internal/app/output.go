package app

import (
	"fmt"
	"io"
	"log"
	"os"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/posture_monitor/internal/config"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// OpenOutput returns the sink for the per-cycle angle lines: the configured
// serial port, or stdout.
func OpenOutput(cfg *config.Config) (io.WriteCloser, error) {
	if cfg.OutputSerialPort == "" {
		return nopCloser{os.Stdout}, nil
	}

	serialOpts := serial.OpenOptions{
		PortName:              cfg.OutputSerialPort,
		BaudRate:              uint(cfg.OutputBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", cfg.OutputSerialPort, err)
	}
	log.Printf("output: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)
	return port, nil
}
