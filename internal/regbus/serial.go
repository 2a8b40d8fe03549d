package regbus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig describes the serial port the register bus runs on.
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// Port is an open serial port. A read that times out returns (0, nil).
type Port struct {
	port *serial.Port
}

// OpenSerial opens the serial port described by cfg.
func OpenSerial(cfg SerialConfig) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("regbus: no serial device")
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &Port{port: p}, nil
}

// Read reads from the port. tarm/serial reports an expired read timeout as
// io.EOF with no data; that is translated to (0, nil).
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// Write writes to the port.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the port.
func (p *Port) Close() error {
	return p.port.Close()
}
