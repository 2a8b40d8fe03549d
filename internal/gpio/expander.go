package gpio

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/sweeney/quad-decoder/internal/config"
	"github.com/sweeney/quad-decoder/internal/logic"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers/mcp23017"
)

// pinSource is the part of an MCP23017 the reader needs.
type pinSource interface {
	GetPins() (mcp23017.Pins, error)
}

// ExpanderReader reads groups from two MCP23017 16-bit I2C port expanders.
// The first expander carries groups A (port A) and B (port B), the second
// groups C and D. Every pin is configured as an input.
type ExpanderReader struct {
	bus       i2c.BusCloser
	expanders [2]pinSource
}

// NewExpanderReader opens the named periph I2C bus ("" = first available) and
// connects to the expanders at the two given addresses.
func NewExpanderReader(busName string, addrs []uint8, bias string) (*ExpanderReader, error) {
	if len(addrs) != 2 {
		return nil, fmt.Errorf("need 2 expander addresses, got %d", len(addrs))
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	mode := mcp23017.Input
	switch bias {
	case config.BiasPullUp:
		mode |= mcp23017.Pullup
	case config.BiasPullDown:
		log.Warnf("mcp23017 has no pull-down resistors, leaving bias disabled")
	}

	r := &ExpanderReader{bus: bus}
	for i, addr := range addrs {
		dev, err := mcp23017.NewI2C(bus, addr)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("mcp23017 at 0x%02x: %w", addr, err)
		}
		if bias != config.BiasAsIs {
			if err := dev.SetModes([]mcp23017.PinMode{mode}); err != nil {
				bus.Close()
				return nil, fmt.Errorf("mcp23017 at 0x%02x: set modes: %w", addr, err)
			}
		}
		r.expanders[i] = dev
	}
	return r, nil
}

// newExpanderReader wires pre-built pin sources; used by tests.
func newExpanderReader(ab, cd pinSource) *ExpanderReader {
	return &ExpanderReader{expanders: [2]pinSource{ab, cd}}
}

// ReadGroup returns one 8-bit port of the expander carrying the group.
func (r *ExpanderReader) ReadGroup(g logic.Group) (byte, error) {
	if err := checkGroup(g); err != nil {
		return 0, err
	}
	pins, err := r.expanders[g/2].GetPins()
	if err != nil {
		return 0, fmt.Errorf("read group %s: %w", g, err)
	}
	if g%2 == 0 {
		return byte(pins), nil
	}
	return byte(pins >> 8), nil
}

// Close releases the I2C bus.
func (r *ExpanderReader) Close() error {
	if r.bus == nil {
		return nil
	}
	if err := r.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}
