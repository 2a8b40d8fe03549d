// Package gpio provides raw group reads with hardware abstraction.
// The real implementations use the Linux GPIO character device, Raspberry Pi
// memory-mapped GPIO or MCP23017 I2C port expanders.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"

	"github.com/sweeney/quad-decoder/internal/config"
	"github.com/sweeney/quad-decoder/internal/logic"
)

// GroupReader reads the raw 8-bit state of an input group.
type GroupReader interface {
	// ReadGroup returns the current raw byte for a group. Bit i carries the
	// i-th line of the group; channel n uses bits 2n and 2n+1.
	ReadGroup(g logic.Group) (byte, error)

	// Close releases GPIO resources.
	Close() error
}

// LinesPerGroup is the number of input lines that make up one group byte.
const LinesPerGroup = 8

// Open creates the GroupReader selected by cfg.Reader.Backend.
func Open(cfg *config.Config) (GroupReader, error) {
	switch cfg.Reader.Backend {
	case config.BackendCdev:
		r, err := NewCdevReader(cfg.Reader.Chip, cfg.GroupOffsets(), cfg.Reader.Bias)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.BackendRPi:
		r, err := NewRPiReader(cfg.GroupOffsets(), cfg.Reader.Bias)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.BackendMCP23017:
		r, err := NewExpanderReader(cfg.Reader.I2CBus, cfg.Reader.Expanders, cfg.Reader.Bias)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Reader.Backend)
	}
}

// packLevels packs per-line levels (0 or 1, line i first) into a group byte.
func packLevels(levels []int) byte {
	var b byte
	for i, v := range levels {
		if v != 0 {
			b |= 1 << uint(i)
		}
	}
	return b
}

func checkGroup(g logic.Group) error {
	if !g.Valid() {
		return fmt.Errorf("gpio: invalid group %d", uint8(g))
	}
	return nil
}
