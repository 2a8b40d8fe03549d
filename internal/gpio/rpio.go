//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
	"github.com/sweeney/quad-decoder/internal/config"
	"github.com/sweeney/quad-decoder/internal/logic"
)

// RPiReader reads groups through Raspberry Pi memory-mapped GPIO.
// Requires /dev/gpiomem or root. Lines of a group are read one after another,
// so a group byte is not an atomic snapshot.
type RPiReader struct {
	pins [logic.NumGroups][LinesPerGroup]rpio.Pin
}

// NewRPiReader maps GPIO memory and configures every BCM pin in offsets as input.
func NewRPiReader(offsets [logic.NumGroups][]int, bias string) (*RPiReader, error) {
	for _, g := range logic.Groups {
		if len(offsets[g]) != LinesPerGroup {
			return nil, fmt.Errorf("group %s: need %d pins, got %d", g, LinesPerGroup, len(offsets[g]))
		}
	}

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w (are you running on a Raspberry Pi?)", err)
	}

	r := &RPiReader{}
	for _, g := range logic.Groups {
		for i, n := range offsets[g] {
			p := rpio.Pin(n)
			p.Input()
			switch bias {
			case config.BiasPullUp:
				p.PullUp()
			case config.BiasPullDown:
				p.PullDown()
			case config.BiasDisabled, "":
				p.PullOff()
			}
			r.pins[g][i] = p
		}
	}
	return r, nil
}

// ReadGroup returns the raw byte of a group, pin i in bit i.
func (r *RPiReader) ReadGroup(g logic.Group) (byte, error) {
	if err := checkGroup(g); err != nil {
		return 0, err
	}
	var b byte
	for i, p := range r.pins[g] {
		if p.Read() == rpio.High {
			b |= 1 << uint(i)
		}
	}
	return b, nil
}

// Close unmaps GPIO memory.
func (r *RPiReader) Close() error {
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close rpio: %w", err)
	}
	return nil
}
