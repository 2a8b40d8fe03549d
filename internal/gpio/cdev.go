//go:build linux

package gpio

import (
	"fmt"

	"github.com/sweeney/quad-decoder/internal/config"
	"github.com/sweeney/quad-decoder/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// CdevReader reads groups from actual hardware using the Linux GPIO character
// device. Each group is one multi-line request, so a group read is a single
// ioctl returning all 8 lines sampled together.
type CdevReader struct {
	groups [logic.NumGroups]*gpiocdev.Lines
	values []int
}

// NewCdevReader requests the 8 line offsets of each group on chip as inputs.
func NewCdevReader(chip string, offsets [logic.NumGroups][]int, bias string) (*CdevReader, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer("quad-decoder")}
	switch bias {
	case config.BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case config.BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	case config.BiasDisabled, "":
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}

	r := &CdevReader{values: make([]int, LinesPerGroup)}
	for _, g := range logic.Groups {
		if len(offsets[g]) != LinesPerGroup {
			r.Close()
			return nil, fmt.Errorf("group %s: need %d offsets, got %d", g, LinesPerGroup, len(offsets[g]))
		}
		lines, err := gpiocdev.RequestLines(chip, offsets[g], opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request group %s lines %v: %w", g, offsets[g], err)
		}
		r.groups[g] = lines
	}
	return r, nil
}

// ReadGroup returns the raw byte of a group, line i in bit i.
func (r *CdevReader) ReadGroup(g logic.Group) (byte, error) {
	if err := checkGroup(g); err != nil {
		return 0, err
	}
	if err := r.groups[g].Values(r.values); err != nil {
		return 0, fmt.Errorf("read group %s: %w", g, err)
	}
	return packLevels(r.values), nil
}

// Close releases GPIO resources.
// Lines are reconfigured to plain inputs with bias disabled before release so
// encoder hardware is left undriven.
func (r *CdevReader) Close() error {
	var errs []error

	for _, g := range logic.Groups {
		lines := r.groups[g]
		if lines == nil {
			continue
		}
		if err := lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure group %s: %w", g, err))
		}
		if err := lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close group %s: %w", g, err))
		}
		r.groups[g] = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
