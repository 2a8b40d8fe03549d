// Package sampler drives the decoder from a group reader: it seeds the
// baseline, performs single sampling iterations and runs them in a loop.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sweeney/quad-decoder/internal/gpio"
	"github.com/sweeney/quad-decoder/internal/logic"
)

// errLogInterval limits how often Run logs read errors.
const errLogInterval = 10 * time.Second

// Sampler reads every group once per iteration and feeds the decoder.
// Step and Seed must not be called concurrently; the decoder may be read
// from any goroutine.
type Sampler struct {
	reader  gpio.GroupReader
	decoder *logic.Decoder

	readErrors atomic.Uint64
}

// Stats reports sampler health.
type Stats struct {
	ReadErrors uint64
}

// New creates a Sampler.
func New(reader gpio.GroupReader, decoder *logic.Decoder) *Sampler {
	return &Sampler{reader: reader, decoder: decoder}
}

// Decoder returns the decoder the sampler writes to.
func (s *Sampler) Decoder() *logic.Decoder {
	return s.decoder
}

// Seed reads every group once and records the readings as the baseline, so
// the first Step measures actual movement.
func (s *Sampler) Seed() error {
	for _, g := range logic.Groups {
		v, err := s.reader.ReadGroup(g)
		if err != nil {
			s.readErrors.Add(1)
			return fmt.Errorf("seed group %s: %w", g, err)
		}
		s.decoder.Seed(g, v)
	}
	return nil
}

// Step performs exactly one sampling iteration: groups A-D are read and
// decoded in order. A group whose read fails keeps its previous baseline and
// is skipped for this iteration; the remaining groups are still decoded.
func (s *Sampler) Step() error {
	var errs []error
	for _, g := range logic.Groups {
		v, err := s.reader.ReadGroup(g)
		if err != nil {
			s.readErrors.Add(1)
			errs = append(errs, fmt.Errorf("group %s: %w", g, err))
			continue
		}
		s.decoder.Apply(g, v)
	}
	s.decoder.EndIteration()
	return errors.Join(errs...)
}

// Run calls Step until ctx is cancelled. With a nil tick it samples
// continuously; otherwise it samples once per tick. Read errors are logged at
// most once per errLogInterval and never stop the loop.
func (s *Sampler) Run(ctx context.Context, tick <-chan time.Time) {
	var lastLog time.Time
	var suppressed int

	step := func() {
		if err := s.Step(); err != nil {
			now := time.Now()
			if now.Sub(lastLog) < errLogInterval {
				suppressed++
				return
			}
			if suppressed > 0 {
				log.Warnf("sample error: %v (%d more suppressed)", err, suppressed)
			} else {
				log.Warnf("sample error: %v", err)
			}
			lastLog = now
			suppressed = 0
		}
	}

	if tick == nil {
		for ctx.Err() == nil {
			step()
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			step()
		}
	}
}

// Stats returns a snapshot of the sampler counters.
func (s *Sampler) Stats() Stats {
	return Stats{ReadErrors: s.readErrors.Load()}
}
