package logic

import "sync"

// Decoder owns the position counters and the previously observed sample of
// every group. The sampling loop is the only writer; any number of readers may
// take snapshots concurrently. Every counter read goes through the same lock
// as the writes, so a reader never sees a partially updated counter.
type Decoder struct {
	mu         sync.RWMutex
	counters   Counters
	prev       [NumGroups]byte
	seeded     [NumGroups]bool
	iterations uint64
}

// NewDecoder creates a decoder with all counters at zero and no baseline.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Seed records the baseline sample for a group without decoding anything.
func (d *Decoder) Seed(g Group, sample byte) {
	d.mu.Lock()
	d.prev[g] = sample
	d.seeded[g] = true
	d.mu.Unlock()
}

// Apply decodes a new sample for a group against the stored previous sample
// and keeps the new sample as the next baseline. An unseeded group is seeded
// instead, so the first decode always measures real movement.
func (d *Decoder) Apply(g Group, sample byte) {
	d.mu.Lock()
	if d.seeded[g] {
		DecodeGroup(d.prev[g], sample, &d.counters[g])
	} else {
		d.seeded[g] = true
	}
	d.prev[g] = sample
	d.mu.Unlock()
}

// EndIteration marks the end of one pass over all groups.
func (d *Decoder) EndIteration() {
	d.mu.Lock()
	d.iterations++
	d.mu.Unlock()
}

// Seeded reports whether every group has a baseline.
func (d *Decoder) Seeded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.allSeeded()
}

func (d *Decoder) allSeeded() bool {
	for _, ok := range d.seeded {
		if !ok {
			return false
		}
	}
	return true
}

// Counter returns the current value of one channel's counter.
func (d *Decoder) Counter(ch Channel) int32 {
	d.mu.RLock()
	v := d.counters[ch.Group][ch.Index]
	d.mu.RUnlock()
	return v
}

// Counters returns a copy of all counters.
func (d *Decoder) Counters() Counters {
	d.mu.RLock()
	c := d.counters
	d.mu.RUnlock()
	return c
}

// Snapshot returns a consistent copy of counters, samples and iteration count.
func (d *Decoder) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Counters:   d.counters,
		Samples:    d.prev,
		Iterations: d.iterations,
		Seeded:     d.allSeeded(),
	}
}
