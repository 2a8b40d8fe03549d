package gpio

import (
	"errors"

	"github.com/sweeney/quad-decoder/internal/logic"
)

// Sample is one scripted raw reading of every group, indexed by logic.Group.
type Sample [logic.NumGroups]byte

// FakeReader is a test double that replays scripted group bytes.
type FakeReader struct {
	// Samples contains scripted readings. Each group has its own cursor:
	// the n-th ReadGroup(g) returns Samples[n][g].
	Samples []Sample

	// index tracks the next sample per group
	index [logic.NumGroups]int

	// reads counts ReadGroup calls per group
	reads [logic.NumGroups]int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadGroup for every group.
	ReadError error

	// GroupErrors, if set for a group, is returned by ReadGroup for that group.
	GroupErrors map[logic.Group]error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// ReadGroup returns the group's byte from the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) ReadGroup(g logic.Group) (byte, error) {
	if err := checkGroup(g); err != nil {
		return 0, err
	}
	f.reads[g]++

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if err := f.GroupErrors[g]; err != nil {
		return 0, err
	}

	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index[g]]
	if f.index[g] < len(f.Samples)-1 {
		f.index[g]++
	}

	return sample[g], nil
}

// Reads returns how many times ReadGroup was called for a group.
func (f *FakeReader) Reads(g logic.Group) int {
	return f.reads[g]
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = [logic.NumGroups]int{}
	f.reads = [logic.NumGroups]int{}
	f.Closed = false
}

// ChannelScript builds samples that drive one channel through the given
// sequence of 2-bit states while every other line stays low.
func ChannelScript(ch logic.Channel, states ...uint8) []Sample {
	samples := make([]Sample, len(states))
	for i, s := range states {
		samples[i][ch.Group] = (s & 0b11) << uint(2*ch.Index)
	}
	return samples
}
