// Package logic contains the pure quadrature decoding logic.
// This package has NO hardware, MQTT or OS dependencies.
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Group identifies one 8-bit bundle of four encoder channels that is read
// with a single raw read.
type Group uint8

const (
	GroupA Group = iota
	GroupB
	GroupC
	GroupD
)

const (
	// NumGroups is the number of input groups sampled per iteration.
	NumGroups = 4
	// ChannelsPerGroup is the number of 2-bit channel pairs in one group byte.
	ChannelsPerGroup = 4
	// NumChannels is the total number of encoder channels.
	NumChannels = NumGroups * ChannelsPerGroup
)

// Groups lists all groups in sampling order.
var Groups = [NumGroups]Group{GroupA, GroupB, GroupC, GroupD}

func (g Group) String() string {
	if g < NumGroups {
		return string(rune('A' + g))
	}
	return fmt.Sprintf("Group(%d)", uint8(g))
}

// Valid reports whether g names one of the four groups.
func (g Group) Valid() bool {
	return g < NumGroups
}

// ParseGroup converts "A".."D" (case-insensitive) to a Group.
func ParseGroup(s string) (Group, error) {
	if len(s) == 1 {
		c := s[0] &^ 0x20 // upper-case
		if c >= 'A' && c < 'A'+NumGroups {
			return Group(c - 'A'), nil
		}
	}
	return 0, fmt.Errorf("unknown group %q", s)
}

// Channel addresses one encoder by group and index within the group (0-3).
type Channel struct {
	Group Group
	Index int
}

func (c Channel) String() string {
	return fmt.Sprintf("%s%d", c.Group, c.Index)
}

// Valid reports whether the channel address is in range.
func (c Channel) Valid() bool {
	return c.Group.Valid() && c.Index >= 0 && c.Index < ChannelsPerGroup
}

// Flat returns the channel's position in a flat 0-15 numbering.
func (c Channel) Flat() int {
	return int(c.Group)*ChannelsPerGroup + c.Index
}

// ChannelFromFlat is the inverse of Channel.Flat.
func ChannelFromFlat(i int) (Channel, bool) {
	if i < 0 || i >= NumChannels {
		return Channel{}, false
	}
	return Channel{Group: Group(i / ChannelsPerGroup), Index: i % ChannelsPerGroup}, true
}

// Counters holds one position counter per channel.
// It is a value type; copies are independent of the decoder.
type Counters [NumGroups][ChannelsPerGroup]int32

// Get returns the counter for a channel.
func (c Counters) Get(ch Channel) int32 {
	return c[ch.Group][ch.Index]
}

// Sub returns the per-channel difference c - prev.
func (c Counters) Sub(prev Counters) Counters {
	var d Counters
	for g := range c {
		for i := range c[g] {
			d[g][i] = c[g][i] - prev[g][i]
		}
	}
	return d
}

// Add returns the per-channel sum c + other.
func (c Counters) Add(other Counters) Counters {
	var s Counters
	for g := range c {
		for i := range c[g] {
			s[g][i] = c[g][i] + other[g][i]
		}
	}
	return s
}

// ByName returns the counters keyed by group name ("A".."D").
func (c Counters) ByName() map[string][ChannelsPerGroup]int32 {
	m := make(map[string][ChannelsPerGroup]int32, NumGroups)
	for _, g := range Groups {
		m[g.String()] = c[g]
	}
	return m
}

// Snapshot is a point-in-time copy of the decoder state.
type Snapshot struct {
	Counters   Counters
	Samples    [NumGroups]byte
	Iterations uint64
	Seeded     bool
}

// CounterReport is a counter update to be published.
type CounterReport struct {
	Timestamp  time.Time
	Iterations uint64
	Counters   Counters
	// Deltas holds the change of each counter since the previous report.
	Deltas Counters
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp  time.Time
	Uptime     time.Duration
	Iterations uint64
	Reports    int
}
