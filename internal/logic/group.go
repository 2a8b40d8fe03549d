package logic

// DecodeGroup splits a group's previous and current byte into four 2-bit
// channel pairs (channel 0 = bits 0-1 ... channel 3 = bits 6-7) and decodes
// each one into its own counter, in channel order.
func DecodeGroup(prev, cur byte, counters *[ChannelsPerGroup]int32) {
	for i := 0; i < ChannelsPerGroup; i++ {
		shift := uint(2 * i)
		DecodeChannel(prev>>shift, cur>>shift, &counters[i])
	}
}

// PairState returns the 2-bit reading of channel i within a group byte.
func PairState(sample byte, i int) uint8 {
	return (sample >> uint(2*i)) & 0b11
}
