package logic

// DecodeChannel updates counter for one channel given its previous and current
// 2-bit readings. Ambiguous double-bit changes leave the counter untouched.
func DecodeChannel(prev, cur uint8, counter *int32) {
	if d := Delta(TransitionCode(prev, cur)); d != 0 {
		*counter += d
	}
}
