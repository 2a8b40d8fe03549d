package logic

// decodeTable maps a transition code (previous pair in bits 3-2, current pair
// in bits 1-0) to a counter delta. The legal Gray sequence is 00, 01, 11, 10.
//
//	prev cur  code delta
//	00   00   0     0
//	00   01   1    -1
//	00   10   2    +1
//	00   11   3     0  both bits changed
//	01   00   4    +1
//	01   01   5     0
//	01   10   6     0  both bits changed
//	01   11   7    -1
//	10   00   8    -1
//	10   01   9     0  both bits changed
//	10   10   10    0
//	10   11   11   +1
//	11   00   12    0  both bits changed
//	11   01   13   +1
//	11   10   14   -1
//	11   11   15    0
var decodeTable = [16]int8{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// TransitionCode combines the low two bits of prev and cur into a 4-bit
// table index.
func TransitionCode(prev, cur uint8) uint8 {
	return (prev&0b11)<<2 | cur&0b11
}

// Delta returns the counter change for a transition code. Only the low four
// bits of code are used.
func Delta(code uint8) int32 {
	return int32(decodeTable[code&0x0F])
}
