// Package regbus exposes the decoder counters to an external host over a
// byte stream, usually a serial line. Every request gets exactly one
// response frame.
//
// Frame layout (requests and responses):
//
//	[len][code][data...][crc hi][crc lo]
//
// len counts code+data. The CRC covers len, code and data. In a request the
// code is a command; in a response it is a status.
package regbus

import (
	"encoding/binary"
	"errors"
)

// Commands.
const (
	CmdReadCounter byte = 0x01 // arg: channel 0..15 (group*4+index)
	CmdReadGroup   byte = 0x02 // arg: group 0..3
	CmdReadAll     byte = 0x03
	CmdReadSamples byte = 0x04
	CmdIdentify    byte = 0x05
)

// Response status codes.
const (
	StatusOK          byte = 0
	StatusBadCommand  byte = 1
	StatusBadArgument byte = 2
	StatusBadCRC      byte = 3
)

// ProtocolVersion is reported by CmdIdentify.
const ProtocolVersion byte = 1

const (
	// MaxData is the largest data section of any frame (CmdReadAll).
	MaxData = 64
	// maxLen is the largest valid len byte.
	maxLen = 1 + MaxData
	// overhead is len byte plus CRC.
	overhead = 3
)

var (
	// ErrShortFrame means more bytes are needed to complete a frame.
	ErrShortFrame = errors.New("regbus: short frame")
	// ErrBadLength means the first byte cannot start a frame.
	ErrBadLength = errors.New("regbus: bad frame length")
	// ErrBadCRC means a complete frame failed its checksum.
	ErrBadCRC = errors.New("regbus: bad crc")
)

// Frame is one decoded request or response.
type Frame struct {
	Code byte
	Data []byte
}

// CRC16 is the CCITT-style checksum also used by Klipper serial framing.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// Encode returns the wire form of f. It panics if the data section exceeds
// MaxData.
func (f Frame) Encode() []byte {
	if len(f.Data) > MaxData {
		panic("regbus: frame data too long")
	}
	out := make([]byte, 0, overhead+1+len(f.Data))
	out = append(out, byte(1+len(f.Data)), f.Code)
	out = append(out, f.Data...)
	return binary.BigEndian.AppendUint16(out, CRC16(out))
}

// ParseFrame decodes the frame at the start of buf. It returns the number of
// bytes the frame occupies so the caller can drop them. With ErrShortFrame
// nothing is consumed; with ErrBadLength the caller should drop one byte and
// try again; with ErrBadCRC n covers the rejected frame.
func ParseFrame(buf []byte) (f Frame, n int, err error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrShortFrame
	}
	l := int(buf[0])
	if l == 0 || l > maxLen {
		return Frame{}, 0, ErrBadLength
	}
	n = 1 + l + 2
	if len(buf) < n {
		return Frame{}, 0, ErrShortFrame
	}
	body := buf[:1+l]
	if binary.BigEndian.Uint16(buf[1+l:n]) != CRC16(body) {
		return Frame{}, n, ErrBadCRC
	}
	f.Code = body[1]
	if l > 1 {
		f.Data = append([]byte(nil), body[2:]...)
	}
	return f, n, nil
}
