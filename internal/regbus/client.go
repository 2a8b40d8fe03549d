package regbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sweeney/quad-decoder/internal/logic"
)

// StatusError is returned by Client calls answered with a non-OK status.
type StatusError byte

func (e StatusError) Error() string {
	switch byte(e) {
	case StatusBadCommand:
		return "regbus: bad command"
	case StatusBadArgument:
		return "regbus: bad argument"
	case StatusBadCRC:
		return "regbus: bad crc"
	}
	return fmt.Sprintf("regbus: status %d", byte(e))
}

// ErrTimeout is returned when the device does not answer a request in time.
var ErrTimeout = errors.New("regbus: response timeout")

// DefaultTimeout bounds how long Call waits for a response.
const DefaultTimeout = time.Second

// Client is the host side of the register bus. It is not safe for
// concurrent use.
type Client struct {
	// Timeout bounds the wait for a response. Reads returning no data (a
	// serial read timeout) are retried until it runs out.
	Timeout time.Duration

	rw      io.ReadWriter
	pending []byte
}

// NewClient creates a Client talking over rw.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw, Timeout: DefaultTimeout}
}

// Call sends one request and waits for its response.
func (c *Client) Call(cmd byte, args ...byte) ([]byte, error) {
	if _, err := c.rw.Write(Frame{Code: cmd, Data: args}.Encode()); err != nil {
		return nil, fmt.Errorf("regbus: write: %w", err)
	}

	deadline := time.Now().Add(c.Timeout)
	buf := make([]byte, 128)
	for {
		resp, n, err := ParseFrame(c.pending)
		switch {
		case err == nil:
			c.pending = c.pending[n:]
			if resp.Code != StatusOK {
				return nil, StatusError(resp.Code)
			}
			return resp.Data, nil
		case errors.Is(err, ErrBadLength):
			c.pending = c.pending[1:]
			continue
		case errors.Is(err, ErrBadCRC):
			c.pending = c.pending[n:]
			return nil, err
		}

		m, rerr := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:m]...)
		if rerr != nil {
			return nil, fmt.Errorf("regbus: read: %w", rerr)
		}
		if m == 0 && !time.Now().Before(deadline) {
			c.pending = nil
			return nil, ErrTimeout
		}
	}
}

// ReadCounter returns one channel's counter.
func (c *Client) ReadCounter(ch logic.Channel) (int32, error) {
	data, err := c.Call(CmdReadCounter, byte(ch.Flat()))
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("regbus: counter response has %d bytes", len(data))
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

// ReadAll returns every counter.
func (c *Client) ReadAll() (logic.Counters, error) {
	var out logic.Counters
	data, err := c.Call(CmdReadAll)
	if err != nil {
		return out, err
	}
	if len(data) != 4*logic.NumChannels {
		return out, fmt.Errorf("regbus: read-all response has %d bytes", len(data))
	}
	for i := 0; i < logic.NumChannels; i++ {
		ch, _ := logic.ChannelFromFlat(i)
		out[ch.Group][ch.Index] = int32(binary.BigEndian.Uint32(data[4*i:]))
	}
	return out, nil
}
