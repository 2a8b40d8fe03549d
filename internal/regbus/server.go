package regbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/sweeney/quad-decoder/internal/logic"
)

// CounterSource provides locked copies of the decoder state.
type CounterSource interface {
	Snapshot() logic.Snapshot
}

// Server answers register bus requests from a counter source.
type Server struct {
	source CounterSource

	requests atomic.Uint64
	rejected atomic.Uint64
}

// NewServer creates a Server reading from source.
func NewServer(source CounterSource) *Server {
	return &Server{source: source}
}

// Requests returns the number of frames answered and, of those, how many
// were rejected with a non-OK status.
func (s *Server) Requests() (total, rejected uint64) {
	return s.requests.Load(), s.rejected.Load()
}

// Handle answers one request. All counter data in the response comes from a
// single snapshot.
func (s *Server) Handle(req Frame) Frame {
	resp := s.handle(req)
	s.requests.Add(1)
	if resp.Code != StatusOK {
		s.rejected.Add(1)
	}
	return resp
}

func (s *Server) handle(req Frame) Frame {
	switch req.Code {
	case CmdReadCounter:
		if len(req.Data) != 1 {
			return Frame{Code: StatusBadArgument}
		}
		ch, ok := logic.ChannelFromFlat(int(req.Data[0]))
		if !ok {
			return Frame{Code: StatusBadArgument}
		}
		snap := s.source.Snapshot()
		return Frame{Code: StatusOK, Data: binary.BigEndian.AppendUint32(nil, uint32(snap.Counters.Get(ch)))}

	case CmdReadGroup:
		if len(req.Data) != 1 || !logic.Group(req.Data[0]).Valid() {
			return Frame{Code: StatusBadArgument}
		}
		snap := s.source.Snapshot()
		return Frame{Code: StatusOK, Data: appendCounters(nil, snap.Counters[req.Data[0]][:])}

	case CmdReadAll:
		if len(req.Data) != 0 {
			return Frame{Code: StatusBadArgument}
		}
		snap := s.source.Snapshot()
		data := make([]byte, 0, MaxData)
		for g := range snap.Counters {
			data = appendCounters(data, snap.Counters[g][:])
		}
		return Frame{Code: StatusOK, Data: data}

	case CmdReadSamples:
		if len(req.Data) != 0 {
			return Frame{Code: StatusBadArgument}
		}
		snap := s.source.Snapshot()
		return Frame{Code: StatusOK, Data: append([]byte(nil), snap.Samples[:]...)}

	case CmdIdentify:
		return Frame{Code: StatusOK, Data: []byte{ProtocolVersion, logic.NumChannels}}

	default:
		return Frame{Code: StatusBadCommand}
	}
}

func appendCounters(b []byte, counters []int32) []byte {
	for _, v := range counters {
		b = binary.BigEndian.AppendUint32(b, uint32(v))
	}
	return b
}

// Serve reads requests from rw and writes responses until ctx is cancelled,
// the stream ends (returns nil) or an I/O error occurs. A read that returns
// no bytes and no error is treated as a poll timeout and only re-checks ctx,
// so rw should be a port with a read timeout for prompt cancellation.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	var pending []byte
	buf := make([]byte, 128)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := rw.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			var werr error
			pending, werr = s.drain(pending, rw)
			if werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("regbus: read: %w", err)
		}
	}
}

// drain answers every complete frame in pending and returns what is left.
func (s *Server) drain(pending []byte, w io.Writer) ([]byte, error) {
	for len(pending) > 0 {
		req, n, err := ParseFrame(pending)
		switch {
		case errors.Is(err, ErrShortFrame):
			return pending, nil
		case errors.Is(err, ErrBadLength):
			log.Debugf("regbus: dropping byte 0x%02x while resyncing", pending[0])
			pending = pending[1:]
			continue
		case errors.Is(err, ErrBadCRC):
			log.Warnf("regbus: bad crc on %d byte frame", n)
			pending = pending[n:]
			s.requests.Add(1)
			s.rejected.Add(1)
			if err := s.write(w, Frame{Code: StatusBadCRC}); err != nil {
				return nil, err
			}
			continue
		}

		pending = pending[n:]
		resp := s.Handle(req)
		log.Debugf("regbus: cmd 0x%02x -> status %d (%d bytes)", req.Code, resp.Code, len(resp.Data))
		if err := s.write(w, resp); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

func (s *Server) write(w io.Writer, f Frame) error {
	if _, err := w.Write(f.Encode()); err != nil {
		return fmt.Errorf("regbus: write: %w", err)
	}
	return nil
}
