package regbus

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweeney/quad-decoder/internal/logic"
)

type fixedSource struct {
	snap  logic.Snapshot
	calls int
}

func (f *fixedSource) Snapshot() logic.Snapshot {
	f.calls++
	return f.snap
}

func testSource() *fixedSource {
	var c logic.Counters
	c[logic.GroupA][0] = 4000
	c[logic.GroupB][1] = -1
	c[logic.GroupD][3] = 0x01020304
	return &fixedSource{snap: logic.Snapshot{
		Counters:   c,
		Samples:    [logic.NumGroups]byte{0x02, 0x04, 0x00, 0xC0},
		Iterations: 12,
		Seeded:     true,
	}}
}

func TestCRC16(t *testing.T) {
	assert.Equal(t, uint16(0xFFFF), CRC16(nil))
	assert.Equal(t, CRC16([]byte{1, 2, 3}), CRC16([]byte{1, 2, 3}))
	assert.NotEqual(t, CRC16([]byte{1, 2, 3}), CRC16([]byte{1, 2, 4}))
}

func TestFrameEncodeParse(t *testing.T) {
	tests := []Frame{
		{Code: CmdReadAll},
		{Code: CmdReadCounter, Data: []byte{15}},
		{Code: StatusOK, Data: bytes.Repeat([]byte{0xAA}, MaxData)},
	}
	for _, f := range tests {
		wire := f.Encode()
		require.Len(t, wire, 1+1+len(f.Data)+2)
		assert.Equal(t, byte(1+len(f.Data)), wire[0])

		got, n, err := ParseFrame(wire)
		require.NoError(t, err)
		assert.Equal(t, len(wire), n)
		assert.Equal(t, f.Code, got.Code)
		assert.Equal(t, len(f.Data), len(got.Data))
		if len(f.Data) > 0 {
			assert.Equal(t, f.Data, got.Data)
		}
	}
}

func TestParseFrameErrors(t *testing.T) {
	_, _, err := ParseFrame(nil)
	assert.ErrorIs(t, err, ErrShortFrame)

	wire := Frame{Code: CmdReadGroup, Data: []byte{2}}.Encode()
	_, n, err := ParseFrame(wire[:len(wire)-1])
	assert.ErrorIs(t, err, ErrShortFrame)
	assert.Zero(t, n)

	_, _, err = ParseFrame([]byte{0, 1, 2, 3})
	assert.ErrorIs(t, err, ErrBadLength)
	_, _, err = ParseFrame([]byte{maxLen + 1})
	assert.ErrorIs(t, err, ErrBadLength)

	corrupt := append([]byte(nil), wire...)
	corrupt[2] ^= 0xFF
	_, n, err = ParseFrame(corrupt)
	assert.ErrorIs(t, err, ErrBadCRC)
	assert.Equal(t, len(wire), n)
}

func TestParseFrameLeavesTrailingBytes(t *testing.T) {
	a := Frame{Code: CmdIdentify}.Encode()
	b := Frame{Code: CmdReadAll}.Encode()
	buf := append(append([]byte(nil), a...), b...)

	f, n, err := ParseFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, CmdIdentify, f.Code)
	assert.Equal(t, len(a), n)

	f, _, err = ParseFrame(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, CmdReadAll, f.Code)
}

func TestHandleCommands(t *testing.T) {
	src := testSource()
	s := NewServer(src)

	resp := s.Handle(Frame{Code: CmdReadCounter, Data: []byte{0}})
	require.Equal(t, StatusOK, resp.Code)
	assert.Equal(t, int32(4000), int32(binary.BigEndian.Uint32(resp.Data)))

	resp = s.Handle(Frame{Code: CmdReadCounter, Data: []byte{5}})
	require.Equal(t, StatusOK, resp.Code)
	assert.Equal(t, int32(-1), int32(binary.BigEndian.Uint32(resp.Data)))

	resp = s.Handle(Frame{Code: CmdReadGroup, Data: []byte{3}})
	require.Equal(t, StatusOK, resp.Code)
	require.Len(t, resp.Data, 16)
	assert.Equal(t, []byte{1, 2, 3, 4}, resp.Data[12:])

	resp = s.Handle(Frame{Code: CmdReadAll})
	require.Equal(t, StatusOK, resp.Code)
	require.Len(t, resp.Data, 64)
	assert.Equal(t, []byte{1, 2, 3, 4}, resp.Data[60:])

	resp = s.Handle(Frame{Code: CmdReadSamples})
	require.Equal(t, StatusOK, resp.Code)
	assert.Equal(t, []byte{0x02, 0x04, 0x00, 0xC0}, resp.Data)

	resp = s.Handle(Frame{Code: CmdIdentify})
	require.Equal(t, StatusOK, resp.Code)
	assert.Equal(t, []byte{ProtocolVersion, 16}, resp.Data)

	// One snapshot per counter request.
	assert.Equal(t, 5, src.calls)
}

func TestHandleRejects(t *testing.T) {
	s := NewServer(testSource())

	tests := []struct {
		name string
		req  Frame
		want byte
	}{
		{"unknown command", Frame{Code: 0x7F}, StatusBadCommand},
		{"counter out of range", Frame{Code: CmdReadCounter, Data: []byte{16}}, StatusBadArgument},
		{"counter missing arg", Frame{Code: CmdReadCounter}, StatusBadArgument},
		{"group out of range", Frame{Code: CmdReadGroup, Data: []byte{4}}, StatusBadArgument},
		{"read all with arg", Frame{Code: CmdReadAll, Data: []byte{0}}, StatusBadArgument},
		{"samples with arg", Frame{Code: CmdReadSamples, Data: []byte{0}}, StatusBadArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Handle(tt.req)
			assert.Equal(t, tt.want, resp.Code)
			assert.Empty(t, resp.Data)
		})
	}

	total, rejected := s.Requests()
	assert.Equal(t, uint64(len(tests)), total)
	assert.Equal(t, uint64(len(tests)), rejected)
}

func startServer(t *testing.T, src CounterSource) *Client {
	t.Helper()
	host, dev := net.Pipe()
	s := NewServer(src)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), dev) }()
	t.Cleanup(func() {
		host.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("Serve did not return after close")
		}
	})
	return NewClient(host)
}

func TestServeWithClient(t *testing.T) {
	c := startServer(t, testSource())

	v, err := c.ReadCounter(logic.Channel{Group: logic.GroupA, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, int32(4000), v)

	all, err := c.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, testSource().snap.Counters, all)

	_, err = c.Call(CmdReadGroup, 9)
	var se StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StatusBadArgument, byte(se))

	id, err := c.Call(CmdIdentify)
	require.NoError(t, err)
	assert.Equal(t, []byte{ProtocolVersion, logic.NumChannels}, id)
}

func TestServeLiveDecoder(t *testing.T) {
	dec := logic.NewDecoder()
	for _, g := range logic.Groups {
		dec.Seed(g, 0)
	}
	c := startServer(t, dec)

	ch := logic.Channel{Group: logic.GroupC, Index: 2}
	for _, s := range []byte{0b10, 0b11, 0b01, 0b00} {
		dec.Apply(ch.Group, s<<4)
	}

	v, err := c.ReadCounter(ch)
	require.NoError(t, err)
	assert.Equal(t, int32(4), v)
}

// scriptedRW feeds fixed input, then idles with (0, nil) reads.
type scriptedRW struct {
	in  []byte
	out bytes.Buffer
	err error
}

func (s *scriptedRW) Read(b []byte) (int, error) {
	if len(s.in) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, s.in)
	s.in = s.in[n:]
	return n, nil
}

func (s *scriptedRW) Write(b []byte) (int, error) {
	return s.out.Write(b)
}

func TestServeResyncAndBadCRC(t *testing.T) {
	good := Frame{Code: CmdIdentify}.Encode()
	bad := Frame{Code: CmdReadAll}.Encode()
	bad[len(bad)-1] ^= 0xFF

	var in []byte
	in = append(in, 0x00, 0xFF) // garbage, dropped while resyncing
	in = append(in, bad...)
	in = append(in, good...)

	rw := &scriptedRW{in: in, err: errors.New("unplugged")}
	s := NewServer(testSource())
	err := s.Serve(context.Background(), rw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unplugged")

	out := rw.out.Bytes()
	f, n, err := ParseFrame(out)
	require.NoError(t, err)
	assert.Equal(t, StatusBadCRC, f.Code)

	f, _, err = ParseFrame(out[n:])
	require.NoError(t, err)
	assert.Equal(t, StatusOK, f.Code)
	assert.Equal(t, []byte{ProtocolVersion, logic.NumChannels}, f.Data)

	total, rejected := s.Requests()
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, uint64(1), rejected)
}

func TestServeStopsOnCancel(t *testing.T) {
	rw := &scriptedRW{}
	s := NewServer(testSource())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, rw) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestStatusErrorMessages(t *testing.T) {
	assert.Equal(t, "regbus: bad command", StatusError(StatusBadCommand).Error())
	assert.Equal(t, "regbus: status 9", StatusError(9).Error())
}

func TestClientTimesOutOnSilentDevice(t *testing.T) {
	rw := &scriptedRW{}
	c := NewClient(rw)
	c.Timeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(CmdIdentify)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("Call still waiting on a device that never answers")
	}

	// The request itself went out.
	f, _, err := ParseFrame(rw.out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, CmdIdentify, f.Code)
}

// laggyRW idles for a number of empty reads before answering.
type laggyRW struct {
	scriptedRW
	idle int
}

func (l *laggyRW) Read(b []byte) (int, error) {
	if l.idle > 0 {
		l.idle--
		return 0, nil
	}
	return l.scriptedRW.Read(b)
}

func TestClientWaitsThroughEmptyReads(t *testing.T) {
	resp := Frame{Code: StatusOK, Data: []byte{ProtocolVersion, logic.NumChannels}}.Encode()
	rw := &laggyRW{scriptedRW: scriptedRW{in: resp}, idle: 5}
	c := NewClient(rw)

	id, err := c.Call(CmdIdentify)
	require.NoError(t, err)
	assert.Equal(t, []byte{ProtocolVersion, logic.NumChannels}, id)
	assert.Equal(t, DefaultTimeout, c.Timeout)
}
