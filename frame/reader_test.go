package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/legamerdc/sockio/socket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReceiver 按顺序返回预设的分片；nil 分片表示 ErrWouldBlock，耗尽后返回 0（对端关闭）。
type scriptedReceiver struct {
	chunks [][]byte
	err    error
}

func (r *scriptedReceiver) Recv(p []byte, _ bool) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	c := r.chunks[0]
	if c == nil {
		r.chunks = r.chunks[1:]
		return 0, socket.ErrWouldBlock
	}
	n := copy(p, c)
	if n == len(c) {
		r.chunks = r.chunks[1:]
	} else {
		r.chunks[0] = c[n:]
	}
	return n, nil
}

func frames(t *testing.T, payloads ...string) []byte {
	t.Helper()
	var out []byte
	for i, p := range payloads {
		var err error
		out, err = AppendFrame(out, []byte(p), i%2 == 1)
		require.NoError(t, err)
	}
	return out
}

func TestDrainAcrossPartialReads(t *testing.T) {
	wire := frames(t, "one", "two", "three")
	src := &scriptedReceiver{chunks: [][]byte{wire[:4], nil, wire[4:9], wire[9:], nil}}
	r := NewReader(src, 0)

	var got []string
	collect := func(p []byte) error {
		got = append(got, string(p))
		return nil
	}
	require.NoError(t, r.Drain(collect))
	assert.Empty(t, got)
	assert.Equal(t, 4, r.Buffered())

	require.NoError(t, r.Drain(collect))
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Zero(t, r.Buffered())

	assert.ErrorIs(t, r.Drain(collect), io.EOF)
}

func TestDrainFrameWrappingBuffer(t *testing.T) {
	first := bytes.Repeat([]byte{'a'}, 59900)
	second := make([]byte, 20100)
	for i := range second {
		second[i] = byte(i % 251)
	}
	wire, err := AppendFrame(nil, first, false)
	require.NoError(t, err)
	wire, err = AppendFrame(wire, second, false)
	require.NoError(t, err)

	// 第一块覆盖第一帧和第二帧的开头，第二块在环形缓冲末尾绕回
	src := &scriptedReceiver{chunks: [][]byte{wire[:60000], nil, wire[60000:], nil}}
	r := NewReader(src, 0)

	var got [][]byte
	collect := func(p []byte) error {
		got = append(got, p)
		return nil
	}
	require.NoError(t, r.Drain(collect))
	require.Len(t, got, 1)
	assert.Equal(t, first, got[0])

	require.NoError(t, r.Drain(collect))
	require.Len(t, got, 2)
	assert.Equal(t, second, got[1])
	assert.Zero(t, r.Buffered())
}

func TestDrainUnexpectedEOF(t *testing.T) {
	wire := frames(t, "truncated")
	r := NewReader(&scriptedReceiver{chunks: [][]byte{wire[:5]}}, 0)
	assert.ErrorIs(t, r.Drain(func([]byte) error { return nil }), io.ErrUnexpectedEOF)
}

func TestDrainStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	r := NewReader(&scriptedReceiver{chunks: [][]byte{frames(t, "a", "b")}}, 0)
	calls := 0
	err := r.Drain(func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDrainRejectsOversizedFrame(t *testing.T) {
	wire := frames(t, "0123456789")
	r := NewReader(&scriptedReceiver{chunks: [][]byte{wire}}, 4)
	assert.ErrorIs(t, r.Drain(func([]byte) error { return nil }), ErrFrameTooLarge)
}

func TestReadFrameBlocking(t *testing.T) {
	wire := frames(t, "alpha", "beta")
	boom := errors.New("reset")
	r := NewReader(&scriptedReceiver{chunks: [][]byte{wire[:3], wire[3:]}, err: boom}, 0)

	p, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(p))
	p, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "beta", string(p))

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, boom)
}
