package frame

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSizes(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantHdr int
	}{
		{name: "empty", size: 0, wantHdr: 2},
		{name: "short max", size: shortHeadMaxLen, wantHdr: 2},
		{name: "long min", size: shortHeadMaxLen + 1, wantHdr: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{'a'}, tt.size)
			f, err := AppendFrame(nil, payload, false)
			require.NoError(t, err)
			assert.Len(t, f, tt.wantHdr+tt.size)

			got, n, err := ParseFrame(f, 0)
			require.NoError(t, err)
			assert.Equal(t, len(f), n)
			assert.Equal(t, payload, got)
		})
	}
}

func TestCompressedFrame(t *testing.T) {
	payload := bytes.Repeat([]byte("sockio "), 1000)
	f, err := AppendFrame([]byte("prefix"), payload, true)
	require.NoError(t, err)
	assert.Equal(t, "prefix", string(f[:6]))
	assert.Less(t, len(f)-6, len(payload))
	assert.NotZero(t, f[6]&0x80)

	got, n, err := ParseFrame(f[6:], 0)
	require.NoError(t, err)
	assert.Equal(t, len(f)-6, n)
	assert.Equal(t, payload, got)
}

func TestParseIncomplete(t *testing.T) {
	f, err := AppendFrame(nil, bytes.Repeat([]byte{'x'}, 10000), false)
	require.NoError(t, err)

	for _, cut := range []int{0, 1, 3, len(f) - 1} {
		p, n, err := ParseFrame(f[:cut], 0)
		require.NoError(t, err, "cut=%d", cut)
		assert.Zero(t, n)
		assert.Nil(t, p)
	}
}

func TestParseLimits(t *testing.T) {
	f, err := AppendFrame(nil, make([]byte, 100), false)
	require.NoError(t, err)
	_, _, err = ParseFrame(f, 99)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// 压缩后很小但解压后超过上限
	z, err := AppendFrame(nil, make([]byte, 4096), true)
	require.NoError(t, err)
	_, _, err = ParseFrame(z, 1024)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	_, _, err = ParseFrame([]byte{0x40, 0x01, 'a'}, 0)
	assert.ErrorIs(t, err, ErrReservedBits)
}

func TestParseCorruptCompressed(t *testing.T) {
	_, _, err := ParseFrame([]byte{0x80, 0x03, 1, 2, 3}, 0)
	assert.Error(t, err)
}

// zeroBomb 返回一个流式压缩（不声明内容长度）的帧，解压后为 size 字节的 0。
func zeroBomb(t *testing.T, size int) []byte {
	t.Helper()
	var body bytes.Buffer
	enc, err := zstd.NewWriter(&body, zstd.WithWindowSize(zstdWindow))
	require.NoError(t, err)
	chunk := make([]byte, 1<<20)
	for written := 0; written < size; written += len(chunk) {
		_, err := enc.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, enc.Close())

	f, err := appendHeader(nil, body.Len(), true)
	require.NoError(t, err)
	return append(f, body.Bytes()...)
}

func allocatedBy(fn func()) uint64 {
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	fn()
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc
}

func TestParseStopsDecompressingAtLimit(t *testing.T) {
	const limit = 1 << 20
	f := zeroBomb(t, 64<<20)
	require.Less(t, len(f), limit)

	var err error
	alloc := allocatedBy(func() { _, _, err = ParseFrame(f, limit) })
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Less(t, alloc, uint64(32<<20))

	// 声明了内容长度的帧在解压之前就被拒绝
	declared, err := AppendFrame(nil, make([]byte, 4<<20), true)
	require.NoError(t, err)
	alloc = allocatedBy(func() { _, _, err = ParseFrame(declared, limit) })
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Less(t, alloc, uint64(limit))
}
