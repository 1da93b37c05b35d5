// Package frame 在流式 socket 上切分消息：每帧为 LenFlags 头（2 或 4 字节）加帧体，
// 帧体可选 zstd 压缩。Reader/Writer 适配边沿触发的非阻塞处理函数，也可用于阻塞 socket。
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxPayload 是默认的单帧上限（帧体与解压后负载都受其约束）。
const DefaultMaxPayload = 16 << 20

var (
	ErrFrameTooLarge = errors.New("frame: payload too large")
	ErrReservedBits  = errors.New("frame: reserved header bits set")
)

// AppendFrame 把 payload 编码为一帧追加到 dst。compress 为真时帧体为 zstd 压缩结果。
func AppendFrame(dst, payload []byte, compress bool) ([]byte, error) {
	body := payload
	if compress {
		enc := getEncoder()
		body = enc.EncodeAll(payload, make([]byte, 0, len(payload)/2+16))
		putEncoder(enc)
	}
	out, err := appendHeader(dst, len(body), compress)
	if err != nil {
		return dst, err
	}
	return append(out, body...), nil
}

// ParseFrame 从 buf 头部解析一帧。n==0 且 err==nil 表示数据还不完整。
// 未压缩帧的 payload 引用 buf 的内存。limit<=0 时使用 DefaultMaxPayload。
func ParseFrame(buf []byte, limit int) (payload []byte, n int, err error) {
	if limit <= 0 {
		limit = DefaultMaxPayload
	}
	used, length, compressed, err := decodeHeader(buf)
	if err != nil || used == 0 {
		return nil, 0, err
	}
	if length > limit {
		return nil, 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, limit)
	}
	if len(buf) < used+length {
		return nil, 0, nil
	}
	body := buf[used : used+length]
	if !compressed {
		return body, used + length, nil
	}
	out, err := decompress(body, limit)
	if err != nil {
		return nil, 0, err
	}
	return out, used + length, nil
}

// decompress 解压帧体，输出超过 limit 时在分配到 limit 之前就放弃。
// 帧头声明的内容长度先行检查；未声明长度的帧边解边数。
func decompress(body []byte, limit int) ([]byte, error) {
	var h zstd.Header
	if err := h.Decode(body); err == nil && h.HasFCS && h.FrameContentSize > uint64(limit) {
		return nil, fmt.Errorf("%w: %d > %d after decompression", ErrFrameTooLarge, h.FrameContentSize, limit)
	}
	dec := getDecoder()
	defer func() {
		_ = dec.Reset(nil)
		putDecoder(dec)
	}()
	if err := dec.Reset(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("frame: decompress: %w", err)
	}
	out, err := io.ReadAll(io.LimitReader(dec, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("frame: decompress: %w", err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes after decompression", ErrFrameTooLarge, limit)
	}
	return out, nil
}

// frameLen 返回 buf 头部完整帧的总长度，不完整时为 0。
func frameLen(buf []byte, limit int) (int, error) {
	used, length, _, err := decodeHeader(buf)
	if err != nil || used == 0 {
		return 0, err
	}
	if length > limit {
		return 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, limit)
	}
	return used + length, nil
}
