package frame

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdWindow 同时约束编码窗口与解码端接受的窗口，解码的历史缓冲不会超过它。
const zstdWindow = 8 << 20

var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
			zstd.WithWindowSize(zstdWindow),
		)
		return enc
	}}
	decoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxWindow(zstdWindow),
			zstd.WithDecoderLowmem(true),
		)
		return dec
	}}
)

func getEncoder() *zstd.Encoder  { return encoderPool.Get().(*zstd.Encoder) }
func putEncoder(e *zstd.Encoder) { encoderPool.Put(e) }
func getDecoder() *zstd.Decoder  { return decoderPool.Get().(*zstd.Decoder) }
func putDecoder(d *zstd.Decoder) { decoderPool.Put(d) }
