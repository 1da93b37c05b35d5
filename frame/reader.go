package frame

import (
	"errors"
	"io"

	"github.com/legamerdc/sockio/internal/ring"
	"github.com/legamerdc/sockio/socket"
)

// Receiver 是 Reader 的数据来源，*socket.Socket 满足该接口。
// 非阻塞来源在无数据时返回 socket.ErrWouldBlock；返回 0 且无错误表示对端关闭。
type Receiver interface {
	Recv(p []byte, waitAll bool) (int, error)
}

const readChunk = 64 << 10

// Reader 把字节流切分为帧。不是并发安全的。
type Reader struct {
	src   Receiver
	buf   *ring.Buffer
	limit int
	chunk []byte
	eof   bool
}

// NewReader 返回从 src 读取的 Reader。maxPayload<=0 时使用 DefaultMaxPayload。
func NewReader(src Receiver, maxPayload int) *Reader {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Reader{
		src:   src,
		buf:   ring.New(4096, maxPayload+MaxHeaderLen+readChunk),
		limit: maxPayload,
		chunk: make([]byte, readChunk),
	}
}

// Buffered 返回缓冲中尚未组成完整帧的字节数。
func (r *Reader) Buffered() int { return r.buf.Len() }

// next 从缓冲中取出一帧；不完整时返回 nil, nil。
func (r *Reader) next() ([]byte, error) {
	n, err := frameLen(r.buf.Peek(MaxHeaderLen), r.limit)
	if err != nil {
		return nil, err
	}
	if n == 0 || r.buf.Len() < n {
		return nil, nil
	}
	view := r.buf.Peek(n)
	payload, _, err := ParseFrame(view, r.limit)
	if err != nil {
		return nil, err
	}
	// 未压缩帧引用环形缓冲，Discard 之后会被覆盖
	out := make([]byte, len(payload))
	copy(out, payload)
	r.buf.Discard(n)
	return out, nil
}

func (r *Reader) endErr() error {
	if r.buf.Len() > 0 {
		return io.ErrUnexpectedEOF
	}
	return io.EOF
}

// fill 执行一次 Recv 并把数据放入缓冲。
func (r *Reader) fill() error {
	n, err := r.src.Recv(r.chunk, false)
	if n > 0 {
		if _, werr := r.buf.Write(r.chunk[:n]); werr != nil {
			return ErrFrameTooLarge
		}
	}
	if err != nil {
		return err
	}
	if n == 0 {
		r.eof = true
	}
	return nil
}

// Drain 供边沿触发的处理函数使用：读到 socket.ErrWouldBlock 为止，每个完整帧回调一次 fn。
// 返回 nil 表示本次就绪已读空；对端关闭时返回 io.EOF（残留半帧时为 io.ErrUnexpectedEOF）；
// fn 的错误原样返回。
func (r *Reader) Drain(fn func(payload []byte) error) error {
	for {
		for {
			p, err := r.next()
			if err != nil {
				return err
			}
			if p == nil {
				break
			}
			if err := fn(p); err != nil {
				return err
			}
		}
		if r.eof {
			return r.endErr()
		}
		if err := r.fill(); err != nil {
			if errors.Is(err, socket.ErrWouldBlock) {
				return nil
			}
			return err
		}
	}
}

// ReadFrame 阻塞读取下一帧，用于阻塞 socket。
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		p, err := r.next()
		if err != nil || p != nil {
			return p, err
		}
		if r.eof {
			return nil, r.endErr()
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}
