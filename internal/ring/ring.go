package ring

import (
	"errors"
)

var ErrTooLarge = errors.New("ring: write exceeds limit")

// Buffer 是按需扩容的环形字节缓冲，容量始终为 2 的幂，且不超过 limit。
// 不是并发安全的，由调用方（单个 worker 或读 goroutine）独占使用。
type Buffer struct {
	buf      []byte
	mask     int
	limit    int
	readPos  int
	writePos int
}

// New 返回初始容量为 capacity（向上取 2 的幂）的缓冲；limit<=0 表示不限制扩容。
func New(capacity, limit int) *Buffer {
	c := pow2(capacity)
	return &Buffer{buf: make([]byte, c), mask: c - 1, limit: limit}
}

func pow2(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

func (b *Buffer) Cap() int { return len(b.buf) }

func (b *Buffer) Len() int { return b.writePos - b.readPos }

func (b *Buffer) Free() int { return b.Cap() - b.Len() }

// Grow 保证至少还能写入 n 字节。扩容后超过 limit 返回 ErrTooLarge。
func (b *Buffer) Grow(n int) error {
	if n <= b.Free() {
		return nil
	}
	need := b.Len() + n
	if b.limit > 0 && need > b.limit {
		return ErrTooLarge
	}
	c := pow2(need)
	if b.limit > 0 && c > b.limit {
		c = b.limit
	}
	nb := make([]byte, c)
	ln := b.Len()
	b.copyOut(nb, ln)
	b.buf = nb
	b.readPos, b.writePos = 0, ln
	// 截断到 limit 后容量不一定是 2 的幂，mask 退化为取模
	b.mask = c - 1
	if c&(c-1) != 0 {
		b.mask = -1
	}
	return nil
}

func (b *Buffer) index(pos int) int {
	if b.mask >= 0 {
		return pos & b.mask
	}
	return pos % len(b.buf)
}

// Write 写入 p，空间不足时自动扩容。
func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.Grow(len(p)); err != nil {
		return 0, err
	}
	n := len(p)
	start := b.index(b.writePos)
	end := start + n
	if end <= len(b.buf) {
		copy(b.buf[start:end], p)
	} else {
		l := len(b.buf) - start
		copy(b.buf[start:], p[:l])
		copy(b.buf[:n-l], p[l:])
	}
	b.writePos += n
	return n, nil
}

// Peek 读取最多 n 字节但不前进读指针。数据跨越末尾时返回拷贝，否则返回内部切片的视图。
func (b *Buffer) Peek(n int) []byte {
	if n <= 0 {
		return nil
	}
	if ln := b.Len(); n > ln {
		n = ln
	}
	start := b.index(b.readPos)
	end := start + n
	if end <= len(b.buf) {
		return b.buf[start:end]
	}
	out := make([]byte, n)
	b.copyOut(out, n)
	return out
}

func (b *Buffer) copyOut(dst []byte, n int) {
	if n == 0 {
		return
	}
	start := b.index(b.readPos)
	l := min(n, len(b.buf)-start)
	copy(dst[:l], b.buf[start:start+l])
	copy(dst[l:n], b.buf[:n-l])
}

// Discard 前进读指针。
func (b *Buffer) Discard(n int) int {
	if ln := b.Len(); n > ln {
		n = ln
	}
	b.readPos += n
	if b.readPos == b.writePos {
		b.readPos, b.writePos = 0, 0
	}
	return n
}

// Reset 清空缓冲，保留已分配的容量。
func (b *Buffer) Reset() { b.readPos, b.writePos = 0, 0 }
