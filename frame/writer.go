package frame

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
	"github.com/legamerdc/sockio/socket"
)

// Sender 是 Writer 的目标，*socket.Socket 满足该接口。
type Sender interface {
	Send(p []byte) (int, error)
}

// CompressThreshold 以下的负载即使开启压缩也原样发送。
const CompressThreshold = 256

// Writer 把帧按 FIFO 顺序写入 Sender。非阻塞目标写满时剩余部分留在队列中，
// 下次 Write 或 Flush 时继续。并发安全。
type Writer struct {
	mu       sync.Mutex
	dst      Sender
	compress bool
	q        *queue.Queue // [][]byte，已编码的帧
	head     []byte       // 正在发送的帧的剩余部分
	pending  int
}

func NewWriter(dst Sender, compress bool) *Writer {
	return &Writer{dst: dst, compress: compress, q: queue.New()}
}

// Write 编码 payload 入队并尝试发送。
func (w *Writer) Write(payload []byte) error {
	f, err := AppendFrame(nil, payload, w.compress && len(payload) >= CompressThreshold)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.q.Add(f)
	w.pending += len(f)
	return w.flush()
}

// Flush 发送队列中的帧，遇到 socket.ErrWouldBlock 时保留剩余部分并返回 nil。
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

func (w *Writer) flush() error {
	for {
		if len(w.head) == 0 {
			if w.q.Length() == 0 {
				return nil
			}
			w.head = w.q.Remove().([]byte)
		}
		n, err := w.dst.Send(w.head)
		w.head = w.head[n:]
		w.pending -= n
		if err != nil {
			if errors.Is(err, socket.ErrWouldBlock) {
				return nil
			}
			return err
		}
	}
}

// Pending 返回尚未发送的字节数。
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}
