// Package poller 是边沿触发的就绪多路复用器：linux 上为 epoll(EPOLLET)，darwin 上为 kqueue(EV_CLEAR)。
// 每个 Poller 只应由一个 goroutine 调用 Wait。
package poller

import "errors"

// FD 表示文件描述符。
type FD = int

var (
	// ErrPlatformNotSupported 当前平台没有可用的后端
	ErrPlatformNotSupported = errors.New("poller: platform not supported")

	// ErrClosed Poller 已经 Close
	ErrClosed = errors.New("poller: closed")

	errHangup = errors.New("poller: hang-up")
)

// Event 是一次就绪通知。Hangup 为真时 Err 描述原因，Readable/Writable 可能同时为真。
type Event struct {
	FD       FD
	Readable bool
	Writable bool
	Hangup   bool
	Err      error
}

// Poller 提供注册与阻塞等待。注册一律为边沿触发的可读事件：每次就绪状态跳变只通知一次，
// 调用方必须在返回前读空（或 accept 空）该描述符。
type Poller interface {
	Register(fd FD) error
	// Mod 打开或关闭 fd 的可写通知（同样是边沿触发），可读通知保持不变。
	// 打开时若 fd 已经可写，会立即产生一次可写事件。
	Mod(fd FD, writable bool) error
	Unregister(fd FD) error
	// Wait 阻塞直到至少一个事件，无超时；EINTR 内部重试。返回写入 events 的个数。
	Wait(events []Event) (int, error)
	Close() error
}

// Handler 是 Run 的事件回调，在调用 Run 的 goroutine 中执行。
type Handler interface {
	OnReadable(fd FD)
	OnWritable(fd FD)
	OnHangup(fd FD, err error)
}

// DefaultBatch 是 Run 每次 Wait 的事件数组长度。
const DefaultBatch = 1024

// Run 循环 Wait 并分发事件，直到 Wait 返回错误。挂断事件优先，且不再回调 OnReadable/OnWritable；
// 同时可读可写时先回调 OnReadable。
func Run(p Poller, h Handler) error {
	events := make([]Event, DefaultBatch)
	for {
		n, err := p.Wait(events)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.Hangup {
				h.OnHangup(ev.FD, ev.Err)
				continue
			}
			if ev.Readable {
				h.OnReadable(ev.FD)
			}
			if ev.Writable {
				h.OnWritable(ev.FD)
			}
		}
	}
}
