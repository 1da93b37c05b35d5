package socket

import "sync/atomic"

// ShutdownHow 对应 shutdown(2) 的 how 参数。
type ShutdownHow int

const (
	ShutRead ShutdownHow = iota
	ShutWrite
	ShutBoth
)

// Socket 独占一个描述符。所有权随 Connect/Listen/Accept 的返回转移给调用方，
// 调用方负责恰好一次 Close。
type Socket struct {
	fd     int
	sys    sysOps
	nb     bool
	closed atomic.Bool
}

func newSocket(fd int, sys sysOps) *Socket {
	return &Socket{fd: fd, sys: sys}
}

func (s *Socket) nonblock() bool { return s.nb }

// FD 返回底层描述符；Close 之后该值不再有效。
func (s *Socket) FD() int { return s.fd }

// Closed 报告 Close 是否已经被调用。
func (s *Socket) Closed() bool { return s.closed.Load() }

// Close 关闭描述符。重复调用返回 ErrSocketClosed，不会二次 close。
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSocketClosed
	}
	return s.sys.close(s.fd)
}

// Accept 从监听 socket 接受一个连接。新 socket 与监听 socket 的阻塞模式一致；
// 非阻塞监听 socket 上没有待接受的连接时返回 ErrWouldBlock。
func (s *Socket) Accept() (*Socket, Endpoint, error) {
	if s.Closed() {
		return nil, Endpoint{}, ErrSocketClosed
	}
	nfd, ep, err := s.sys.accept(s.fd, s.nonblock())
	if err != nil {
		return nil, Endpoint{}, err
	}
	ns := newSocket(nfd, s.sys)
	ns.nb = s.nb
	return ns, ep, nil
}
