//go:build linux

package poller

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	efd    int
	buf    []unix.EpollEvent
	closed atomic.Bool
}

// New 创建 epoll 实例。
func New() (Poller, error) {
	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollPoller{efd: efd}, nil
}

func (p *epollPoller) Register(fd FD) error {
	if p.closed.Load() {
		return ErrClosed
	}
	// 不注册 EPOLLRDHUP：对端半关闭仍以可读交给处理函数，由 read 返回 0 感知
	ev := &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(p.efd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl add %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Mod(fd FD, writable bool) error {
	if p.closed.Load() {
		return ErrClosed
	}
	var flags uint32 = unix.EPOLLIN | unix.EPOLLET
	if writable {
		flags |= unix.EPOLLOUT
	}
	ev := &unix.EpollEvent{Events: flags, Fd: int32(fd)}
	if err := unix.EpollCtl(p.efd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl mod %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Unregister(fd FD) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := unix.EpollCtl(p.efd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.buf) < len(events) {
		p.buf = make([]unix.EpollEvent, len(events))
	}
	raw := p.buf[:len(events)]
	for {
		if p.closed.Load() {
			return 0, ErrClosed
		}
		n, err := unix.EpollWait(p.efd, raw, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		for i := 0; i < n; i++ {
			ev := raw[i]
			events[i] = Event{
				FD:       int(ev.Fd),
				Readable: ev.Events&unix.EPOLLIN != 0,
				Writable: ev.Events&unix.EPOLLOUT != 0,
			}
			if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				events[i].Hangup = true
				events[i].Err = hangupCause(int(ev.Fd))
			}
		}
		return n, nil
	}
}

func (p *epollPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return unix.Close(p.efd)
}

// hangupCause 取出挂断描述符上的 SO_ERROR，没有挂起错误时返回 errHangup。
func hangupCause(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil || v == 0 {
		return errHangup
	}
	return unix.Errno(v)
}
