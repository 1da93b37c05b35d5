//go:build darwin

package poller

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq     int
	buf    []unix.Kevent_t
	closed atomic.Bool
}

// New 创建 kqueue 实例。
func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) Register(fd FD) error {
	if p.closed.Load() {
		return ErrClosed
	}
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		return fmt.Errorf("kevent add %d: %w", fd, err)
	}
	return nil
}

func (p *kqueuePoller) Mod(fd FD, writable bool) error {
	if p.closed.Load() {
		return ErrClosed
	}
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR}
	if !writable {
		kev.Flags = unix.EV_DELETE
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		// 关闭一个从未打开的可写过滤器
		if !writable && err == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("kevent mod %d: %w", fd, err)
	}
	return nil
}

func (p *kqueuePoller) Unregister(fd FD) error {
	if p.closed.Load() {
		return ErrClosed
	}
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		return fmt.Errorf("kevent del %d: %w", fd, err)
	}
	_ = p.Mod(fd, false)
	return nil
}

func (p *kqueuePoller) Wait(events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.buf) < len(events) {
		p.buf = make([]unix.Kevent_t, len(events))
	}
	raw := p.buf[:len(events)]
	for {
		if p.closed.Load() {
			return 0, ErrClosed
		}
		n, err := unix.Kevent(p.kq, nil, raw, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("kevent wait: %w", err)
		}
		for i := 0; i < n; i++ {
			ev := raw[i]
			out := Event{
				FD:       int(ev.Ident),
				Readable: ev.Filter == unix.EVFILT_READ,
				Writable: ev.Filter == unix.EVFILT_WRITE,
			}
			switch {
			case ev.Flags&unix.EV_ERROR != 0:
				out.Hangup = true
				out.Err = unix.Errno(ev.Data)
			case ev.Flags&unix.EV_EOF != 0 && ev.Fflags != 0:
				// EV_EOF 携带 socket 错误时才算挂断；普通 EOF 仍交给读路径
				out.Hangup = true
				out.Err = unix.Errno(ev.Fflags)
			}
			events[i] = out
		}
		return n, nil
	}
}

func (p *kqueuePoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return unix.Close(p.kq)
}
