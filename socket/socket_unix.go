//go:build linux || darwin

package socket

import (
	"fmt"
	"os"

	"github.com/legamerdc/sockio/internal/netutil"
	"golang.org/x/sys/unix"
)

// Send 写出 p 的全部字节，EINTR 自动重试。非阻塞 socket 写满时返回已写字节数与 ErrWouldBlock。
func (s *Socket) Send(p []byte) (int, error) {
	if s.Closed() {
		return 0, ErrSocketClosed
	}
	off := 0
	for off < len(p) {
		n, err := unix.Write(s.fd, p[off:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				return off, ErrWouldBlock
			}
			return off, err
		}
		off += n
	}
	return off, nil
}

// Recv 读取数据。waitAll=false 时最多一次读；true 时读满 p 或遇到对端关闭。
// 返回 0 且 err==nil 表示对端有序关闭。
func (s *Socket) Recv(p []byte, waitAll bool) (int, error) {
	if s.Closed() {
		return 0, ErrSocketClosed
	}
	off := 0
	for off < len(p) {
		n, err := unix.Read(s.fd, p[off:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				return off, ErrWouldBlock
			}
			return off, err
		}
		if n == 0 {
			break
		}
		off += n
		if !waitAll {
			break
		}
	}
	return off, nil
}

// SendTo 向 ep 发送一个数据报。
func (s *Socket) SendTo(p []byte, ep Endpoint) (int, error) {
	if s.Closed() {
		return 0, ErrSocketClosed
	}
	sa, err := sockaddrOf(ep)
	if err != nil {
		return 0, err
	}
	for {
		err = unix.Sendto(s.fd, p, 0, sa)
		switch err {
		case nil:
			return len(p), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// RecvFrom 接收一个数据报并返回其来源。
func (s *Socket) RecvFrom(p []byte) (int, Endpoint, error) {
	if s.Closed() {
		return 0, Endpoint{}, ErrSocketClosed
	}
	for {
		n, sa, err := unix.Recvfrom(s.fd, p, 0)
		switch err {
		case nil:
			return n, endpointOf(sa), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, Endpoint{}, ErrWouldBlock
		default:
			return 0, Endpoint{}, err
		}
	}
}

// Shutdown 关闭连接的读、写或双向。
func (s *Socket) Shutdown(how ShutdownHow) error {
	if s.Closed() {
		return ErrSocketClosed
	}
	mode := unix.SHUT_RDWR
	switch how {
	case ShutRead:
		mode = unix.SHUT_RD
	case ShutWrite:
		mode = unix.SHUT_WR
	}
	return unix.Shutdown(s.fd, mode)
}

// SendFile 把 f 从 offset 开始的 count 字节发送到 socket，返回实际发送的字节数。
func (s *Socket) SendFile(f *os.File, offset int64, count int) (int, error) {
	if s.Closed() {
		return 0, ErrSocketClosed
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}
	var (
		written int
		serr    error
	)
	cerr := rc.Control(func(infd uintptr) {
		off := offset
		for written < count {
			n, err := unix.Sendfile(s.fd, int(infd), &off, count-written)
			if n > 0 {
				written += n
			}
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				serr = ErrWouldBlock
				return
			}
			if err != nil {
				serr = err
				return
			}
			if n == 0 {
				return // EOF
			}
		}
	})
	if cerr != nil {
		return written, cerr
	}
	return written, serr
}

// LocalEndpoint 返回 getsockname 的结果。
func (s *Socket) LocalEndpoint() (Endpoint, error) {
	if s.Closed() {
		return Endpoint{}, ErrSocketClosed
	}
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return Endpoint{}, err
	}
	return endpointOf(sa), nil
}

// PeerEndpoint 返回 getpeername 的结果。
func (s *Socket) PeerEndpoint() (Endpoint, error) {
	if s.Closed() {
		return Endpoint{}, ErrSocketClosed
	}
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return Endpoint{}, err
	}
	return endpointOf(sa), nil
}

// setBroadcast 可在测试中替换
var setBroadcast = netutil.SetBroadcast

// Broadcast 创建开启 SO_BROADCAST 的 IPv4 数据报 socket。
func (s *Stack) Broadcast() (*Socket, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	fd, err := netutil.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	if err := setBroadcast(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socket: set broadcast: %w", err)
	}
	return newSocket(fd, s.sys), nil
}

// Socketpair 返回一对已连接的本地流式 socket（阻塞模式）。
func (s *Stack) Socketpair() (*Socket, *Socket, error) {
	if err := s.check(); err != nil {
		return nil, nil, err
	}
	fds, err := netutil.Socketpair()
	if err != nil {
		return nil, nil, err
	}
	return newSocket(fds[0], s.sys), newSocket(fds[1], s.sys), nil
}

// SetNonblock 切换阻塞模式，之后 Accept 出的 socket 继承该模式。
func (s *Socket) SetNonblock(on bool) error {
	if s.Closed() {
		return ErrSocketClosed
	}
	if err := netutil.SetNonblock(s.fd, on); err != nil {
		return err
	}
	s.nb = on
	return nil
}
