//go:build darwin

package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// darwin 的 TCP_FASTOPEN 取值（netinet/tcp.h）
const tcpFastOpen = 0x105

// Socket 创建原始 socket 并设置 CLOEXEC；darwin 没有 SOCK_CLOEXEC，需要持 ForkLock。
func Socket(family, sotype, proto int) (int, error) {
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(family, sotype, proto)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	return fd, err
}

// Accept 接受一个连接；nonblock 决定新 fd 是否非阻塞。
func Accept(fd int, nonblock bool) (int, unix.Sockaddr, error) {
	syscall.ForkLock.RLock()
	nfd, sa, err := unix.Accept(fd)
	if err == nil {
		unix.CloseOnExec(nfd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, nil, err
	}
	// darwin 上 accept 出来的 fd 会继承监听 fd 的 O_NONBLOCK，这里显式对齐
	if err := unix.SetNonblock(nfd, nonblock); err != nil {
		unix.Close(nfd)
		return -1, nil, err
	}
	return nfd, sa, nil
}

func SetFastOpenListen(fd int, qlen int) error {
	_ = qlen // darwin 只接受开关
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpFastOpen, 1)
}

// SetFastOpenConnect darwin 客户端 TFO 需要 connectx，这里不支持。
func SetFastOpenConnect(fd int) error { return ErrUnsupported }

// SetDeferAccept darwin 没有 TCP_DEFER_ACCEPT。
func SetDeferAccept(fd int, secs int) error { return ErrUnsupported }

// Socketpair 返回一对 AF_UNIX 流式 socket。
func Socketpair() ([2]int, error) {
	syscall.ForkLock.RLock()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	return fds, err
}
