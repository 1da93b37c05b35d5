//go:build linux

package netutil

import "golang.org/x/sys/unix"

// Socket 创建带 CLOEXEC 的原始 socket。
func Socket(family, sotype, proto int) (int, error) {
	return unix.Socket(family, sotype|unix.SOCK_CLOEXEC, proto)
}

// Accept 接受一个连接；nonblock 决定新 fd 是否非阻塞。
func Accept(fd int, nonblock bool) (int, unix.Sockaddr, error) {
	flags := unix.SOCK_CLOEXEC
	if nonblock {
		flags |= unix.SOCK_NONBLOCK
	}
	return unix.Accept4(fd, flags)
}

// SetFastOpenListen 在监听 socket 上开启 TFO，qlen 为 pending SYN 队列长度。
func SetFastOpenListen(fd int, qlen int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, qlen)
}

// SetFastOpenConnect 必须在 connect 之前调用。
func SetFastOpenConnect(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN_CONNECT, 1)
}

// SetDeferAccept 让内核在对端发来数据（或超时 secs 秒）之后才完成 accept。
func SetDeferAccept(fd int, secs int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, secs)
}

// Socketpair 返回一对 AF_UNIX 流式 socket。
func Socketpair() ([2]int, error) {
	return unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
}
