//go:build linux || darwin

package netutil

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrUnsupported 表示当前平台没有对应的 socket 设施（fast-open / deferred-accept）。
var ErrUnsupported = errors.New("netutil: option not supported on this platform")

func SetNonblock(fd int, nonblock bool) error {
	return unix.SetNonblock(fd, nonblock)
}

func SetReuseAddr(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(enable))
}

func SetNoDelay(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(enable))
}

func SetBroadcast(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, boolInt(enable))
}

// SetV6Only 关闭后 AF_INET6 socket 同时承载 IPv4-mapped 地址（双栈）。
func SetV6Only(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, boolInt(enable))
}

// SetLingerOff 显式关闭 SO_LINGER，close 走正常的后台 FIN 流程。
func SetLingerOff(fd int) error {
	return unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 0, Linger: 0})
}

// IsUnsupported 判断 setsockopt 的错误是否只是“平台/内核不支持该选项”。
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported) ||
		errors.Is(err, unix.ENOPROTOOPT) ||
		errors.Is(err, unix.EOPNOTSUPP)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
