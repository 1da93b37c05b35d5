// Package socket 提供双栈地址解析与连接建立：把 (node, service) 解析为候选地址序列，
// 按顺序逐个尝试 open/setsockopt/bind/connect/listen，第一个成功的候选胜出。
package socket

import (
	"net/netip"
	"strconv"
)

// Family 是候选地址/端点的地址族。
type Family int

const (
	FamilyUnspec Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// SockType 区分流式与数据报 socket。
type SockType int

const (
	SockStream SockType = iota + 1
	SockDatagram
)

func (t SockType) String() string {
	if t == SockStream {
		return "stream"
	}
	return "datagram"
}

// sockaddr_in / sockaddr_in6 的长度
const (
	sockaddrInLen  = 16
	sockaddrIn6Len = 28
)

// Endpoint 是 {IPv4, IPv6} 的带标签值类型；零值表示空（未填充）。
// 标签由地址本身决定：IPv4-mapped IPv6 地址仍然是 IPv6 变体。
type Endpoint struct {
	ap netip.AddrPort
}

// EndpointFrom 由 netip.AddrPort 构造端点。
func EndpointFrom(ap netip.AddrPort) Endpoint { return Endpoint{ap: ap} }

// ParseEndpoint 解析 "1.2.3.4:80" / "[::1]:80" 形式的字符串。
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{ap: ap}, nil
}

func (e Endpoint) IsValid() bool            { return e.ap.IsValid() }
func (e Endpoint) AddrPort() netip.AddrPort { return e.ap }
func (e Endpoint) Addr() netip.Addr         { return e.ap.Addr() }
func (e Endpoint) Port() int                { return int(e.ap.Port()) }

// Family 返回当前填充的变体。
func (e Endpoint) Family() Family {
	switch {
	case !e.ap.IsValid():
		return FamilyUnspec
	case e.ap.Addr().Is4():
		return FamilyIPv4
	default:
		return FamilyIPv6
	}
}

// Len 返回当前变体对应的 sockaddr 长度，空端点为 0。
func (e Endpoint) Len() int {
	switch e.Family() {
	case FamilyIPv4:
		return sockaddrInLen
	case FamilyIPv6:
		return sockaddrIn6Len
	default:
		return 0
	}
}

// IsV4Mapped 报告是否为 ::ffff:a.b.c.d 形式。
func (e Endpoint) IsV4Mapped() bool {
	return e.ap.IsValid() && e.ap.Addr().Is4In6()
}

// Unmap 把 IPv4-mapped 端点还原为 IPv4 变体，其它端点原样返回。
func (e Endpoint) Unmap() Endpoint {
	if !e.IsV4Mapped() {
		return e
	}
	return Endpoint{ap: netip.AddrPortFrom(e.ap.Addr().Unmap(), e.ap.Port())}
}

// Human 返回可读的地址与端口（对应 C 版本的 socket_tohuman）。
func (e Endpoint) Human() (ip string, port int) {
	if !e.ap.IsValid() {
		return "", 0
	}
	return e.ap.Addr().String(), int(e.ap.Port())
}

func (e Endpoint) String() string {
	if !e.ap.IsValid() {
		return "<nil>"
	}
	ip, port := e.Human()
	if e.Family() == FamilyIPv6 {
		return "[" + ip + "]:" + strconv.Itoa(port)
	}
	return ip + ":" + strconv.Itoa(port)
}
