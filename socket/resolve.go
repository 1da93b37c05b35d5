package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HintFlags 对应 getaddrinfo 的 ai_flags 子集。
type HintFlags uint8

const (
	HintPassive    HintFlags = 1 << iota // 用于 bind 的通配地址
	HintAddrConfig                       // 只返回本机配置了（非回环）地址的族
	HintV4Mapped                         // Family=IPv6 时把 IPv4 结果映射为 ::ffff:a.b.c.d
	HintAll                              // 与 V4Mapped 同用：IPv6 与映射后的 IPv4 都返回

	hintMask = HintPassive | HintAddrConfig | HintV4Mapped | HintAll
)

// Hints 是一次查询的约束。
type Hints struct {
	Family Family
	Type   SockType
	Flags  HintFlags
}

// validate 模拟 getaddrinfo 对非法组合返回 EAI_BADFLAGS。
func (h Hints) validate() error {
	if h.Flags&^hintMask != 0 {
		return ErrBadFlags
	}
	if h.Flags&HintAll != 0 && h.Flags&HintV4Mapped == 0 {
		return ErrBadFlags
	}
	if h.Flags&HintV4Mapped != 0 && h.Family != FamilyIPv6 {
		return ErrBadFlags
	}
	return nil
}

// Candidate 是一个可以尝试 bind/connect 的解析结果。
type Candidate struct {
	Family   Family
	Type     SockType
	Protocol int
	Endpoint Endpoint
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s/%s %s", c.Family, c.Type, c.Endpoint)
}

// unmapped 把 IPv4-mapped 候选改写为纯 IPv4 候选。
func (c Candidate) unmapped() Candidate {
	c.Endpoint = c.Endpoint.Unmap()
	c.Family = c.Endpoint.Family()
	return c
}

// LookupBackend 把 (node, service, hints) 解析为有序候选序列。
// 返回顺序即平台的地址族偏好，调用方不得重排。
type LookupBackend interface {
	Lookup(ctx context.Context, node, service string, hints Hints) ([]Candidate, error)
}

// LookupFunc 把普通函数适配为 LookupBackend。
type LookupFunc func(ctx context.Context, node, service string, hints Hints) ([]Candidate, error)

func (f LookupFunc) Lookup(ctx context.Context, node, service string, hints Hints) ([]Candidate, error) {
	return f(ctx, node, service, hints)
}

// 部分平台对回环名字 + AI_ADDRCONFIG 会错误地返回失败
var loopbackNames = map[string]struct{}{
	"localhost":               {},
	"localhost.localdomain":   {},
	"localhost6":              {},
	"localhost6.localdomain6": {},
}

func isLoopbackName(node string) bool {
	_, ok := loopbackNames[strings.ToLower(strings.TrimSuffix(node, "."))]
	return ok
}

// Resolve 返回 (node, service) 的双栈候选序列。
//
// 查询以 IPv6 + V4Mapped|All 发出，单个序列同时覆盖两个地址族；默认带 AddrConfig，
// 回环名字除外。后端以 ErrBadFlags 拒绝时去掉 AddrConfig 重试且仅重试一次，
// 其它错误立即返回。所有失败都包装为 *ResolutionError。
func (s *Stack) Resolve(ctx context.Context, node, service string, wantStream, passive bool) ([]Candidate, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	hints := Hints{Family: FamilyIPv6, Type: SockDatagram, Flags: HintV4Mapped | HintAll}
	if wantStream {
		hints.Type = SockStream
	}
	if passive {
		hints.Flags |= HintPassive
	}
	if !isLoopbackName(node) {
		hints.Flags |= HintAddrConfig
	}

	span := newSpanID()
	t0 := time.Now()
	s.log.Debug("resolveStart",
		zap.String("span", span),
		zap.String("node", node),
		zap.String("service", service),
		zap.Bool("passive", passive),
	)

	cands, err := s.backend.Lookup(ctx, node, service, hints)
	if errors.Is(err, ErrBadFlags) && hints.Flags&HintAddrConfig != 0 {
		s.log.Debug("resolveRetry", zap.String("span", span), zap.Error(err))
		hints.Flags &^= HintAddrConfig
		cands, err = s.backend.Lookup(ctx, node, service, hints)
	}
	if err == nil && len(cands) == 0 {
		err = ErrNoCandidates
	}

	s.log.Debug("resolveDone",
		zap.String("span", span),
		zap.Int("candidates", len(cands)),
		zap.Duration("elapsed", time.Since(t0)),
		zap.Error(err),
	)
	if err != nil {
		return nil, &ResolutionError{Node: node, Service: service, Err: err}
	}
	return cands, nil
}

// InterfaceFamilies 报告本机是否配置了非回环的 IPv4 / IPv6 地址（AddrConfig 的依据）。
func InterfaceFamilies() (hasV4, hasV6 bool, err error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return false, false, err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipn.IP)
		if !ok || ip.IsLoopback() {
			continue
		}
		if ip.Unmap().Is4() {
			hasV4 = true
		} else if !ip.IsLinkLocalUnicast() {
			hasV6 = true
		}
	}
	return hasV4, hasV6, nil
}

// SystemBackend 基于 net.Resolver 的后端，语义对齐 getaddrinfo。
type SystemBackend struct {
	Resolver   *net.Resolver
	Interfaces func() (hasV4, hasV6 bool, err error)
}

// NewSystemBackend 返回使用 net.DefaultResolver 的后端。
func NewSystemBackend() *SystemBackend {
	return &SystemBackend{Resolver: net.DefaultResolver, Interfaces: InterfaceFamilies}
}

func (b *SystemBackend) Lookup(ctx context.Context, node, service string, h Hints) ([]Candidate, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	port, err := lookupPort(ctx, b.Resolver, h.Type, service)
	if err != nil {
		return nil, err
	}
	if addrs, ok := literalAddrs(node, h); ok {
		return shapeCandidates(addrs, port, h), nil
	}
	ips, err := b.Resolver.LookupNetIP(ctx, "ip", node)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchHost, node)
		}
		return nil, err
	}
	if h.Flags&HintAddrConfig != 0 {
		if ips, err = filterAddrConfig(ips, b.Interfaces); err != nil {
			return nil, err
		}
	}
	return shapeCandidates(ips, port, h), nil
}

// lookupPort 解析 service：1..65535 的十进制端口或系统已知的服务名。"0" 非法。
func lookupPort(ctx context.Context, r *net.Resolver, typ SockType, service string) (int, error) {
	if service == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadService)
	}
	if n, err := strconv.Atoi(service); err == nil {
		if n <= 0 || n > 65535 {
			return 0, fmt.Errorf("%w: port %d out of range", ErrBadService, n)
		}
		return n, nil
	}
	if r == nil {
		r = net.DefaultResolver
	}
	network := "udp"
	if typ == SockStream {
		network = "tcp"
	}
	port, err := r.LookupPort(ctx, network, service)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadService, err)
	}
	if port <= 0 {
		return 0, fmt.Errorf("%w: %q has no port", ErrBadService, service)
	}
	return port, nil
}

// literalAddrs 处理不需要查询的 node：空 node（通配或回环）与数字地址。
func literalAddrs(node string, h Hints) ([]netip.Addr, bool) {
	if node == "" {
		if h.Flags&HintPassive != 0 {
			return []netip.Addr{netip.IPv6Unspecified(), netip.IPv4Unspecified()}, true
		}
		return []netip.Addr{netip.IPv6Loopback(), netip.AddrFrom4([4]byte{127, 0, 0, 1})}, true
	}
	addr, err := netip.ParseAddr(node)
	if err != nil {
		return nil, false
	}
	return []netip.Addr{addr}, true
}

func filterAddrConfig(ips []netip.Addr, interfaces func() (bool, bool, error)) ([]netip.Addr, error) {
	if interfaces == nil {
		interfaces = InterfaceFamilies
	}
	hasV4, hasV6, err := interfaces()
	if err != nil {
		return nil, err
	}
	out := ips[:0:0]
	for _, ip := range ips {
		if ip.Unmap().Is4() && !hasV4 || !ip.Unmap().Is4() && !hasV6 {
			continue
		}
		out = append(out, ip)
	}
	return out, nil
}

// shapeCandidates 按 hints 的族与映射规则把地址转为候选，保持输入顺序。
func shapeCandidates(ips []netip.Addr, port int, h Hints) []Candidate {
	hasV6 := false
	for _, ip := range ips {
		if !ip.Unmap().Is4() {
			hasV6 = true
			break
		}
	}
	proto := 17
	if h.Type == SockStream {
		proto = 6
	}
	var out []Candidate
	for _, ip := range ips {
		v4 := ip.Unmap().Is4()
		switch h.Family {
		case FamilyIPv4:
			if !v4 {
				continue
			}
			ip = ip.Unmap()
		case FamilyIPv6:
			if v4 {
				if h.Flags&HintV4Mapped == 0 || (hasV6 && h.Flags&HintAll == 0) {
					continue
				}
				ip = netip.AddrFrom16(ip.Unmap().As16())
			}
		default:
			ip = ip.Unmap()
		}
		ep := EndpointFrom(netip.AddrPortFrom(ip, uint16(port)))
		out = append(out, Candidate{Family: ep.Family(), Type: h.Type, Protocol: proto, Endpoint: ep})
	}
	return out
}
