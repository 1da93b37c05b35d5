package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DNSBackend 直接向指定的递归服务器查询 AAAA/A，不经过系统解析器。
// 结果顺序固定为 AAAA 在前、A 在后，各自保持应答中的顺序。
type DNSBackend struct {
	Server     string // "host:port"，省略端口时使用 53
	Client     *dns.Client
	Resolver   *net.Resolver // 仅用于 service 名字查询
	Interfaces func() (hasV4, hasV6 bool, err error)
}

// NewDNSBackend 返回查询 server 的后端，UDP，超时 5 秒。
func NewDNSBackend(server string) *DNSBackend {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSBackend{
		Server:     server,
		Client:     &dns.Client{Net: "udp", Timeout: 5 * time.Second},
		Resolver:   net.DefaultResolver,
		Interfaces: InterfaceFamilies,
	}
}

var errDNSNoServer = errors.New("socket: dns backend has no server")

func (b *DNSBackend) Lookup(ctx context.Context, node, service string, h Hints) ([]Candidate, error) {
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
	if b.Server == "" {
		return nil, errDNSNoServer
	}

	var ips []netip.Addr
	if h.Family != FamilyIPv4 {
		v6, err := b.query(ctx, node, dns.TypeAAAA)
		if err != nil {
			return nil, err
		}
		ips = append(ips, v6...)
	}
	if h.Family != FamilyIPv6 || h.Flags&HintV4Mapped != 0 {
		v4, err := b.query(ctx, node, dns.TypeA)
		if err != nil {
			return nil, err
		}
		ips = append(ips, v4...)
	}
	if h.Flags&HintAddrConfig != 0 {
		if ips, err = filterAddrConfig(ips, b.Interfaces); err != nil {
			return nil, err
		}
	}
	return shapeCandidates(ips, port, h), nil
}

func (b *DNSBackend) query(ctx context.Context, node string, qtype uint16) ([]netip.Addr, error) {
	client := b.Client
	if client == nil {
		client = &dns.Client{Net: "udp"}
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(node), qtype)
	m.RecursionDesired = true

	in, _, err := client.ExchangeContext(ctx, m, b.Server)
	if err != nil {
		return nil, fmt.Errorf("dns %s %s: %w", dns.TypeToString[qtype], node, err)
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNoSuchHost, node)
	default:
		return nil, fmt.Errorf("dns %s %s: rcode %s", dns.TypeToString[qtype], node, dns.RcodeToString[in.Rcode])
	}

	var out []netip.Addr
	for _, rr := range in.Answer {
		switch r := rr.(type) {
		case *dns.AAAA:
			if ip, ok := netip.AddrFromSlice(r.AAAA); ok && qtype == dns.TypeAAAA {
				out = append(out, ip)
			}
		case *dns.A:
			if ip, ok := netip.AddrFromSlice(r.A.To4()); ok && qtype == dns.TypeA {
				out = append(out, ip)
			}
		}
	}
	return out, nil
}
