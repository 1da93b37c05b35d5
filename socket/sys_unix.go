//go:build linux || darwin

package socket

import (
	"errors"
	"net"
	"net/netip"

	"github.com/legamerdc/sockio/internal/netutil"
	"golang.org/x/sys/unix"
)

type unixSys struct{}

func defaultSys() sysOps { return unixSys{} }

func (unixSys) socket(fam Family, typ SockType, proto int) (int, error) {
	domain := unix.AF_INET
	if fam == FamilyIPv6 {
		domain = unix.AF_INET6
	}
	sotype := unix.SOCK_DGRAM
	if typ == SockStream {
		sotype = unix.SOCK_STREAM
	}
	return netutil.Socket(domain, sotype, proto)
}

func (unixSys) setNonblock(fd int) error          { return netutil.SetNonblock(fd, true) }
func (unixSys) setV6Only(fd int, on bool) error   { return netutil.SetV6Only(fd, on) }
func (unixSys) setLingerOff(fd int) error         { return netutil.SetLingerOff(fd) }
func (unixSys) setNoDelay(fd int) error           { return netutil.SetNoDelay(fd, true) }
func (unixSys) setReuseAddr(fd int) error         { return netutil.SetReuseAddr(fd, true) }
func (unixSys) setDeferAccept(fd, secs int) error { return netutil.SetDeferAccept(fd, secs) }
func (unixSys) setFastOpenConnect(fd int) error   { return netutil.SetFastOpenConnect(fd) }
func (unixSys) setFastOpenListen(fd, q int) error { return netutil.SetFastOpenListen(fd, q) }
func (unixSys) listen(fd, backlog int) error      { return unix.Listen(fd, backlog) }
func (unixSys) close(fd int) error                { return unix.Close(fd) }

func (unixSys) bind(fd int, ep Endpoint) error {
	sa, err := sockaddrOf(ep)
	if err != nil {
		return err
	}
	return unix.Bind(fd, sa)
}

// connect 阻塞模式下被信号打断（EINTR）时，握手仍在内核中继续，
// 改为等待可写并读取 SO_ERROR，而不是重新 connect。
func (unixSys) connect(fd int, ep Endpoint) error {
	sa, err := sockaddrOf(ep)
	if err != nil {
		return err
	}
	err = unix.Connect(fd, sa)
	if err != unix.EINTR {
		return err
	}
	nonblock, ferr := isNonblock(fd)
	if ferr != nil {
		return ferr
	}
	if nonblock {
		return unix.EINPROGRESS
	}
	return waitConnected(fd)
}

func waitConnected(fd int) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

func (unixSys) accept(fd int, nonblock bool) (int, Endpoint, error) {
	for {
		nfd, sa, err := netutil.Accept(fd, nonblock)
		switch err {
		case nil:
			return nfd, endpointOf(sa), nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return -1, Endpoint{}, ErrWouldBlock
		default:
			return -1, Endpoint{}, err
		}
	}
}

func (unixSys) inProgress(err error) bool {
	return errors.Is(err, unix.EINPROGRESS)
}

func (unixSys) unsupported(err error) bool {
	return netutil.IsUnsupported(err)
}

func (unixSys) afNotSupported(err error) bool {
	return errors.Is(err, unix.EAFNOSUPPORT) || errors.Is(err, unix.EPROTONOSUPPORT)
}

func isNonblock(fd int) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return false, err
	}
	return flags&unix.O_NONBLOCK != 0, nil
}

// sockaddrOf 按端点变体构造 sockaddr；IPv6 的 zone 解析为接口索引。
func sockaddrOf(ep Endpoint) (unix.Sockaddr, error) {
	switch ep.Family() {
	case FamilyIPv4:
		return &unix.SockaddrInet4{Port: ep.Port(), Addr: ep.Addr().As4()}, nil
	case FamilyIPv6:
		sa := &unix.SockaddrInet6{Port: ep.Port(), Addr: ep.Addr().As16()}
		if zone := ep.Addr().Zone(); zone != "" {
			ifi, err := net.InterfaceByName(zone)
			if err != nil {
				return nil, err
			}
			sa.ZoneId = uint32(ifi.Index)
		}
		return sa, nil
	default:
		return nil, ErrInvalidArgument
	}
}

func endpointOf(sa unix.Sockaddr) Endpoint {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return EndpointFrom(netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)))
	case *unix.SockaddrInet6:
		addr := netip.AddrFrom16(sa.Addr)
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				addr = addr.WithZone(ifi.Name)
			}
		}
		return EndpointFrom(netip.AddrPortFrom(addr, uint16(sa.Port)))
	default:
		return Endpoint{}
	}
}
