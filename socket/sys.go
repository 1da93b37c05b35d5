package socket

// sysOps 是建立连接所需的系统调用集合。生产实现见 sys_unix.go，
// 测试里用记录调用顺序的假实现替换。
type sysOps interface {
	socket(fam Family, typ SockType, proto int) (int, error)
	setNonblock(fd int) error
	setV6Only(fd int, on bool) error
	setLingerOff(fd int) error
	setNoDelay(fd int) error
	setReuseAddr(fd int) error
	setDeferAccept(fd int, secs int) error
	setFastOpenConnect(fd int) error
	setFastOpenListen(fd int, qlen int) error
	bind(fd int, ep Endpoint) error
	connect(fd int, ep Endpoint) error
	listen(fd int, backlog int) error
	// accept 对 EINTR/ECONNABORTED 内部重试，EAGAIN 返回 ErrWouldBlock
	accept(fd int, nonblock bool) (int, Endpoint, error)
	close(fd int) error

	inProgress(err error) bool
	unsupported(err error) bool
	afNotSupported(err error) bool
}
