package dispatch

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
	"github.com/legamerdc/sockio/poller"
	"github.com/legamerdc/sockio/socket"
)

// Conn 是一个已接受的连接。它始终由接受它的 worker 处理。
//
// Close 应在处理函数内（所属 worker 的 goroutine）调用；在其它 goroutine 关闭的连接
// 不再产生事件，直到该 fd 号被复用前都会留在 worker 的连接表中。
type Conn struct {
	*socket.Socket
	ID     uuid.UUID
	Worker int
	Peer   socket.Endpoint
	// Data 供处理函数保存连接级状态，只会在所属 worker 的 goroutine 中访问
	Data any

	p        poller.Poller
	writable bool
}

func newConn(s *socket.Socket, worker int, peer socket.Endpoint, p poller.Poller) *Conn {
	return &Conn{
		Socket: s,
		ID:     runtimex.PanicOnError1(uuid.NewV7()),
		Worker: worker,
		Peer:   peer,
		p:      p,
	}
}

// WatchWritable 打开或关闭该连接的可写通知。输出因 socket.ErrWouldBlock 积压时打开，
// 积压写完后关闭；打开期间 WritableHandler.OnWritable 会在 socket 重新可写时被调用。
// 只能在所属 worker 的 goroutine 中调用。未登记到 worker 的 Conn 上是空操作。
func (c *Conn) WatchWritable(on bool) error {
	if c.p == nil || c.writable == on {
		return nil
	}
	if c.Closed() {
		return socket.ErrSocketClosed
	}
	if err := c.p.Mod(c.FD(), on); err != nil {
		return err
	}
	c.writable = on
	return nil
}

// Handler 在连接可读时被调用，每次通知恰好一次。
// 边沿触发：返回前应读到 socket.ErrWouldBlock；处理完毕由 Handler 自己 Close。
// 不能长时间阻塞，否则同一 worker 上的其它连接都会停顿。
type Handler interface {
	OnReadable(c *Conn)
}

// WritableHandler 是可选接口：Handler 实现它并通过 Conn.WatchWritable 打开可写通知后，
// socket 重新可写时调用 OnWritable，用于补发积压的输出。
type WritableHandler interface {
	Handler
	OnWritable(c *Conn)
}

type HandlerFunc func(c *Conn)

func (f HandlerFunc) OnReadable(c *Conn) { f(c) }
