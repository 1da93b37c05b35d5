package dispatch

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/legamerdc/sockio/poller"
	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

// worker 独占一个 poller 与一张 fd -> *Conn 表，只在自己的 goroutine 中访问。
type worker struct {
	id    int
	ln    *socket.Socket
	lfd   int
	p     poller.Poller
	h     Handler
	wh    WritableHandler
	log   *zap.Logger
	conns map[int]*Conn
	n     atomic.Int64
}

func newWorker(id int, ln *socket.Socket, p poller.Poller, h Handler, log *zap.Logger) *worker {
	wh, _ := h.(WritableHandler)
	return &worker{
		id:    id,
		wh:    wh,
		ln:    ln,
		lfd:   ln.FD(),
		p:     p,
		h:     h,
		log:   log.With(zap.Int("worker", id)),
		conns: make(map[int]*Conn),
	}
}

// run 锁定 OS 线程并运行事件循环。等待失败时返回 *WaitError 并关闭该 worker 的 poller；
// 它登记的连接保持原状。
func (w *worker) run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := poller.Run(w.p, w)
	werr := &WaitError{Worker: w.id, Err: err}
	w.log.Error("worker exited", zap.Error(werr), zap.Int("conns", len(w.conns)))
	_ = w.p.Close()
	return werr
}

func (w *worker) count() int { return int(w.n.Load()) }

// isListener 判断事件是否属于共享监听 socket。监听 socket 关闭后它的 fd 号可能被新连接复用。
func (w *worker) isListener(fd poller.FD) bool {
	return fd == w.lfd && !w.ln.Closed()
}

// lookup 返回 fd 对应的连接；顺带清理在其它 goroutine 中被关闭的连接。
func (w *worker) lookup(fd poller.FD) (*Conn, bool) {
	c, ok := w.conns[fd]
	if !ok {
		return nil, false
	}
	if c.Closed() {
		w.forget(c)
		return nil, false
	}
	return c, true
}

func (w *worker) OnReadable(fd poller.FD) {
	if w.isListener(fd) {
		w.acceptAll()
		return
	}
	if c, ok := w.lookup(fd); ok {
		w.dispatch(c, w.h.OnReadable)
	}
}

func (w *worker) OnWritable(fd poller.FD) {
	if w.wh == nil || w.isListener(fd) {
		return
	}
	if c, ok := w.lookup(fd); ok {
		w.dispatch(c, w.wh.OnWritable)
	}
}

func (w *worker) OnHangup(fd poller.FD, err error) {
	if w.isListener(fd) {
		_ = w.p.Unregister(fd)
		w.log.Warn("listener hang-up", zap.Int("fd", fd), zap.Error(err))
		return
	}
	if c, ok := w.conns[fd]; ok {
		w.drop(c, "hangup", err)
	}
}

// acceptAll 在一次边沿通知中持续 accept 直到 ErrWouldBlock。
func (w *worker) acceptAll() {
	for {
		s, peer, err := w.ln.Accept()
		if err != nil {
			switch {
			case errors.Is(err, socket.ErrWouldBlock), errors.Is(err, socket.ErrSocketClosed):
			default:
				w.log.Warn("accept failed", zap.Error(&AcceptError{Worker: w.id, Err: err}))
			}
			return
		}
		c := newConn(s, w.id, peer, w.p)
		if err := w.p.Register(s.FD()); err != nil {
			w.log.Warn("register failed", zap.Stringer("conn", c.ID), zap.Error(err))
			_ = s.Close()
			continue
		}
		// fd 号可能复用自一个已被处理函数关闭的连接
		if _, stale := w.conns[s.FD()]; !stale {
			w.n.Add(1)
		}
		w.conns[s.FD()] = c
		w.log.Debug("accepted",
			zap.Stringer("conn", c.ID),
			zap.Int("fd", s.FD()),
			zap.Stringer("peer", peer),
		)
	}
}

func (w *worker) dispatch(c *Conn, fn func(*Conn)) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("handler panic",
				zap.Stringer("conn", c.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			w.drop(c, "panic", nil)
			return
		}
		if c.Closed() {
			w.forget(c)
		}
	}()
	fn(c)
}

// drop 注销并关闭连接，不回调处理函数。
func (w *worker) drop(c *Conn, reason string, err error) {
	w.forget(c)
	if !c.Closed() {
		_ = w.p.Unregister(c.FD())
		_ = c.Close()
	}
	w.log.Debug("dropped",
		zap.Stringer("conn", c.ID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (w *worker) forget(c *Conn) {
	if cur, ok := w.conns[c.FD()]; ok && cur == c {
		delete(w.conns, c.FD())
		w.n.Add(-1)
	}
}
