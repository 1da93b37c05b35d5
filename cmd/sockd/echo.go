package main

import (
	"errors"

	"github.com/legamerdc/sockio/dispatch"
	"github.com/legamerdc/sockio/frame"
	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

// rawHighWater 是暂停读取前允许积压的回写字节数。
const rawHighWater = 1 << 20

// rawEcho 原样写回收到的字节。写不完的部分保存在 Conn.Data，由可写通知补发；
// 积压超过 rawHighWater 时暂停读取，写空后由 OnWritable 继续读。
type rawEcho struct {
	log *zap.Logger
}

type rawState struct {
	buf     []byte
	pending []byte
}

func (e rawEcho) state(c *dispatch.Conn) *rawState {
	st, _ := c.Data.(*rawState)
	if st == nil {
		st = &rawState{buf: make([]byte, 16<<10)}
		c.Data = st
	}
	return st
}

func (e rawEcho) OnReadable(c *dispatch.Conn) {
	st := e.state(c)
	if !e.flush(c, st) {
		return
	}
	for len(st.pending) < rawHighWater {
		n, err := c.Recv(st.buf, false)
		if n > 0 {
			st.pending = append(st.pending, st.buf[:n]...)
			if !e.flush(c, st) {
				return
			}
		}
		switch {
		case errors.Is(err, socket.ErrWouldBlock):
			return
		case err != nil:
			e.close(c, err)
			return
		case n == 0:
			e.close(c, nil)
			return
		}
	}
}

// OnWritable 补发积压数据；写空后继续读取暂停期间留在 socket 里的数据。
func (e rawEcho) OnWritable(c *dispatch.Conn) {
	st := e.state(c)
	if !e.flush(c, st) {
		return
	}
	if len(st.pending) == 0 {
		e.OnReadable(c)
	}
}

// flush 发送积压数据并按是否还有积压开关可写通知；连接被关闭时返回 false。
func (e rawEcho) flush(c *dispatch.Conn, st *rawState) bool {
	if len(st.pending) > 0 {
		n, err := c.Send(st.pending)
		st.pending = st.pending[n:]
		if err != nil && !errors.Is(err, socket.ErrWouldBlock) {
			e.close(c, err)
			return false
		}
		if len(st.pending) == 0 {
			st.pending = nil
		}
	}
	if err := c.WatchWritable(len(st.pending) > 0); err != nil {
		e.close(c, err)
		return false
	}
	return true
}

func (e rawEcho) close(c *dispatch.Conn, err error) {
	e.log.Debug("conn closed", zap.Stringer("conn", c.ID), zap.Stringer("peer", c.Peer), zap.Error(err))
	_ = c.Close()
}

func echoFrame(_ *dispatch.Conn, msg []byte, w *frame.Writer) error {
	return w.Write(msg)
}
