package sockio

import (
	"github.com/legamerdc/sockio/dispatch"
	"github.com/legamerdc/sockio/frame"
	"go.uber.org/zap"
)

// MessageFunc 处理一条完整的帧。返回错误时连接被关闭。
// w 是该连接的发送队列，回复写入 w 即可。
type MessageFunc func(c *dispatch.Conn, msg []byte, w *frame.Writer) error

type framedState struct {
	r *frame.Reader
	w *frame.Writer
}

type framed struct {
	fn       MessageFunc
	max      int
	compress bool
	log      *zap.Logger
}

// Framed 把按帧处理的函数适配为 dispatch.Handler。每个连接的读写状态保存在 Conn.Data 中。
func Framed(cfg Config, fn MessageFunc) dispatch.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &framed{fn: fn, max: cfg.MaxPayload, compress: cfg.Compress, log: log.Named("framed")}
}

func (f *framed) state(c *dispatch.Conn) *framedState {
	st, _ := c.Data.(*framedState)
	if st == nil {
		st = &framedState{r: frame.NewReader(c, f.max), w: frame.NewWriter(c, f.compress)}
		c.Data = st
	}
	return st
}

func (f *framed) OnReadable(c *dispatch.Conn) {
	st := f.state(c)
	// 上次未写完的回复
	if err := st.w.Flush(); err != nil {
		f.close(c, err)
		return
	}
	err := st.r.Drain(func(msg []byte) error { return f.fn(c, msg, st.w) })
	if err != nil {
		f.close(c, err)
		return
	}
	f.watch(c, st)
}

// OnWritable 在 socket 重新可写时补发积压的回复。
func (f *framed) OnWritable(c *dispatch.Conn) {
	st := f.state(c)
	if err := st.w.Flush(); err != nil {
		f.close(c, err)
		return
	}
	f.watch(c, st)
}

// watch 只在有积压输出时保留可写通知。
func (f *framed) watch(c *dispatch.Conn, st *framedState) {
	if err := c.WatchWritable(st.w.Pending() > 0); err != nil {
		f.close(c, err)
	}
}

func (f *framed) close(c *dispatch.Conn, err error) {
	f.log.Debug("conn closed", zap.Stringer("conn", c.ID), zap.Error(err))
	_ = c.Close()
}
