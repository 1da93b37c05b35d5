//go:build linux || darwin

package main

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/legamerdc/sockio/dispatch"
	"github.com/legamerdc/sockio/internal/config"
	"github.com/legamerdc/sockio/socket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pair(t *testing.T) (*dispatch.Conn, *socket.Socket) {
	t.Helper()
	st, err := socket.Init(socket.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	a, b, err := st.Socketpair()
	require.NoError(t, err)
	require.NoError(t, a.SetNonblock(true))
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return &dispatch.Conn{Socket: a}, b
}

func TestRawEchoDrainsAndReplies(t *testing.T) {
	c, peer := pair(t)
	h := rawEcho{log: zap.NewNop()}

	_, err := peer.Send([]byte("abc"))
	require.NoError(t, err)
	_, err = peer.Send([]byte("def"))
	require.NoError(t, err)

	h.OnReadable(c)
	buf := make([]byte, 6)
	n, err := peer.Recv(buf, true)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(buf[:n]))
	assert.False(t, c.Closed())
}

func TestRawEchoClosesOnPeerShutdown(t *testing.T) {
	c, peer := pair(t)
	require.NoError(t, peer.Shutdown(socket.ShutWrite))

	rawEcho{log: zap.NewNop()}.OnReadable(c)
	assert.True(t, c.Closed())
}

func TestNewHandlerMode(t *testing.T) {
	cfg := config.Default()
	_, ok := newHandler(cfg, zap.NewNop()).(rawEcho)
	assert.True(t, ok)

	cfg.Echo.Mode = "framed"
	_, ok = newHandler(cfg, zap.NewNop()).(rawEcho)
	assert.False(t, ok)
}

func TestServeFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Listen.Node = "127.0.0.1"
	cfg.Listen.Service = "0"
	_, _, err := serve(context.Background(), cfg, zap.NewNop())
	var rerr *socket.ResolutionError
	assert.ErrorAs(t, err, &rerr)
}

func TestRawEchoReplyLargerThanSocketBuffer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	cfg := config.Default()
	cfg.Listen.Node = "127.0.0.1"
	cfg.Listen.Service = port
	cfg.Dispatch.Workers = 2
	d, st, err := serve(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close()
		_ = st.Close()
	})

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", port), 3*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	// 积压超过上限时服务端暂停读取，客户端必须边写边读
	msg := make([]byte, 8<<20)
	for i := range msg {
		msg[i] = byte(i % 253)
	}
	werr := make(chan error, 1)
	go func() {
		_, err := conn.Write(msg)
		werr <- err
	}()
	got := make([]byte, len(msg))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	require.NoError(t, <-werr)
	assert.Equal(t, msg, got)
}
