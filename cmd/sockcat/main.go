// Command sockcat sends one message to a sockio endpoint and prints the reply.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/legamerdc/sockio/client"
	"github.com/legamerdc/sockio/socket"
)

func main() {
	node := flag.String("node", "localhost", "host name or address to connect to")
	service := flag.String("service", "7000", "port or service name")
	msg := flag.String("message", "hello sockio", "message to send")
	framed := flag.Bool("framed", false, "use length-prefixed frames instead of raw bytes")
	compress := flag.Bool("compress", false, "compress frames (framed mode only)")
	udp := flag.Bool("udp", false, "send one datagram instead of using a stream (raw mode only)")
	nameserver := flag.String("nameserver", "", "query this DNS server directly instead of the system resolver")
	timeout := flag.Duration("timeout", 5*time.Second, "overall timeout")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := socket.Config{Logger: logger}
	if *nameserver != "" {
		cfg.Backend = socket.NewDNSBackend(*nameserver)
	}
	st, err := socket.Init(cfg)
	if err != nil {
		fatalf("init: %v", err)
	}
	defer st.Close()

	var reply []byte
	switch {
	case *framed:
		reply, err = sendFramed(ctx, st, *node, *service, []byte(*msg), *compress)
	default:
		reply, err = sendRaw(ctx, st, *node, *service, []byte(*msg), *udp)
	}
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(string(reply))
}

// replyCollector 收集第一条回复后关闭连接
type replyCollector struct {
	reply chan []byte
}

func (r *replyCollector) OnOpen(*client.Client) {}

func (r *replyCollector) OnMessage(c *client.Client, msg []byte) {
	select {
	case r.reply <- msg:
	default:
	}
	_ = c.Close()
}

func (r *replyCollector) OnClose(_ *client.Client, err error) {
	if err != nil {
		zap.L().Warn("connection closed", zap.Error(err))
	}
}

func sendFramed(ctx context.Context, st *socket.Stack, node, service string, msg []byte, compress bool) ([]byte, error) {
	h := &replyCollector{reply: make(chan []byte, 1)}
	c, err := client.Dial(ctx, st, node, service, h, client.Config{Compress: compress, Logger: zap.L()})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := c.Write(msg); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	select {
	case reply := <-h.reply:
		return reply, nil
	case <-c.Done():
		return nil, errors.New("closed before reply")
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}
}

func sendRaw(ctx context.Context, st *socket.Stack, node, service string, msg []byte, udp bool) ([]byte, error) {
	opts := socket.Stream | socket.NoDelay
	if udp {
		opts = 0
	}
	sock, peer, err := st.Connect(ctx, node, service, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer sock.Close()
	zap.L().Debug("connected", zap.Stringer("peer", peer))

	if _, err := sock.Send(msg); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	// 阻塞 socket 上的 Recv 不受 ctx 控制，超时后 shutdown 使其返回
	stop := context.AfterFunc(ctx, func() { _ = sock.Shutdown(socket.ShutBoth) })
	defer stop()

	buf := make([]byte, len(msg))
	n, err := sock.Recv(buf, !udp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("recv: %w", err)
	}
	return buf[:n], nil
}

func fatalf(format string, args ...any) {
	zap.L().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
