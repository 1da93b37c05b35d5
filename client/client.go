// Package client 是基于 socket.Connect 与 frame 的阻塞式帧客户端。
package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/legamerdc/sockio/frame"
	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

// ConnectOptions 是客户端 socket 固定使用的选项。
const ConnectOptions = socket.Stream | socket.NoDelay | socket.NoLinger

type Handler interface {
	OnOpen(c *Client)
	// OnMessage 在读 goroutine 中按到达顺序调用
	OnMessage(c *Client, msg []byte)
	// OnClose 恰好调用一次；对端正常关闭或本端 Close 时 err 为 nil
	OnClose(c *Client, err error)
}

type Config struct {
	Compress     bool
	MaxPayload   int
	ExtraOptions socket.Options // NonBlock 会被忽略
	Logger       *zap.Logger
}

type Client struct {
	sock *socket.Socket
	peer socket.Endpoint
	r    *frame.Reader
	w    *frame.Writer
	log  *zap.Logger
	done chan struct{}
	// mu 保证 Shutdown/Send 不会落在读 goroutine 已关闭的 fd 上
	mu sync.Mutex
}

// Dial 连接 (node, service)，调用 h.OnOpen 后启动读 goroutine。
func Dial(ctx context.Context, st *socket.Stack, node, service string, h Handler, cfg Config) (*Client, error) {
	if st == nil || h == nil {
		return nil, socket.ErrInvalidArgument
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	sock, peer, err := st.Connect(ctx, node, service, ConnectOptions|cfg.ExtraOptions&^socket.NonBlock)
	if err != nil {
		return nil, err
	}
	c := &Client{
		sock: sock,
		peer: peer,
		r:    frame.NewReader(sock, cfg.MaxPayload),
		w:    frame.NewWriter(sock, cfg.Compress),
		log:  cfg.Logger.Named("client").With(zap.Stringer("peer", peer), zap.Int("fd", sock.FD())),
		done: make(chan struct{}),
	}
	h.OnOpen(c)
	go c.readLoop(h)
	return c, nil
}

func (c *Client) readLoop(h Handler) {
	defer close(c.done)
	var err error
	for {
		var msg []byte
		msg, err = c.r.ReadFrame()
		if err != nil {
			break
		}
		h.OnMessage(c, msg)
	}
	c.mu.Lock()
	_ = c.sock.Close()
	c.mu.Unlock()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	c.log.Debug("closed", zap.Error(err))
	h.OnClose(c, err)
}

// Write 发送一条消息，阻塞到全部写出。
func (c *Client) Write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock.Closed() {
		return socket.ErrSocketClosed
	}
	return c.w.Write(msg)
}

// Close 关闭双向连接；读 goroutine 随后释放 socket 并回调 OnClose。
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock.Closed() {
		return socket.ErrSocketClosed
	}
	return c.sock.Shutdown(socket.ShutBoth)
}

// Peer 返回连接的对端端点。
func (c *Client) Peer() socket.Endpoint { return c.peer }

// Done 在读 goroutine 退出（OnClose 返回）后关闭。
func (c *Client) Done() <-chan struct{} { return c.done }
