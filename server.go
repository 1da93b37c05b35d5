package sockio

import (
	"context"

	"github.com/legamerdc/sockio/dispatch"
	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

// Server 组合一个 socket.Stack 与其上的 Dispatcher。
type Server struct {
	st  *socket.Stack
	d   *dispatch.Dispatcher
	log *zap.Logger
}

// Start 初始化网络栈并开始服务。
func Start(ctx context.Context, cfg Config, h dispatch.Handler) (*Server, error) {
	if h == nil {
		return nil, ErrInvalidArgument
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	scfg := socket.Config{Logger: cfg.Logger, ListenBacklog: cfg.Backlog}
	if cfg.Nameserver != "" {
		scfg.Backend = socket.NewDNSBackend(cfg.Nameserver)
	}
	st, err := socket.Init(scfg)
	if err != nil {
		return nil, err
	}
	d, err := dispatch.Serve(ctx, st, cfg.Node, cfg.Service, h, dispatch.Config{
		Workers: cfg.Workers,
		Backlog: cfg.Backlog,
		Logger:  cfg.Logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &Server{st: st, d: d, log: cfg.Logger}, nil
}

func (s *Server) Endpoint() socket.Endpoint         { return s.d.Endpoint() }
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.d }
func (s *Server) Stack() *socket.Stack             { return s.st }

// Stop 关闭监听 socket 并 teardown 网络栈。已接受的连接由 worker 继续服务直到各自关闭。
func (s *Server) Stop() error {
	err := s.d.Close()
	if cerr := s.st.Close(); err == nil {
		err = cerr
	}
	return err
}
