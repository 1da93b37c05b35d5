package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/legamerdc/sockio"
	"github.com/legamerdc/sockio/dispatch"
	"github.com/legamerdc/sockio/internal/config"
	"github.com/legamerdc/sockio/internal/observability"
	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if opts.Service != "" {
		cfg.Listen.Service = opts.Service
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()
	zap.L().Info("sockd started", zap.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, st, err := serve(ctx, cfg, logger)
	if err != nil {
		zap.L().Error("failed to start", zap.Error(err))
		return 1
	}
	defer st.Close()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down")
		_ = d.Close()
		return 0
	case <-d.Done():
		zap.L().Error("all workers exited", zap.Error(d.Err()))
		return 1
	}
}

// serve 按配置建立网络栈并启动 dispatcher。
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dispatch.Dispatcher, *socket.Stack, error) {
	extra, err := cfg.ListenOptions()
	if err != nil {
		return nil, nil, err
	}
	st, err := socket.Init(socket.Config{
		Logger:        logger,
		Backend:       cfg.LookupBackend(),
		ListenBacklog: cfg.Listen.Backlog,
	})
	if err != nil {
		return nil, nil, err
	}
	d, err := dispatch.Serve(ctx, st, cfg.Listen.Node, cfg.Listen.Service, newHandler(cfg, logger), dispatch.Config{
		Workers:      cfg.Dispatch.Workers,
		Backlog:      cfg.Listen.Backlog,
		ExtraOptions: extra,
		Logger:       logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return d, st, nil
}

func newHandler(cfg *config.Config, logger *zap.Logger) dispatch.Handler {
	if cfg.Echo.Mode == "framed" {
		return sockio.Framed(sockio.Config{
			Compress:   cfg.Echo.Compress,
			MaxPayload: cfg.Echo.MaxPayload,
			Logger:     logger,
		}, echoFrame)
	}
	return rawEcho{log: logger.Named("echo")}
}
