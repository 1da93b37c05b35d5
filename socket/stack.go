package socket

import (
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config 为 Stack 配置。零值可用。
type Config struct {
	Logger             *zap.Logger   // 默认 zap.NewNop()
	Backend            LookupBackend // 默认 NewSystemBackend()
	ListenBacklog      int           // Listen 的 backlog<=0 时使用，默认 128
	DeferAcceptSeconds int           // TCP_DEFER_ACCEPT 超时，默认 1
	FastOpenQueue      int           // 监听侧 TFO 队列长度，默认 256
}

// Stack 是进程级的网络栈上下文：Init 之后才能解析/建立 socket，Close 即 teardown。
// 所有解析与建立操作都挂在 Stack 上，不存在全局可变状态。
type Stack struct {
	cfg     Config
	log     *zap.Logger
	backend LookupBackend
	sys     sysOps
	closed  atomic.Bool
}

// Init 创建 Stack；不支持的平台返回 ErrPlatformNotSupported。
func Init(cfg Config) (*Stack, error) {
	sys := defaultSys()
	if sys == nil {
		return nil, ErrPlatformNotSupported
	}
	return newStack(cfg, sys), nil
}

func newStack(cfg Config, sys sysOps) *Stack {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Backend == nil {
		cfg.Backend = NewSystemBackend()
	}
	if cfg.ListenBacklog <= 0 {
		cfg.ListenBacklog = 128
	}
	if cfg.DeferAcceptSeconds <= 0 {
		cfg.DeferAcceptSeconds = 1
	}
	if cfg.FastOpenQueue <= 0 {
		cfg.FastOpenQueue = 256
	}
	return &Stack{
		cfg:     cfg,
		log:     cfg.Logger.Named("socket"),
		backend: cfg.Backend,
		sys:     sys,
	}
}

// Close 是 teardown；之后所有操作返回 ErrStackClosed。已建立的 Socket 不受影响。
func (s *Stack) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStackClosed
	}
	s.log.Debug("stack closed")
	return nil
}

// Logger 返回 Stack 使用的 logger，供上层组件派生。
func (s *Stack) Logger() *zap.Logger { return s.cfg.Logger }

func (s *Stack) check() error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.closed.Load() {
		return ErrStackClosed
	}
	return nil
}

// newSpanID 为一次 resolve/connect/listen 生成 UUIDv7，用于串联日志。
func newSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
