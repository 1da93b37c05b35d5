package dispatch

import (
	"runtime"

	"github.com/legamerdc/sockio/poller"
	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

// BaseOptions 是共享监听 socket 固定使用的选项。
const BaseOptions = socket.Stream | socket.NonBlock | socket.ReuseAddr | socket.FastOpen | socket.DeferAccept

type Config struct {
	// Workers <= 0 时为 max(2, runtime.NumCPU())
	Workers int
	// Backlog <= 0 时使用 Stack 的默认值
	Backlog int
	// ExtraOptions 与 BaseOptions 合并
	ExtraOptions socket.Options
	Logger       *zap.Logger
	// NewPoller 默认 poller.New
	NewPoller func() (poller.Poller, error)
}

// DefaultWorkers 返回 max(2, runtime.NumCPU())。
func DefaultWorkers() int {
	return max(2, runtime.NumCPU())
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.NewPoller == nil {
		c.NewPoller = poller.New
	}
	return c
}
