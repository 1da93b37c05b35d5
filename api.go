// Package sockio 把 socket、dispatch 与 frame 组合为一个开箱即用的服务端入口。
package sockio

import (
	"github.com/legamerdc/sockio/frame"
	"go.uber.org/zap"
)

// Config 为服务端配置
type Config struct {
	Node       string // 监听地址，空为双栈通配
	Service    string // 端口或服务名，不能为 "0"
	Workers    int    // <=0 时为 max(2, NumCPU)
	Backlog    int
	Compress   bool // Framed 处理函数发送时是否压缩
	MaxPayload int  // Framed 处理函数的单帧上限
	Nameserver string // 非空时用 DNS 后端直接查询该服务器
	Logger     *zap.Logger
}

// DefaultConfig 提供一组可工作的默认值
func DefaultConfig() Config {
	return Config{
		Service:    "8080",
		Backlog:    128,
		MaxPayload: frame.DefaultMaxPayload,
	}
}
