package socket

import (
	"errors"
	"fmt"
)

var (
	// ErrPlatformNotSupported 非 linux/darwin 平台
	ErrPlatformNotSupported = errors.New("socket: platform not supported (requires linux or darwin)")

	// ErrStackClosed Stack 已经 Close
	ErrStackClosed = errors.New("socket: stack closed")

	// ErrSocketClosed 对已关闭的 Socket 再次操作
	ErrSocketClosed = errors.New("socket: use of closed socket")

	// ErrWouldBlock 非阻塞 socket 上操作需要等待（EAGAIN）
	ErrWouldBlock = errors.New("socket: operation would block")

	// ErrBadFlags 解析后端拒绝了 hint 组合（getaddrinfo 的 EAI_BADFLAGS）
	ErrBadFlags = errors.New("socket: resolver rejected hint flags")

	// ErrBadService service 不是合法端口或已知服务名
	ErrBadService = errors.New("socket: invalid service")

	// ErrNoSuchHost 名字不存在
	ErrNoSuchHost = errors.New("socket: no such host")

	// ErrNoCandidates 解析成功但过滤后没有可用地址
	ErrNoCandidates = errors.New("socket: no usable addresses")

	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("socket: invalid argument")
)

// Stage 标识候选地址在哪一步失败。
type Stage string

const (
	StageOpen    Stage = "open"
	StageOption  Stage = "option"
	StageBind    Stage = "bind"
	StageConnect Stage = "connect"
	StageListen  Stage = "listen"
)

// ResolutionError 表示“无法解析”：host/service 不可解析，或 hint 重试也已用尽。
type ResolutionError struct {
	Node    string
	Service string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("socket: resolve %q/%q: %v", e.Node, e.Service, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// OptionError 表示某个选项在当前候选上设置失败，只影响该候选。
type OptionError struct {
	Option Options
	Err    error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("socket: set %s: %v", e.Option, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }

// CandidateExhaustedError 表示“解析成功但无法建立”：所有候选都失败了。
// Stage/Endpoint/Err 描述最后一次尝试。
type CandidateExhaustedError struct {
	Op       string
	Node     string
	Service  string
	Attempts int
	Stage    Stage
	Endpoint Endpoint
	Err      error
}

func (e *CandidateExhaustedError) Error() string {
	return fmt.Sprintf("socket: %s %q/%q: %d candidate(s) failed, last at %s %s: %v",
		e.Op, e.Node, e.Service, e.Attempts, e.Stage, e.Endpoint, e.Err)
}

func (e *CandidateExhaustedError) Unwrap() error { return e.Err }
