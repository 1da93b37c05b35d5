package dispatch

import (
	"errors"
	"fmt"
)

var ErrInvalidArgument = errors.New("dispatch: invalid argument")

// AcceptError 是一次失败的 accept。只结束本次通知的 accept 循环，不影响 worker。
type AcceptError struct {
	Worker int
	Err    error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("dispatch: worker %d accept: %v", e.Worker, e.Err)
}

func (e *AcceptError) Unwrap() error { return e.Err }

// WaitError 表示 worker 的就绪等待失败，该 worker 随之退出。
type WaitError struct {
	Worker int
	Err    error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("dispatch: worker %d wait: %v", e.Worker, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }
