package sockio

import (
	"github.com/legamerdc/sockio/dispatch"
	"github.com/legamerdc/sockio/socket"
)

var (
	// ErrPlatformNotSupported 非 linux/darwin 平台
	ErrPlatformNotSupported = socket.ErrPlatformNotSupported

	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = dispatch.ErrInvalidArgument
)
