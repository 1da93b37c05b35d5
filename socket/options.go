package socket

import (
	"fmt"
	"strings"
)

// Options 是相互独立、幂等的 socket 配置指令位集合。
// 没有 Stream 即为数据报。
type Options uint32

const (
	Stream Options = 1 << iota
	NonBlock
	NoLinger
	NoDelay
	ReuseAddr
	FastOpen
	DeferAccept
)

var optionNames = []struct {
	opt  Options
	name string
}{
	{Stream, "stream"},
	{NonBlock, "nonblock"},
	{NoLinger, "nolinger"},
	{NoDelay, "nodelay"},
	{ReuseAddr, "reuseaddr"},
	{FastOpen, "fastopen"},
	{DeferAccept, "deferaccept"},
}

// Has 报告 o 是否包含 f 的全部位。
func (o Options) Has(f Options) bool { return o&f == f }

func (o Options) String() string {
	if o == 0 {
		return "datagram"
	}
	var parts []string
	for _, n := range optionNames {
		if o.Has(n.opt) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseOptions 解析 String 输出的名字列表（大小写不敏感）。
func ParseOptions(names []string) (Options, error) {
	var o Options
next:
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		for _, n := range optionNames {
			if n.name == name {
				o |= n.opt
				continue next
			}
		}
		return 0, fmt.Errorf("socket: unknown option %q", raw)
	}
	return o, nil
}
