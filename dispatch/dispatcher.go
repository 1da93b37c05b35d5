// Package dispatch 实现多 worker 的边沿触发 reactor：所有 worker 共享一个非阻塞监听 socket，
// 每个 worker 拥有独立的 poller 与连接表，连接一旦被某个 worker 接受就不会迁移。
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/legamerdc/sockio/socket"
	"go.uber.org/zap"
)

type Dispatcher struct {
	ln      *socket.Socket
	ep      socket.Endpoint
	log     *zap.Logger
	workers []*worker
	wg      sync.WaitGroup
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// Serve 建立共享监听 socket 并启动 worker。监听建立失败同步返回（*socket.ResolutionError
// 或 *socket.CandidateExhaustedError）。worker 之后一直运行，直到各自的等待失败或进程退出；
// Close 只关闭监听 socket，已接受的连接继续被服务。
func Serve(ctx context.Context, st *socket.Stack, node, service string, h Handler, cfg Config) (*Dispatcher, error) {
	if st == nil || h == nil {
		return nil, ErrInvalidArgument
	}
	cfg = cfg.withDefaults()
	log := cfg.Logger.Named("dispatch")

	ln, ep, err := st.Listen(ctx, node, service, cfg.Backlog, BaseOptions|cfg.ExtraOptions)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{ln: ln, ep: ep, log: log, done: make(chan struct{})}
	for i := 0; i < cfg.Workers; i++ {
		p, err := cfg.NewPoller()
		if err != nil {
			d.rollback()
			return nil, fmt.Errorf("dispatch: worker %d poller: %w", i, err)
		}
		if err := p.Register(ln.FD()); err != nil {
			_ = p.Close()
			d.rollback()
			return nil, fmt.Errorf("dispatch: worker %d register listener: %w", i, err)
		}
		d.workers = append(d.workers, newWorker(i, ln, p, h, log))
	}

	for _, w := range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := w.run(); err != nil {
				d.setErr(err)
			}
		}()
	}
	go func() {
		d.wg.Wait()
		close(d.done)
	}()

	log.Info("serving",
		zap.Stringer("endpoint", ep),
		zap.Int("workers", len(d.workers)),
		zap.Int("fd", ln.FD()),
	)
	return d, nil
}

func (d *Dispatcher) rollback() {
	for _, w := range d.workers {
		_ = w.p.Close()
	}
	d.workers = nil
	_ = d.ln.Close()
}

func (d *Dispatcher) setErr(err error) {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
}

// Listener 返回共享监听 socket。
func (d *Dispatcher) Listener() *socket.Socket { return d.ln }

// Endpoint 返回监听 socket 绑定的端点。
func (d *Dispatcher) Endpoint() socket.Endpoint { return d.ep }

func (d *Dispatcher) Workers() int { return len(d.workers) }

// Close 关闭共享监听 socket，不再接受新连接。worker 与已有连接不受影响。
func (d *Dispatcher) Close() error {
	err := d.ln.Close()
	if err == nil {
		d.log.Info("listener closed", zap.Stringer("endpoint", d.ep))
	}
	return err
}

// Done 在所有 worker 都退出后关闭。
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Err 返回第一个退出的 worker 的 *WaitError。
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Conns 返回每个 worker 当前登记的连接数，仅在 worker 停止后读取才是精确值。
func (d *Dispatcher) Conns() []int {
	out := make([]int, len(d.workers))
	for i, w := range d.workers {
		out[i] = w.count()
	}
	return out
}
