package socket

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type establishOp int

const (
	opConnect establishOp = iota
	opListen
)

func (op establishOp) String() string {
	if op == opListen {
		return "listen"
	}
	return "connect"
}

// attemptError 记录单个候选失败的阶段，供最终的 CandidateExhaustedError 使用。
type attemptError struct {
	stage Stage
	ep    Endpoint
	err   error
}

// Connect 解析 (node, service) 并按顺序尝试每个候选，返回第一个连接成功的 socket
// 及其对端端点。非阻塞模式下流式连接的 EINPROGRESS 视为成功。
//
// ctx 只约束解析阶段；候选循环中的系统调用不可中断。
func (s *Stack) Connect(ctx context.Context, node, service string, opts Options) (*Socket, Endpoint, error) {
	return s.establish(ctx, opConnect, node, service, 0, opts)
}

// Listen 解析 (node, service)（passive）并返回第一个 bind（流式还要 listen）成功的 socket
// 及其本地端点。backlog<=0 时使用 Config.ListenBacklog。
func (s *Stack) Listen(ctx context.Context, node, service string, backlog int, opts Options) (*Socket, Endpoint, error) {
	if backlog <= 0 {
		backlog = s.cfg.ListenBacklog
	}
	return s.establish(ctx, opListen, node, service, backlog, opts)
}

func (s *Stack) establish(ctx context.Context, op establishOp, node, service string, backlog int, opts Options) (*Socket, Endpoint, error) {
	cands, err := s.Resolve(ctx, node, service, opts.Has(Stream), op == opListen)
	if err != nil {
		return nil, Endpoint{}, err
	}

	span := newSpanID()
	t0 := time.Now()
	var last *attemptError
	for i, c := range cands {
		sock, ep, aerr := s.attempt(op, node, c, backlog, opts)
		if aerr == nil {
			s.log.Info(op.String()+"Done",
				zap.String("span", span),
				zap.String("node", node),
				zap.String("service", service),
				zap.Stringer("options", opts),
				zap.Stringer("endpoint", ep),
				zap.Int("attempt", i+1),
				zap.Int("fd", sock.FD()),
				zap.Duration("elapsed", time.Since(t0)),
			)
			return sock, ep, nil
		}
		last = aerr
		s.log.Debug("candidateFailed",
			zap.String("span", span),
			zap.Stringer("candidate", c),
			zap.String("stage", string(aerr.stage)),
			zap.Error(aerr.err),
		)
	}

	cerr := &CandidateExhaustedError{
		Op:       op.String(),
		Node:     node,
		Service:  service,
		Attempts: len(cands),
		Stage:    last.stage,
		Endpoint: last.ep,
		Err:      last.err,
	}
	s.log.Info(op.String()+"Done",
		zap.String("span", span),
		zap.String("node", node),
		zap.String("service", service),
		zap.Stringer("options", opts),
		zap.Duration("elapsed", time.Since(t0)),
		zap.Error(cerr),
	)
	return nil, Endpoint{}, cerr
}

// attempt 在单个候选上走完全部步骤。任何一步失败都关闭该候选的 socket。
// 步骤顺序：nonblock → [listen: deferaccept] → [connect: nolinger, nodelay]
// → [listen: reuseaddr, bind] → connect/listen → [fastopen]。
func (s *Stack) attempt(op establishOp, node string, c Candidate, backlog int, opts Options) (_ *Socket, _ Endpoint, aerr *attemptError) {
	fd, c, err := s.open(c)
	if err != nil {
		return nil, Endpoint{}, &attemptError{stage: StageOpen, ep: c.Endpoint, err: err}
	}
	sock := newSocket(fd, s.sys)
	defer func() {
		if aerr != nil {
			_ = sock.Close()
		}
	}()
	fail := func(stage Stage, err error) (*Socket, Endpoint, *attemptError) {
		return nil, Endpoint{}, &attemptError{stage: stage, ep: c.Endpoint, err: err}
	}
	optFail := func(o Options, err error) (*Socket, Endpoint, *attemptError) {
		return fail(StageOption, &OptionError{Option: o, Err: err})
	}

	stream := opts.Has(Stream) && c.Type == SockStream
	if opts.Has(NonBlock) {
		if err := s.sys.setNonblock(fd); err != nil {
			return optFail(NonBlock, err)
		}
		sock.nb = true
	}

	switch op {
	case opListen:
		if stream && opts.Has(DeferAccept) {
			if err := s.sys.setDeferAccept(fd, s.cfg.DeferAcceptSeconds); err != nil && !s.sys.unsupported(err) {
				return optFail(DeferAccept, err)
			}
		}
		if opts.Has(ReuseAddr) {
			if err := s.sys.setReuseAddr(fd); err != nil {
				return optFail(ReuseAddr, err)
			}
		}
		if err := s.sys.bind(fd, c.Endpoint); err != nil {
			return fail(StageBind, err)
		}
		if !stream {
			return sock, c.Endpoint, nil
		}
		if err := s.sys.listen(fd, backlog); err != nil {
			return fail(StageListen, err)
		}
		if opts.Has(FastOpen) {
			if err := s.sys.setFastOpenListen(fd, s.cfg.FastOpenQueue); err != nil {
				s.log.Debug("fast-open not applied", zap.Int("fd", fd), zap.Error(err))
			}
		}
		return sock, c.Endpoint, nil

	default:
		if stream && opts.Has(NoLinger) {
			if err := s.sys.setLingerOff(fd); err != nil {
				return optFail(NoLinger, err)
			}
		}
		if stream && opts.Has(NoDelay) {
			if err := s.sys.setNoDelay(fd); err != nil {
				return optFail(NoDelay, err)
			}
		}
		if !stream && node == "" {
			// 未指定对端的数据报 socket 直接可用（配合 SendTo）
			return sock, c.Endpoint, nil
		}
		if stream && opts.Has(FastOpen) {
			if err := s.sys.setFastOpenConnect(fd); err != nil && !s.sys.unsupported(err) {
				return optFail(FastOpen, err)
			}
		}
		if err := s.sys.connect(fd, c.Endpoint); err != nil {
			if !(stream && opts.Has(NonBlock) && s.sys.inProgress(err)) {
				return fail(StageConnect, err)
			}
		}
		return sock, c.Endpoint, nil
	}
}

// open 创建候选对应的原始 socket。IPv6 socket 关闭 V6ONLY 以承载映射地址；
// 平台不支持 AF_INET6 时，映射候选退回为纯 IPv4 再试一次。
func (s *Stack) open(c Candidate) (int, Candidate, error) {
	fd, err := s.sys.socket(c.Family, c.Type, c.Protocol)
	if err != nil && c.Endpoint.IsV4Mapped() && s.sys.afNotSupported(err) {
		c = c.unmapped()
		fd, err = s.sys.socket(c.Family, c.Type, c.Protocol)
	}
	if err != nil {
		return -1, c, err
	}
	if c.Family == FamilyIPv6 {
		if err := s.sys.setV6Only(fd, false); err != nil {
			s.log.Debug("dual-stack not applied", zap.Int("fd", fd), zap.Error(err))
		}
	}
	return fd, c, nil
}
