// Package server runs the TCP accept loop and per-connection session loop
// for the record-store protocol: a listener goroutine feeding
// per-connection goroutines dispatched through a worker pool, coordinated
// shutdown via context cancellation, and a WaitGroup join on Stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ispdb-server/internal/admission"
	"ispdb-server/internal/apperr"
	"ispdb-server/internal/config"
	"ispdb-server/internal/handler"
	"ispdb-server/internal/metrics"
	"ispdb-server/internal/query"
	"ispdb-server/internal/store"
	"ispdb-server/internal/wire"
	"ispdb-server/internal/workerpool"
)

// exitSentinel is the literal line a client sends to close its own session
// before reading a reply (distinct from the EXIT command, which replies
// then closes).
const exitSentinel = "EXIT_CLIENT_SESSION"

// Server owns the listener and dispatches accepted connections to the
// worker pool.
type Server struct {
	cfg     config.ServerConfig
	wireCfg config.WireConfig
	log     *zap.Logger
	h       *handler.Handler
	metrics *metrics.Registry
	guard   *admission.Guard
	pool    *workerpool.Pool

	listener    net.Listener
	wg          sync.WaitGroup
	activeConns int64
}

// New constructs a Server. guard and metricsRegistry may be nil.
func New(cfg config.ServerConfig, wireCfg config.WireConfig, log *zap.Logger, h *handler.Handler, metricsRegistry *metrics.Registry, guard *admission.Guard, pool *workerpool.Pool) *Server {
	return &Server{cfg: cfg, wireCfg: wireCfg, log: log, h: h, metrics: metricsRegistry, guard: guard, pool: pool}
}

// ConnCounter exposes the server's live connection counter so an
// admission.Guard can be built from it before the server starts accepting.
func (s *Server) ConnCounter() *int64 { return &s.activeConns }

// SetGuard installs the admission guard the accept loop consults before
// accepting each connection. Must be called before Start.
func (s *Server) SetGuard(guard *admission.Guard) { s.guard = guard }

// Start binds the listener and begins accepting connections; it returns
// once the listener is bound, with the accept loop running in the
// background.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.log.Info("server listening", zap.String("addr", addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()
	return nil
}

// Stop closes the listener and blocks until every in-flight session has
// exited.
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if tc, ok := s.listener.(*net.TCPListener); ok {
			_ = tc.SetDeadline(time.Now().Add(time.Second))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.log.Error("accept error", zap.Error(err))
			return
		}

		if s.guard != nil {
			if ok, reason := s.guard.Admit(); !ok {
				s.log.Warn("connection rejected by admission guard", zap.String("reason", reason), zap.String("remote", conn.RemoteAddr().String()))
				if s.metrics != nil {
					s.metrics.RejectedByGuard.Inc()
				}
				_ = conn.Close()
				continue
			}
		}

		s.wg.Add(1)
		accepted := func(c net.Conn) func() {
			return func() {
				defer s.wg.Done()
				s.runSession(ctx, c)
			}
		}(conn)

		if s.pool == nil || !s.pool.Submit(accepted) {
			if s.metrics != nil && s.pool != nil {
				s.metrics.WorkerDropped.Inc()
			}
			go accepted()
		} else if s.metrics != nil {
			s.metrics.WorkerQueueDepth.Set(float64(s.pool.QueueDepth()))
		}
	}
}

// runSession owns one client connection end to end: reading frames,
// parsing, dispatching under the store's lock, and replying, until the
// client disconnects, sends the exit sentinel, or issues EXIT.
func (s *Server) runSession(ctx context.Context, conn net.Conn) {
	atomic.AddInt64(&s.activeConns, 1)
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
	}
	defer func() {
		_ = conn.Close()
		atomic.AddInt64(&s.activeConns, -1)
		if s.metrics != nil {
			s.metrics.ActiveConnections.Dec()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := wire.ReadFrame(conn, s.cfg.ReadTimeout)
		if err != nil {
			if !errors.Is(err, wire.ErrConnectionClosed) {
				s.log.Debug("read frame error", zap.Error(err))
			}
			if errors.Is(err, wire.ErrOversizeFrame) {
				s.log.Warn("oversize frame declared, closing connection", zap.String("remote", conn.RemoteAddr().String()))
			}
			return
		}
		if s.metrics != nil {
			s.metrics.BytesRead.Add(float64(len(payload)))
		}

		line := string(payload)
		if line == exitSentinel {
			return
		}

		resp, closeAfter := s.handle(line)
		if s.metrics != nil && resp.PayloadType == wire.PayloadRecordsList && len(resp.Records) >= s.wireCfg.ChunkingThreshold {
			s.metrics.ChunkedReplies.Inc()
		}

		if err := wire.Send(conn, resp); err != nil {
			s.log.Debug("write reply error", zap.Error(err))
			return
		}
		if closeAfter {
			return
		}
	}
}

func (s *Server) handle(line string) (wire.Response, bool) {
	q, err := query.Parse(line)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ErrorsTotal.WithLabelValues("bad_request").Inc()
		}
		return wire.ErrorResponse(wire.StatusBadRequest, err.Error()), false
	}

	if handler.IsWriteOp(q.Type) {
		s.h.Store.Lock()
		defer s.h.Store.Unlock()
	} else {
		s.h.Store.RLock()
		defer s.h.Store.RUnlock()
	}

	resp, err := s.dispatchSafely(q)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ErrorsTotal.WithLabelValues(kindLabel(err)).Inc()
		}
		return handler.ErrorResponse(err), false
	}
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(commandLabel(q.Type)).Inc()
	}
	return resp, q.Type == query.Exit
}

// dispatchSafely runs handler.Dispatch and converts a panic into a
// KindServerError, so one malformed command can never unwind past the
// session loop and take the whole connection down with it.
func (s *Server) dispatchSafely(q query.Query) (resp wire.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("command handler panicked", zap.Any("recovered", r))
			err = apperr.ServerError("internal error handling command", fmt.Errorf("panic: %v", r))
		}
	}()
	return handler.Dispatch(s.h, q)
}

func kindLabel(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindServerError:
		return "server_error"
	default:
		return "bad_request"
	}
}

func commandLabel(t query.Type) string {
	switch t {
	case query.Add:
		return "add"
	case query.Select:
		return "select"
	case query.Delete:
		return "delete"
	case query.Edit:
		return "edit"
	case query.CalculateCharges:
		return "calculate_charges"
	case query.PrintAll:
		return "print_all"
	case query.Load:
		return "load"
	case query.Save:
		return "save"
	case query.Help:
		return "help"
	case query.Exit:
		return "exit"
	default:
		return "unknown"
	}
}
