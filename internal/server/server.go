// Package server accepts TCP connections and hands each one to the worker
// queue as a single job. A job reads one request, routes it and writes one
// response before closing the connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/todogate/todogate/internal/api"
	"github.com/todogate/todogate/internal/diag"
	"github.com/todogate/todogate/internal/metrics"
	"github.com/todogate/todogate/internal/queue"
)

// DefaultReadBufferSize is the number of bytes read from a connection.
// Anything beyond it is not seen by the parser.
const DefaultReadBufferSize = 1024

const acceptRetryDelay = 50 * time.Millisecond

// Options tunes a Server. Zero values select the defaults.
type Options struct {
	ReadBufferSize int
	// ConnRateLimit is new connections per second allowed per remote IP; 0 disables.
	ConnRateLimit int
}

// Server dispatches accepted connections to a worker queue.
type Server struct {
	queue    *queue.Queue
	handler  *api.Handler
	sink     diag.Sink
	readSize int
	limiter  *connLimiter
	now      func() time.Time
}

// New creates a Server. A nil sink discards diagnostics.
func New(q *queue.Queue, h *api.Handler, sink diag.Sink, opts Options) *Server {
	if sink == nil {
		sink = diag.Discard{}
	}
	readSize := opts.ReadBufferSize
	if readSize <= 0 {
		readSize = DefaultReadBufferSize
	}
	return &Server{
		queue:    q,
		handler:  h,
		sink:     sink,
		readSize: readSize,
		limiter:  newConnLimiter(opts.ConnRateLimit),
		now:      time.Now,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// returns nil. Jobs already queued keep running.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.stop()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	slog.Info("server: listening", "addr", ln.Addr().String(), "workers", s.queue.Size())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			slog.Warn("server: accept failed", "error", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		s.dispatch(conn)
	}
}

func (s *Server) dispatch(conn net.Conn) {
	connID := uuid.NewString()
	remote := conn.RemoteAddr().String()

	if !s.limiter.allow(remoteIP(conn.RemoteAddr())) {
		metrics.RecordConnection(metrics.OutcomeRateLimited)
		s.sink.Record(fmt.Sprintf("Connection rate limit exceeded for %s.", remote))
		slog.Warn("server: connection rate limited", "conn_id", connID, "remote", remote)
		conn.Close()
		return
	}

	if err := s.queue.Submit(func() { s.handle(connID, conn) }); err != nil {
		metrics.RecordConnection(metrics.OutcomeQueueFull)
		s.sink.Record(fmt.Sprintf("Connection dropped: %v.", err))
		slog.Warn("server: connection dropped", "conn_id", connID, "remote", remote, "error", err)
		conn.Close()
		return
	}
	metrics.RecordConnection(metrics.OutcomeAccepted)
}

// HandleConn serves exactly one request on conn and closes it.
func (s *Server) HandleConn(conn net.Conn) {
	s.handle(uuid.NewString(), conn)
}

func (s *Server) handle(connID string, conn net.Conn) {
	defer conn.Close()
	log := slog.With("conn_id", connID, "remote", conn.RemoteAddr().String())

	buf := make([]byte, s.readSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		metrics.RecordConnection(metrics.OutcomeReadError)
		s.sink.Record(fmt.Sprintf("Read error details: %v", err))
		log.Warn("server: read failed", "error", err)
		return
	}

	raw := strings.ToValidUTF8(string(buf[:n]), "\uFFFD")
	resp := s.handler.Process(raw)
	metrics.RecordResponse(resp.Status)

	if _, err := conn.Write(resp.Format(s.now())); err != nil {
		metrics.RecordConnection(metrics.OutcomeWriteError)
		s.sink.Record(fmt.Sprintf("Stream write error: %v", err))
		log.Warn("server: write failed", "error", err)
		return
	}
	log.Debug("server: request handled", "status", resp.Status, "bytes_read", n)
}
