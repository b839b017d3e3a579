// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/privbridge/lib/codec"
	"github.com/bureau-foundation/privbridge/lib/netutil"
)

// readTimeout is how long the server waits for a request after
// accepting. The client writes immediately after connecting.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing one response.
const writeTimeout = 10 * time.Second

// stagingSuffix names the path the socket is bound at before it is
// published.
const stagingSuffix = ".new"

// Server serves a Registry on a Unix socket.
type Server struct {
	socketPath string
	registry   *Registry
	logger     *slog.Logger

	// OnListen, if set, runs after the socket is bound at its staging
	// path and before it is published. The elevated server uses it to
	// chmod and chown the socket for the invoking user. An error aborts
	// Serve.
	OnListen func(stagingPath string) error

	ready             chan struct{}
	shutdown          chan struct{}
	shutdownOnce      sync.Once
	activeConnections sync.WaitGroup
}

// NewServer creates a server for registry that will listen on
// socketPath.
func NewServer(socketPath string, registry *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		registry:   registry,
		logger:     logger,
		ready:      make(chan struct{}),
		shutdown:   make(chan struct{}),
	}
}

// Ready is closed once the socket is bound and OnListen has succeeded.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Shutdown makes Serve stop accepting and return once in-flight calls,
// including the one that requested the shutdown, have been answered.
// It may be called before Serve and more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight calls to finish. A stale file at the socket path is
// removed first; the socket is removed again on return.
//
// The socket is bound at a staging path and renamed into place only
// after OnListen succeeds, so a client that sees the socket path can
// connect to it.
func (s *Server) Serve(ctx context.Context) error {
	stagingPath := s.socketPath + stagingSuffix
	for _, path := range []string{s.socketPath, stagingPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale socket %s: %w", path, err)
		}
	}

	listener, err := net.Listen("unix", stagingPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", stagingPath, err)
	}
	// The socket moves, so closing the listener must not unlink by
	// its original name.
	listener.(*net.UnixListener).SetUnlinkOnClose(false)
	defer func() {
		listener.Close()
		os.Remove(stagingPath)
		os.Remove(s.socketPath)
	}()

	if s.OnListen != nil {
		if err := s.OnListen(stagingPath); err != nil {
			return fmt.Errorf("preparing socket %s: %w", stagingPath, err)
		}
	}
	if err := os.Rename(stagingPath, s.socketPath); err != nil {
		return fmt.Errorf("publishing socket %s: %w", s.socketPath, err)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdown:
		}
		listener.Close()
	}()

	s.logger.Info("rpc server listening",
		"path", s.socketPath,
		"targets", s.registry.Targets(),
	)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var request Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&request); err != nil {
		if netutil.IsExpectedCloseError(err) {
			return
		}
		s.writeError(conn, KindInvalidArgument, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if request.Target == "" || request.Method == "" {
		s.writeError(conn, KindInvalidArgument, "request requires target and method")
		return
	}

	result, err := s.registry.Invoke(ctx, request.Target, request.Method, Args(request.Args))
	if err != nil {
		kind := KindOf(err)
		s.logger.Debug("call failed",
			"target", request.Target,
			"method", request.Method,
			"kind", kind,
			"error", err,
		)
		s.writeError(conn, kind, err.Error())
		return
	}

	s.writeSuccess(conn, request, result)
}

func (s *Server) writeError(conn net.Conn, kind Kind, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
		Kind:  kind,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Server) writeSuccess(conn net.Conn, request Request, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, KindInternal, fmt.Sprintf("encoding result: %v", err))
			return
		}
		response.Data = data
		if request.Compress {
			response.Size = len(data)
			response.Data, response.Compression = compressPayload(data)
			if response.Compression == CompressionNone {
				response.Size = 0
			}
		}
		// The client stops reading at maxMessageSize; a truncated
		// response would look like the server hanging up.
		if len(response.Data) > maxPayloadSize {
			s.logger.Warn("result too large",
				"target", request.Target,
				"method", request.Method,
				"bytes", len(response.Data),
			)
			s.writeError(conn, KindTooLarge, fmt.Sprintf("result of %d bytes exceeds the %d-byte limit", len(response.Data), maxPayloadSize))
			return
		}
	}

	s.logger.Debug("call served",
		"target", request.Target,
		"method", request.Method,
		"bytes", len(response.Data),
		"compression", response.Compression,
	)
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
