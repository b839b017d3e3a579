// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/privbridge/lib/endpoint"
)

// Service opens and tracks connections to remote-object servers. A
// process normally uses the single instance returned by Shared.
type Service struct {
	logger *slog.Logger

	mu   sync.Mutex
	open map[*Conn]struct{}
}

var (
	sharedOnce    sync.Once
	sharedService *Service
)

// Shared returns the process-wide Service, creating it on first use.
// It lives until the process exits; there is no way to stop it.
func Shared() *Service {
	sharedOnce.Do(func() {
		sharedService = NewService(slog.Default())
		sharedService.logger.Debug("rpc service started")
	})
	return sharedService
}

// NewService returns an independent Service. Tests use this to avoid
// sharing connection counts with the rest of the binary.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger: logger,
		open:   make(map[*Conn]struct{}),
	}
}

// Open resolves uri (see endpoint.URI), verifies a server answers
// there, and returns a tracked Conn. Close the Conn to stop tracking
// it.
func (s *Service) Open(ctx context.Context, uri string) (*Conn, error) {
	socketPath, err := endpoint.ParseURI(uri)
	if err != nil {
		return nil, err
	}

	conn := NewConn(socketPath)
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}

	conn.onClose = s.release
	s.mu.Lock()
	s.open[conn] = struct{}{}
	count := len(s.open)
	s.mu.Unlock()

	s.logger.Debug("rpc connection opened", "uri", uri, "open_connections", count)
	return conn, nil
}

// Connections returns the number of connections opened by this
// service and not yet closed.
func (s *Service) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

func (s *Service) release(conn *Conn) {
	s.mu.Lock()
	delete(s.open, conn)
	count := len(s.open)
	s.mu.Unlock()
	s.logger.Debug("rpc connection closed", "path", conn.SocketPath(), "open_connections", count)
}
