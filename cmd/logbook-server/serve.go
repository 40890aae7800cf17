// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// httpServer runs an http.Handler on a TCP address with graceful
// shutdown when the serve context is cancelled.
type httpServer struct {
	address        string
	handler        http.Handler
	requestTimeout time.Duration
	logger         *slog.Logger

	ready chan struct{}
	addr  net.Addr
}

func newHTTPServer(address string, handler http.Handler, requestTimeout time.Duration, logger *slog.Logger) *httpServer {
	return &httpServer{
		address:        address,
		handler:        handler,
		requestTimeout: requestTimeout,
		logger:         logger,
		ready:          make(chan struct{}),
	}
}

// Ready is closed once the listener is bound and Addr is valid.
func (s *httpServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed.
func (s *httpServer) Addr() net.Addr {
	return s.addr
}

// Serve blocks until ctx is cancelled, then stops accepting
// connections and waits up to shutdownTimeout for in-flight requests.
func (s *httpServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	// Write timeout leaves headroom over the per-request context
	// deadline so handlers can still report their own timeout.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.requestTimeout,
		WriteTimeout:      s.requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
