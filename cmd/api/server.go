package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

// httpService runs the HTTP listener as an srv.Service.
type httpService struct {
	srv *http.Server
}

// newHTTPService builds the server. Request contexts inherit the logger in
// ctx but not its cancellation, so in-flight requests drain on shutdown.
func newHTTPService(ctx context.Context, cfg config.ServerConfig, handler http.Handler) *httpService {
	base := context.WithoutCancel(ctx)
	return &httpService{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return base },
	}}
}

// Start blocks until the listener stops. A graceful shutdown is not an error.
func (s *httpService) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.srv.Addr).Msg("med-assist backend listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *httpService) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
