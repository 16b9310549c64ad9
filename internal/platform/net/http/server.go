package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"
)

// ShutdownGrace bounds the drain once the run context is cancelled
const ShutdownGrace = 30 * time.Second

// Server owns the root chi mux and the listener
type Server struct {
	mux *chi.Mux
	srv *http.Server
}

// NewServer reads PORT (default ":4000") from cfg; a bare port number listens on every interface
func NewServer(cfg config.Conf) *Server {
	addr := cfg.MayString("PORT", ":4000")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	mux := chi.NewRouter()
	return &Server{
		mux: mux,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router is the root router
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Handler is the root handler, for tests
func (s *Server) Handler() http.Handler { return s.mux }

// Addr is the configured listen address
func (s *Server) Addr() string { return s.srv.Addr }

// Run listens until ctx is cancelled, then drains for up to ShutdownGrace
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.Named("http")
	log.Info().Str("addr", ln.Addr().String()).Msg("http listening")

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		if err := s.srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	})
	defer stop()

	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
