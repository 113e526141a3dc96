package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// a manual scan may broadcast to every admin
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}}
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	log.Info().Str("addr", s.srv.Addr).Msg("http server starting")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	return s.srv.Shutdown(ctx)
}
