package httpapi

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// Server owns the listening fasthttp server.
type Server struct {
	addr string
	srv  *fasthttp.Server
}

func NewServer(addr string, h *Handler) *Server {
	return &Server{
		addr: addr,
		srv: &fasthttp.Server{
			Handler:            h.Handle,
			Name:               "web-chess",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       defaultDeadline + 5*time.Second,
			IdleTimeout:        time.Minute,
			MaxRequestBodySize: 2 * maxUploadBytes,
		},
	}
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}
