package main

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/connect"
	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/device"
	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/health"
	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/token"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/tokens"
)

type server struct {
	cfg    Config
	router *chi.Mux

	connect *connect.Handler
	device  *device.Handler
	token   *token.Handler
	health  *health.Handler
}

func newServer(cfg Config, flows *authflow.Service, manager *tokens.Manager, healthHandler *health.Handler) *server {
	srv := &server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		connect: connect.New(flows),
		device:  device.New(flows),
		token:   token.New(manager),
		health:  healthHandler,
	}

	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	srv.routes()
	return srv
}

func (s *server) routes() {
	s.router.Get("/health", s.health.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/oauth/start", s.connect.Start)
		r.Get("/oauth/callback", s.connect.Callback)
		r.Post("/oauth/code", s.connect.Code)

		r.Post("/oauth/device/start", s.device.Start)
		r.Post("/oauth/device/poll", s.device.Poll)

		r.Post("/oauth/refresh", s.token.Refresh)
		r.Get("/providers/{id}/token", s.token.AccessToken)
	})
}
