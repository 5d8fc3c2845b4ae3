// Package server is the composition root: it builds every component from
// config, mounts the routes, and runs the HTTP server until a signal.
//
// DEPENDENCY GRAPH:
//
//	upstream.Client ──► directory.Cache ──► AuthService, ContactService
//	       │                                      │
//	       └──────────────► ChatService ◄─────────┤
//	                              │               │
//	presence.Registry ◄───────────┴───────────────┘
//	       ▲
//	   push.Hub (GET /ws)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/chat-gateway/internal/auth"
	"github.com/sakif/chat-gateway/internal/config"
	"github.com/sakif/chat-gateway/internal/directory"
	"github.com/sakif/chat-gateway/internal/handler"
	"github.com/sakif/chat-gateway/internal/middleware"
	"github.com/sakif/chat-gateway/internal/presence"
	"github.com/sakif/chat-gateway/internal/push"
	"github.com/sakif/chat-gateway/internal/service"
	"github.com/sakif/chat-gateway/internal/upstream"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 30 * time.Second

// Server owns the router and the long-lived components behind it.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	metrics *prometheus.Registry

	gateway   upstream.Gateway
	directory *directory.Cache
	presence  *presence.Registry
	hub       *push.Hub
	tokens    *auth.TokenService
}

// New wires the gateway from cfg. A nil gw means "talk to CometChat with
// cfg.CometChat"; tests pass an in-memory Gateway instead.
func New(cfg config.Config, logger *slog.Logger, gw upstream.Gateway) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if gw == nil {
		client, err := upstream.NewClient(upstream.Config{
			AppID:   cfg.CometChat.AppID,
			Region:  cfg.CometChat.Region,
			APIKey:  cfg.CometChat.APIKey,
			BaseURL: cfg.CometChat.BaseURL,
			Timeout: cfg.CometChat.Timeout,
		}, logger.With(slog.String("component", "upstream")), reg)
		if err != nil {
			return nil, fmt.Errorf("creating chat platform client: %w", err)
		}
		gw = client
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	threshold := cfg.SearchThreshold
	dir := directory.New(gw, directory.Options{
		PageSize:     cfg.DirectoryPageSize,
		Threshold:    &threshold,
		StrictCreate: cfg.StrictCreate,
	}, logger.With(slog.String("component", "directory")), reg)

	registry := presence.New(logger.With(slog.String("component", "presence")), reg)

	hubOpts := push.DefaultOptions()
	hubOpts.CheckOrigin = middleware.WebSocketOrigin(cfg.AllowedOriginPrefixes)
	hub := push.NewHub(registry, hubOpts, logger.With(slog.String("component", "push")))

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		metrics:   reg,
		gateway:   gw,
		directory: dir,
		presence:  registry,
		hub:       hub,
		tokens:    tokens,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes mounts middleware and routes.
//
// ROUTES:
//
//	GET  /healthz                      public
//	GET  /metrics                      public
//	POST /auth/register                public, rate limited per IP
//	POST /auth/login                   public, rate limited per IP
//	POST /auth/logout                  public
//	GET  /auth/me                      RequireAuth
//	GET  /contacts                     RequireAuth
//	POST /contacts                     RequireAuth
//	GET  /contacts/find-user?q=        RequireAuth
//	GET  /chat/user/{uid}              RequireAuth
//	POST /chat/user/{uid}              RequireAuth
//	POST /chat/user/{uid}/read         RequireAuth
//	GET  /ws                           RequireAuth, then WebSocket upgrade
//
// MIDDLEWARE ORDER: RequestID → RealIP → Logger → Recoverer → Metrics → CORS.
// RealIP runs before the rate limiter so it keys on the client address.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics(s.metrics))
	r.Use(middleware.CORS(s.config.AllowedOriginPrefixes))

	passwords := auth.NewPasswordService()
	authSvc := service.NewAuthService(s.directory, s.gateway, s.tokens, passwords, s.logger)
	contactSvc := service.NewContactService(s.gateway, s.gateway, s.directory, s.presence, s.logger)
	chatSvc := service.NewChatService(s.gateway, s.presence, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, s.config.CookieSecure, s.logger)
	contactHandler := handler.NewContactHandler(contactSvc)
	chatHandler := handler.NewChatHandler(chatSvc)

	r.Get("/healthz", handler.HandleHealth(handler.HealthFunc(s.health)))
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{Registry: s.metrics}))

	limiter := middleware.NewKeyLimiter(s.config.AuthRatePerSecond, s.config.AuthRateBurst, 10*time.Minute)
	requireAuth := auth.RequireAuth(s.tokens)

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(limiter, s.logger)).Group(func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", contactHandler.HandleList)
			r.Post("/", contactHandler.HandleAdd)
			r.Get("/find-user", contactHandler.HandleFindUser)
		})

		r.Route("/chat/user/{uid}", func(r chi.Router) {
			r.Get("/", chatHandler.HandleConversation)
			r.Post("/", chatHandler.HandleSend)
			r.Post("/read", chatHandler.HandleMarkRead)
		})

		r.Method(http.MethodGet, "/ws", s.hub)
	})
}

func (s *Server) health() handler.HealthReport {
	return handler.HealthReport{
		DirectoryLoaded: s.directory.Loaded(),
		DirectoryUsers:  s.directory.Len(),
		OnlineUsers:     len(s.presence.Online()),
		Connections:     s.hub.Len(),
	}
}

// Handler is the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close drops every push connection. http.Server.Shutdown does not wait for
// hijacked connections, so Start calls this after it.
func (s *Server) Close() {
	s.hub.Close()
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting connections and let in-flight requests finish
//     (up to shutdownTimeout)
//  2. close every WebSocket so clients see a clean close frame
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		s.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(ctx)
		s.Close()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
