package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
)

// RouterConfig holds what the router needs beyond the handlers
type RouterConfig struct {
	Auth           *Authenticator
	CronSecret     string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.StandardLogger(),
		NoColor: true,
	}))
	r.Use(Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Cron-Secret"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Scheduled triggers
		r.Route("/cron", func(r chi.Router) {
			r.Use(CronSecret(cfg.CronSecret))
			r.Get("/period-closure-early-freeze", h.CronEarlyFreeze)
			r.Get("/period-closure-dxlive-freeze", h.CronDxliveFreeze)
			r.Get("/period-closure-close", h.CronClose)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Middleware)

			r.Route("/calculator", func(r chi.Router) {
				r.Get("/platforms", h.ListPlatforms)
				r.Get("/config", h.GetConfig)
				r.Post("/config", requireAdmin(h.UpdateConfig))
				r.Get("/models", requireAdmin(h.ListModels))
				r.Get("/admin-view", requireAdmin(h.AdminView))
				r.Get("/model-values", h.GetModelValues)
				r.Post("/model-values", h.SaveModelValues)
				r.Get("/history", h.History)
				r.Get("/period-closure/status", h.PeriodStatus)
				r.Post("/period-closure/early-freeze", requireAdmin(h.EarlyFreeze))
				r.Post("/force-reset", requireAdmin(h.ForceReset))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/unfreeze-platforms", requireAdmin(h.ListFrozen))
				r.Delete("/unfreeze-platforms", requireAdmin(h.Unfreeze))
			})

			r.Route("/rates", func(r chi.Router) {
				r.Get("/", h.ListRates)
				r.Post("/", requireAdmin(h.ActivateRate))
			})
		})
	})

	return r
}

// Recoverer turns a handler panic into a 500 response in the usual envelope
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.WithFields(log.Fields{
				"method":    r.Method,
				"path":      r.URL.Path,
				"requestID": middleware.GetReqID(r.Context()),
				"panic":     rec,
				"stack":     string(debug.Stack()),
			}).Error("Recovered from panic in HTTP handler")

			writeFailure(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

// Server wraps the HTTP server lifecycle
type Server struct {
	server *http.Server
}

// NewServer creates a new HTTP server on port
func NewServer(port int, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
