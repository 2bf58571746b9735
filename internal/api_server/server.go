package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ateliercolor/presstrack/internal/auth"
	"github.com/ateliercolor/presstrack/internal/config"
	"github.com/ateliercolor/presstrack/internal/events"
	handlers "github.com/ateliercolor/presstrack/internal/handlers/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/projection"
	"github.com/ateliercolor/presstrack/internal/realtime"
	"github.com/ateliercolor/presstrack/internal/service"
	"github.com/ateliercolor/presstrack/internal/store"
	"github.com/ateliercolor/presstrack/pkg/metrics"
	"github.com/ateliercolor/presstrack/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of a presstrack server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	registry := events.NewSubscriptionRegistry(s.cfg.Service.ClientOutbox)
	audit := events.NewAuditProducer(&events.StdoutWriter{})
	defer func() {
		if err := audit.Close(); err != nil {
			zap.S().Named("api_server").Warnw("failed to close audit producer", "error", err)
		}
	}()
	broadcaster := events.NewBroadcaster(registry, s.cfg.Service.ReplayBacklog, events.WithAuditProducer(audit))

	thresholds := projection.Thresholds{
		HighAgeDays:   s.cfg.Service.PriorityHighDays,
		MediumAgeDays: s.cfg.Service.PriorityMedDays,
		StaleAgeDays:  s.cfg.Service.StaleCeilingDays,
	}

	jobService := service.NewJobService(s.store, broadcaster, thresholds)
	jobHandler := handlers.NewJobHandler(jobService, thresholds)
	streamHandler := realtime.NewHandler(authenticator, registry, broadcaster)

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()
	prometheus.MustRegister(metrics.NewJobStatsCollector(s.store))

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1alpha1", func(r chi.Router) {
		// the websocket endpoint authenticates through its own first-frame
		// handshake, not the http middleware
		r.Handle("/events/stream", streamHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticator)
			jobHandler.RegisterRoutes(r)
		})
	})

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
