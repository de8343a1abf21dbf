package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supapool/pkg/api"
	"supapool/pkg/health"
	"supapool/pkg/logger"
	"supapool/pkg/pool"
)

// statusInterval is how often pool status is pushed into the metrics gauges
// and the health monitor.
const statusInterval = 5 * time.Second

// Server ties the HTTP surface to the pool and its observers
type Server struct {
	services *Services
	httpSrv  *http.Server
	log      *logger.Logger
	done     chan struct{}
}

// NewServer builds the router and HTTP server around the services container
func NewServer(services *Services) *Server {
	cfg := services.Config

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.CORSMiddleware())
	router.Use(api.RequestIDMiddleware())
	router.Use(api.RequestLogger(services.Logger))

	handler := api.NewHandler(
		services.Pool,
		services.Health,
		services.Metrics,
		services.Logger,
		cfg.WebUI.Username,
		cfg.WebUI.Password,
	)
	handler.RegisterRoutes(router)

	return &Server{
		services: services,
		httpSrv: &http.Server{
			Addr:         cfg.Address,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		log:  services.Logger,
		done: make(chan struct{}),
	}
}

// Start warms the pool, launches the status ticker, and serves HTTP. It
// blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	cfg := s.services.Config

	warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	created := s.services.Pool.WarmUp(warmCtx, cfg.Pool.WarmupConns)
	cancel()
	s.log.InfoWith("initial warm-up finished", "connections", created)

	go s.statusLoop()

	var err error
	if cfg.TLS.Enabled {
		err = s.httpSrv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// statusLoop periodically pushes pool status into the metrics gauges and
// derives the pool health component from queue pressure.
func (s *Server) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			status := s.services.Pool.Status()
			s.services.Metrics.RecordPoolStatus(status)

			switch {
			case status.ShuttingDown:
				s.services.Health.SetComponentStatus("pool", health.StatusUnhealthy, "shutting down")
			case status.WaitingCount > 0 && status.UtilizationRate >= 100:
				s.services.Health.SetComponentStatusWithDetails("pool", health.StatusDegraded,
					"pool saturated", status)
			default:
				s.services.Health.SetComponentStatusWithDetails("pool", health.StatusHealthy,
					"running", status)
			}
		}
	}
}

// Shutdown stops the HTTP server, then the pool. The order matters: no new
// requests can arrive once the listener is drained, so the pool shuts down
// with an empty queue.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)

	err := s.httpSrv.Shutdown(ctx)
	s.services.Pool.Shutdown()
	return err
}

// Pool exposes the underlying pool, used by integration tests
func (s *Server) Pool() *pool.Pool {
	return s.services.Pool
}
