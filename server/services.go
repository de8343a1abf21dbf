package server

import (
	"supapool/pkg/client"
	"supapool/pkg/config"
	"supapool/pkg/health"
	"supapool/pkg/logger"
	"supapool/pkg/metrics"
	"supapool/pkg/pool"
)

// Services holds all major application services for dependency injection
type Services struct {
	Config  *config.ServerConfig
	Logger  *logger.Logger
	Factory client.Factory
	Pool    *pool.Pool
	Metrics *metrics.Collector
	Health  *health.Monitor
}

// NewServices creates and initializes all services
func NewServices(cfg *config.ServerConfig) (*Services, error) {
	log := logger.Get()

	log.InfoWith("initializing services", "config", cfg.String())

	// Build the backend client factory
	factory, err := client.NewFactory(cfg.Backend)
	if err != nil {
		log.ErrorWithErr("failed to initialize backend factory", err)
		return nil, err
	}

	// Metrics collector doubles as the pool's event recorder
	collector := metrics.NewCollector(factory.Name())

	p := pool.New(pool.Config{
		PoolSize:          cfg.Pool.PoolSize,
		ConnectionTimeout: cfg.Pool.ConnectionTimeout(),
		IdleTimeout:       cfg.Pool.IdleTimeout(),
		RetryAttempts:     cfg.Pool.RetryAttempts,
		RetryDelay:        cfg.Pool.RetryDelay(),
		CleanupInterval:   cfg.Pool.CleanupInterval(),
	}, factory, log)
	p.SetRecorder(collector)

	monitor := health.NewMonitor()
	monitor.SetComponentStatus("pool", health.StatusHealthy, "pool initialized")
	monitor.SetComponentStatus("backend", health.StatusHealthy, factory.Name())

	log.InfoWith("services initialized successfully", "backend", factory.Name())

	return &Services{
		Config:  cfg,
		Logger:  log,
		Factory: factory,
		Pool:    p,
		Metrics: collector,
		Health:  monitor,
	}, nil
}
