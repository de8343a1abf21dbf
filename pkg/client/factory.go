package client

import (
	"fmt"

	"supapool/pkg/config"
	apperrors "supapool/pkg/errors"
)

// NewFactory returns a concrete Factory based on backend configuration
func NewFactory(cfg config.BackendConfig) (Factory, error) {
	probeTable := cfg.ProbeTable
	if probeTable == "" {
		probeTable = "health_check"
	}

	switch cfg.Type {
	case "rest", "":
		return &RestFactory{cfg: restSettings{
			URL:        cfg.URL,
			ServiceKey: cfg.ServiceKey,
			Schema:     cfg.Schema,
			ProbeTable: probeTable,
		}}, nil
	case "postgres":
		return &SQLFactory{backend: "postgres", driver: "postgres", dsn: cfg.DSN, probeTable: probeTable}, nil
	case "mysql":
		return &SQLFactory{backend: "mysql", driver: "mysql", dsn: cfg.DSN, probeTable: probeTable}, nil
	case "sqlite":
		return &SQLFactory{backend: "sqlite", driver: "sqlite3", dsn: cfg.DSN, probeTable: probeTable}, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownBackend, cfg.Type)
	}
}
