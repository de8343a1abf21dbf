package pool

// Stats holds pool-wide counters. Connection counts are derived from the
// connection table under the pool mutex, so the active + idle == total
// invariant holds by construction at every quiescent point.
type Stats struct {
	TotalConnections  int     `json:"total_connections"`
	ActiveConnections int     `json:"active_connections"`
	IdleConnections   int     `json:"idle_connections"`
	FailedConnections int64   `json:"failed_connections"`
	TotalQueries      int64   `json:"total_queries"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
}

// Status extends Stats with derived utilization figures for the
// observability surface.
type Status struct {
	Stats
	PoolSize        int     `json:"pool_size"`
	WaitingCount    int     `json:"waiting_count"`
	UtilizationRate float64 `json:"utilization_rate"`
	ShuttingDown    bool    `json:"shutting_down"`
	Backend         string  `json:"backend"`
}

// Recorder receives pool lifecycle events. Implementations must not call
// back into the pool; the pool invokes them outside its mutex.
type Recorder interface {
	// ObserveAcquire records a successful acquisition and its wait time
	ObserveAcquire(waitMS float64, reused bool)

	// RecordTimeout records a queued caller rejected by the acquire timeout
	RecordTimeout()

	// RecordCreationFailure records a handle that failed its validation probe
	RecordCreationFailure()

	// RecordReaped records connections removed by the idle reaper
	RecordReaped(count int)

	// RecordRetry records one retry of a failed query
	RecordRetry()
}

// statsLocked derives the counter snapshot. Callers must hold the mutex.
func (p *Pool) statsLocked() Stats {
	active := 0
	for _, c := range p.conns {
		if c.active {
			active++
		}
	}
	return Stats{
		TotalConnections:  len(p.conns),
		ActiveConnections: active,
		IdleConnections:   len(p.conns) - active,
		FailedConnections: p.failedConns,
		TotalQueries:      p.totalQueries,
		AvgResponseTimeMS: p.respTimeAvg,
	}
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// Status returns the stats snapshot plus utilization and queue depth
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.statsLocked()
	return Status{
		Stats:           stats,
		PoolSize:        p.cfg.PoolSize,
		WaitingCount:    len(p.waiters),
		UtilizationRate: float64(stats.ActiveConnections) / float64(p.cfg.PoolSize) * 100,
		ShuttingDown:    p.closed,
		Backend:         p.factory.Name(),
	}
}

// Connections returns snapshots of every pooled connection, ordered by
// creation time
func (p *Pool) Connections() []ConnectionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]ConnectionInfo, 0, len(p.conns))
	for _, c := range p.conns {
		infos = append(infos, ConnectionInfo{
			ID:         c.id,
			Active:     c.active,
			CreatedAt:  c.createdAt,
			LastUsed:   c.lastUsed,
			QueryCount: c.queryCount,
		})
	}
	sortByCreation(infos)
	return infos
}

func sortByCreation(infos []ConnectionInfo) {
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].CreatedAt.Before(infos[j-1].CreatedAt); j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}
