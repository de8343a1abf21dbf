package health

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Details     interface{} `json:"details,omitempty"`
}

// HostInfo carries host-level resource readings
type HostInfo struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// ServerHealth represents overall server health
type ServerHealth struct {
	Status            Status            `json:"status"`
	Uptime            int64             `json:"uptime_seconds"`
	Timestamp         time.Time         `json:"timestamp"`
	ActiveConnections int               `json:"active_connections"`
	Goroutines        int               `json:"goroutines"`
	MemoryMB          uint64            `json:"memory_mb"`
	Host              *HostInfo         `json:"host,omitempty"`
	Components        []ComponentHealth `json:"components"`
}

// Monitor tracks server health metrics
type Monitor struct {
	startTime    time.Time
	componentsMu sync.RWMutex
	components   map[string]*ComponentHealth
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
	}
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.componentsMu.Lock()
	defer m.componentsMu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// SetComponentStatusWithDetails updates component status with additional details
func (m *Monitor) SetComponentStatusWithDetails(name string, status Status, description string, details interface{}) {
	m.componentsMu.Lock()
	defer m.componentsMu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
		Details:     details,
	}
}

// GetHealth returns the current server health. The overall status is the
// worst status among registered components.
func (m *Monitor) GetHealth(activeConnections int) *ServerHealth {
	m.componentsMu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.componentsMu.RUnlock()

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	return &ServerHealth{
		Status:            overallStatus,
		Uptime:            int64(time.Since(m.startTime).Seconds()),
		Timestamp:         time.Now(),
		ActiveConnections: activeConnections,
		Goroutines:        runtime.NumGoroutine(),
		MemoryMB:          stats.Alloc / 1024 / 1024,
		Host:              readHostInfo(),
		Components:        components,
	}
}

// readHostInfo samples host memory and CPU. Readings are best-effort; a nil
// result just omits the host block from the report.
func readHostInfo() *HostInfo {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	info := &HostInfo{MemoryUsedPercent: vm.UsedPercent}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	}
	return info
}
