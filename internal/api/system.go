package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// healthCheckTimeout bounds each component health probe so one hung
// backend cannot stall the endpoint.
const healthCheckTimeout = 2 * time.Second

// systemStatusInterval is the cadence of system_status broadcasts to
// subscribed WebSocket clients.
const systemStatusInterval = 30 * time.Second

// SystemInfo represents the system info response.
type SystemInfo struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Telescopes    telescopeCounts `json:"telescopes"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

type telescopeCounts struct {
	Stored    int `json:"stored"`
	Active    int `json:"active"`
	Connected int `json:"connected"`
}

// handleHealth reports overall health: the registry summary plus one
// status line per registered infrastructure component.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.health))
	status := "ok"

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"telescopes": telescopeCounts{
			Stored:    stats.Stored,
			Active:    stats.Active,
			Connected: stats.Connected,
		},
		"components": components,
	})
}

// systemStatusLoop periodically broadcasts registry statistics on the
// system_status channel so dashboards track the slot summary without
// polling.
func (s *Server) systemStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(systemStatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.registry.GetStats()
			s.hub.Broadcast(ChannelSystemStatus, map[string]any{
				"status": "ok",
				"telescopes": telescopeCounts{
					Stored:    stats.Stored,
					Active:    stats.Active,
					Connected: stats.Connected,
				},
			})
		}
	}
}

// handleInfo returns version, uptime, runtime and registry statistics.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.registry.GetStats()

	writeJSON(w, http.StatusOK, SystemInfo{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Telescopes: telescopeCounts{
			Stored:    stats.Stored,
			Active:    stats.Active,
			Connected: stats.Connected,
		},
	})
}
