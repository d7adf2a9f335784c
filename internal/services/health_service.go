package services

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"wqdash/internal/config"
	"wqdash/internal/dashboard"
	"wqdash/pkg/contracts"
)

// PhaseSource reports the dashboard phase
type PhaseSource interface {
	Phase() dashboard.Phase
}

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Config
	dashboard PhaseSource
	hub       ClientCounter
	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. cfg and hub may be nil.
func NewHealthService(version, buildTime string, cfg *config.Config, dash PhaseSource, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     cfg,
		dashboard: dash,
		hub:       hub,
		startTime: time.Now(),
		now:       time.Now,
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: hs.now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports ready only once the dashboard has data to show
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: hs.now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"dashboard": hs.checkDashboardHealth(),
			"data":      hs.checkDataHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.DebugContext(ctx, "ReadinessCheck: not ready",
			slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: hs.now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns build information plus process uptime
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.Build(hs.version)
	info.BuildTime = hs.buildTime
	return map[string]interface{}{
		"app":          config.AppName,
		"build":        info,
		"version":      info.Version,
		"build_time":   info.BuildTime,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": hs.now().Format(time.RFC3339),
	}
}

func (hs *HealthService) checkDashboardHealth() ServiceHealth {
	if hs.dashboard == nil {
		return ServiceHealth{Status: "not_ready", Message: "dashboard not configured"}
	}
	switch phase := hs.dashboard.Phase(); phase {
	case dashboard.PhaseReady:
		return ServiceHealth{Status: "ready"}
	case dashboard.PhaseFailed:
		return ServiceHealth{Status: "failed", Message: config.LoadFailureMessage}
	default:
		return ServiceHealth{Status: "not_ready", Message: "dashboard is " + string(phase)}
	}
}

func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "ready"}
	}
	if !config.FileExists(hs.paths.RecordsPath()) {
		return ServiceHealth{Status: "not_ready", Message: "records file not found"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "ready", Message: "websocket disabled"}
	}
	return ServiceHealth{Status: "ready", Message: formatClients(hs.hub.ClientCount())}
}

func formatClients(n int) string {
	if n == 1 {
		return "1 client connected"
	}
	return strconv.Itoa(n) + " clients connected"
}
