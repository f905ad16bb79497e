package jobs

import (
	"context"
	"log"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"schoolportal/internal/config"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSetter is satisfied by the grpc health server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// StartHealthProbe pings the database on every tick and mirrors the result into the health status.
func StartHealthProbe(ctx context.Context, cfg config.Config, db Pinger, health StatusSetter, service string) {
	if db == nil || health == nil {
		log.Printf("health probe disabled: dependencies not configured")
		return
	}
	interval := cfg.HealthProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.HealthProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		serving := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				serving = probe(ctx, db, health, service, timeout, serving)
			}
		}
	}()
}

func probe(ctx context.Context, db Pinger, health StatusSetter, service string, timeout time.Duration, wasServing bool) bool {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	err := db.Ping(tickCtx)
	cancel()
	if err != nil {
		if wasServing {
			log.Printf("health probe: database unreachable: %v", err)
		}
		health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	if !wasServing {
		log.Printf("health probe: database reachable again")
	}
	health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	return true
}
