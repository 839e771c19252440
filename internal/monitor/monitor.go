// Package monitor runs the background gateway health sweeps. Results are
// persisted and cached but never consulted synchronously on the payment
// path: routing reads the last snapshot, payments never wait on a check.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/metrics"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

const (
	// DefaultInterval between sweeps.
	DefaultInterval = 30 * time.Second
	// DefaultStartupDelay before the first sweep, so the process can
	// finish wiring before checks start firing.
	DefaultStartupDelay = 5 * time.Second
	// checkTimeout bounds one gateway's health check.
	checkTimeout = 5 * time.Second
)

// HealthStore persists sweep results.
type HealthStore interface {
	UpsertGatewayHealth(ctx context.Context, rec *storage.GatewayHealth) error
	ListGatewayHealth(ctx context.Context) ([]storage.GatewayHealth, error)
}

// SnapshotCache receives the full health snapshot after each sweep.
type SnapshotCache interface {
	Put(ctx context.Context, records []storage.GatewayHealth) error
}

// Monitor periodically health-checks every configured gateway.
type Monitor struct {
	gateways map[string]gateway.Gateway
	store    HealthStore
	cache    SnapshotCache
	metrics  *metrics.Metrics
	log      *logrus.Entry

	Interval     time.Duration
	StartupDelay time.Duration
}

// New builds a Monitor with the default cadence. cache and m may be nil.
func New(gateways map[string]gateway.Gateway, store HealthStore, cache SnapshotCache, m *metrics.Metrics, log *logrus.Logger) *Monitor {
	return &Monitor{
		gateways:     gateways,
		store:        store,
		cache:        cache,
		metrics:      m,
		log:          log.WithField("component", "health_monitor"),
		Interval:     DefaultInterval,
		StartupDelay: DefaultStartupDelay,
	}
}

// Run blocks, sweeping on the configured cadence until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.log.WithField("interval", m.Interval.String()).Info("health monitor starting")

	select {
	case <-time.After(m.StartupDelay):
	case <-ctx.Done():
		m.log.Info("health monitor stopped before first sweep")
		return
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	m.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-ctx.Done():
			m.log.Info("health monitor stopped")
			return
		}
	}
}

// Sweep checks every gateway once. Faults are isolated per gateway: one
// failing check or write never blocks the rest of the sweep.
func (m *Monitor) Sweep(ctx context.Context) {
	names := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := m.check(ctx, m.gateways[name])
		m.metrics.ObserveHealth(res)

		rec := &storage.GatewayHealth{
			GatewayName:   res.GatewayName,
			Status:        string(res.Status),
			LatencyMs:     res.LatencyMs,
			Message:       res.Message,
			LastCheckedAt: time.Now().UTC(),
		}
		if err := m.store.UpsertGatewayHealth(ctx, rec); err != nil {
			m.log.WithError(err).WithField("gateway", name).Warn("failed to persist health record")
			continue
		}
		if res.Status != gateway.StatusHealthy {
			m.log.WithFields(logrus.Fields{
				"gateway": name,
				"status":  res.Status,
				"message": res.Message,
			}).Warn("gateway unhealthy")
		}
	}

	if m.cache == nil {
		return
	}
	records, err := m.store.ListGatewayHealth(ctx)
	if err != nil {
		m.log.WithError(err).Warn("failed to load snapshot for cache refresh")
		return
	}
	if err := m.cache.Put(ctx, records); err != nil {
		m.log.WithError(err).Warn("failed to refresh health cache")
	}
}

// check invokes one adapter's health check, normalizing a panic to a
// down result. A misbehaving adapter must not end the sweep or take the
// monitor goroutine down with it.
func (m *Monitor) check(ctx context.Context, gw gateway.Gateway) (res gateway.HealthResult) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("gateway", gw.Name()).Warnf("health check panicked: %v", r)
			res = gateway.HealthResult{
				GatewayName: gw.Name(),
				Status:      gateway.StatusDown,
				Message:     fmt.Sprint(r),
			}
		}
	}()
	return gw.HealthCheck(ctx)
}
