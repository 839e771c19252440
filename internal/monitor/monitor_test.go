package monitor

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/gatewaytest"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

type memHealthStore struct {
	mu      sync.Mutex
	records map[string]storage.GatewayHealth
	upserts int
}

func newMemHealthStore() *memHealthStore {
	return &memHealthStore{records: make(map[string]storage.GatewayHealth)}
}

func (s *memHealthStore) UpsertGatewayHealth(_ context.Context, rec *storage.GatewayHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.GatewayName] = *rec
	s.upserts++
	return nil
}

func (s *memHealthStore) ListGatewayHealth(context.Context) ([]storage.GatewayHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.GatewayHealth, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

type memCache struct {
	mu   sync.Mutex
	puts int
	last []storage.GatewayHealth
}

func (c *memCache) Put(_ context.Context, records []storage.GatewayHealth) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.last = records
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSweepPersistsAllGateways(t *testing.T) {
	healthy := gatewaytest.New("stripe")
	down := gatewaytest.New("razorpay")
	down.HealthFunc = func(context.Context) gateway.HealthResult {
		return gateway.HealthResult{
			GatewayName: "razorpay",
			Status:      gateway.StatusDown,
			Message:     "connect: connection refused",
		}
	}
	store := newMemHealthStore()
	cache := &memCache{}

	m := New(map[string]gateway.Gateway{"stripe": healthy, "razorpay": down}, store, cache, nil, quietLog())
	m.Sweep(context.Background())

	require.Len(t, store.records, 2)
	assert.Equal(t, string(gateway.StatusHealthy), store.records["stripe"].Status)
	assert.Equal(t, string(gateway.StatusDown), store.records["razorpay"].Status)
	assert.False(t, store.records["stripe"].LastCheckedAt.IsZero())

	assert.Equal(t, 1, cache.puts)
	assert.Len(t, cache.last, 2)
}

func TestSweepIsolatesPanickingGateway(t *testing.T) {
	panicking := gatewaytest.New("razorpay")
	panicking.HealthFunc = func(context.Context) gateway.HealthResult {
		panic("provider SDK blew up")
	}
	healthy := gatewaytest.New("stripe")
	store := newMemHealthStore()

	m := New(map[string]gateway.Gateway{"razorpay": panicking, "stripe": healthy}, store, nil, nil, quietLog())
	require.NotPanics(t, func() { m.Sweep(context.Background()) })

	require.Len(t, store.records, 2)
	assert.Equal(t, string(gateway.StatusDown), store.records["razorpay"].Status)
	assert.Equal(t, "provider SDK blew up", store.records["razorpay"].Message)
	assert.Equal(t, string(gateway.StatusHealthy), store.records["stripe"].Status)
}

func TestSweepWithoutCache(t *testing.T) {
	store := newMemHealthStore()
	m := New(map[string]gateway.Gateway{"stripe": gatewaytest.New("stripe")}, store, nil, nil, quietLog())
	m.Sweep(context.Background())
	assert.Equal(t, 1, store.upserts)
}

func TestRunHonorsCancellation(t *testing.T) {
	store := newMemHealthStore()
	m := New(map[string]gateway.Gateway{"stripe": gatewaytest.New("stripe")}, store, nil, nil, quietLog())
	m.StartupDelay = time.Millisecond
	m.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.upserts >= 2
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestRunStopsDuringStartupDelay(t *testing.T) {
	store := newMemHealthStore()
	m := New(map[string]gateway.Gateway{"stripe": gatewaytest.New("stripe")}, store, nil, nil, quietLog())
	m.StartupDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop during startup delay")
	}
	assert.Equal(t, 0, store.upserts)
}
