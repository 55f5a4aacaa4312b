package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type schedulerHarness struct {
	sched    *Scheduler
	catalog  *fakeCatalog
	stock    *fakeStock
	notifier *fakeNotifier
	store    *SnapshotStore

	mu    sync.Mutex
	slept []time.Duration
}

func newSchedulerHarness(t *testing.T, products []model.ProductSpec, cycles int, cancel context.CancelFunc) *schedulerHarness {
	t.Helper()
	h := &schedulerHarness{
		catalog:  &fakeCatalog{},
		stock:    newFakeStock(),
		notifier: &fakeNotifier{},
		store:    NewSnapshotStore(),
	}
	resolver, err := NewResolver(products, h.catalog, h.notifier, time.Hour, quietLogger())
	require.NoError(t, err)
	poller := NewPoller(PollerConfig{}, h.stock, h.notifier, &fakeSpacer{}, quietLogger())

	cfg := SchedulerConfig{
		CheckInterval: 10 * time.Second,
		FallbackSleep: 7 * time.Second,
		DrainTimeout:  time.Second,
		Startup:       notify.StartupInfo{Products: []string{"RTX 5090"}},
	}
	h.sched = NewScheduler(cfg, resolver, poller, h.notifier, h.store, quietLogger())
	h.sched.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.slept = append(h.slept, d)
		n := len(h.slept)
		h.mu.Unlock()
		if n >= cycles {
			cancel()
		}
		return ctx.Err()
	}
	return h
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newSchedulerHarness(t, []model.ProductSpec{{Name: "RTX 5090", Enabled: true}}, 3, cancel)
	h.catalog.push(entries("A1", "RTX 5090"), nil)
	h.stock.set("A1", false, "u")

	err := h.sched.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, h.notifier.initCalls)
	require.Len(t, h.notifier.startups, 1)
	assert.Contains(t, h.notifier.startups[0], "Channels: fake")
	assert.Equal(t, 1, h.notifier.shutdowns)
	assert.Equal(t, 1, h.catalog.callCount(), "only the forced initial refresh hits the catalog within the interval")
	assert.Len(t, h.stock.calls, 3)
	assert.Equal(t, 1, h.notifier.alertCount())

	assert.Equal(t, PhaseStopped, h.sched.Phase())
	snap := h.store.Load()
	assert.Equal(t, PhaseStopped, snap.Phase)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "A1", snap.Products[0].SKU)
	assert.True(t, snap.Products[0].Known)
	assert.Equal(t, int64(3), snap.Stats.SuccessfulRequests)

	for _, d := range h.slept {
		assert.LessOrEqual(t, d, 10*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestSchedulerInitialResolutionFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newSchedulerHarness(t, []model.ProductSpec{{Name: "RTX 5090", Enabled: true}}, 1, cancel)
	h.catalog.push(nil, errors.New("503"))

	err := h.sched.Run(ctx)
	assert.ErrorIs(t, err, ErrInitialResolution)
	assert.Equal(t, 1, h.notifier.shutdowns)
	require.Len(t, h.notifier.notices, 1)
	assert.Contains(t, h.notifier.notices[0], "Stock monitor stopping")
	assert.Empty(t, h.stock.calls)
	assert.Equal(t, PhaseStopped, h.sched.Phase())
}

func TestSchedulerCancelledDuringInitialResolution(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newSchedulerHarness(t, []model.ProductSpec{{Name: "RTX 5090", Enabled: true}}, 1, cancel)
	h.catalog.onFetch = cancel
	h.catalog.push(nil, context.Canceled)

	err := h.sched.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.notifier.notices, "a shutdown is not reported as a resolution failure")
	assert.Equal(t, 1, h.notifier.shutdowns)
	assert.Equal(t, PhaseStopped, h.sched.Phase())
}

func TestSchedulerExhaustionMidRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newSchedulerHarness(t, []model.ProductSpec{{Name: "RTX 5090", Enabled: true}}, 10, cancel)
	h.catalog.push(entries("A1", "RTX 5090"), nil)
	h.catalog.push(entries("Z1", "Other"), nil)
	h.stock.set("A1", false, "u")

	clk := newClock()
	h.sched.resolver.now = clk.Now
	h.stock.hook = func(string) { clk.Advance(2 * time.Hour) }

	err := h.sched.Run(ctx)
	assert.ErrorIs(t, err, ErrResolutionExhausted)
	assert.Equal(t, 1, h.notifier.shutdowns)
	assert.Equal(t, 2, h.catalog.callCount())
}

func TestSchedulerRecoversPanickingCycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newSchedulerHarness(t, []model.ProductSpec{{Name: "RTX 5090", Enabled: true}}, 2, cancel)
	h.catalog.push(entries("A1", "RTX 5090"), nil)
	h.stock.set("A1", false, "u")

	var calls int
	h.stock.hook = func(string) {
		calls++
		if calls == 1 {
			panic("decoder exploded")
		}
	}

	err := h.sched.Run(ctx)
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.slept, 2)
	assert.Equal(t, 7*time.Second, h.slept[0], "fallback sleep after a failed cycle")
	assert.Equal(t, 2, calls, "loop keeps running after a panic")
}

func TestSnapshotStoreStartsInStarting(t *testing.T) {
	t.Parallel()

	s := NewSnapshotStore()
	assert.Equal(t, PhaseStarting, s.Load().Phase)

	st := NewState(time.Now())
	st.Stock["A1"] = model.StockRecord{IsActive: true, ProductURL: "u"}
	s.Store(newSnapshot(PhaseRunning, st, targets("A1", "B1"), time.Now()))

	snap := s.Load()
	assert.Equal(t, []string{"product A1", "product B1"}, snap.Monitored())
	assert.True(t, snap.Products[0].InStock)
	assert.False(t, snap.Products[1].Known)
	assert.Equal(t, []string{"product A1", "product B1"}, snap.Report(time.Now()).Monitored)
}
