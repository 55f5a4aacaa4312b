package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type catalogResult struct {
	entries []model.CatalogEntry
	err     error
}

// fakeCatalog replays results in order and repeats the last one.
type fakeCatalog struct {
	mu      sync.Mutex
	results []catalogResult
	calls   int
	onFetch func()
}

func (f *fakeCatalog) FetchCatalog(context.Context) (model.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	r := f.results[i]
	if r.err != nil {
		return model.Catalog{}, r.err
	}
	return model.NewCatalog(r.entries), nil
}

func (f *fakeCatalog) push(entries []model.CatalogEntry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, catalogResult{entries, err})
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stockReply struct {
	obs *model.StockObservation
	err error
}

type fakeStock struct {
	mu      sync.Mutex
	replies map[string]stockReply
	calls   []string
	hook    func(sku string)
}

func newFakeStock() *fakeStock {
	return &fakeStock{replies: make(map[string]stockReply)}
}

func (f *fakeStock) set(sku string, active bool, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[sku] = stockReply{obs: &model.StockObservation{SKU: sku, IsActive: active, Price: "999", ProductURL: url}}
}

func (f *fakeStock) fail(sku string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[sku] = stockReply{err: err}
}

func (f *fakeStock) untracked(sku string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[sku] = stockReply{}
}

func (f *fakeStock) FetchStock(_ context.Context, sku string) (*model.StockObservation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sku)
	r := f.replies[sku]
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(sku)
	}
	if r.obs != nil {
		obs := *r.obs
		return &obs, nil
	}
	return nil, r.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	alerts    []notify.Alert
	statuses  []notify.StatusReport
	startups  []string
	notices   []string
	initCalls int
	shutdowns int
	onAlert   func(notify.Alert)
}

func (f *fakeNotifier) InitializeAll(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return []string{"fake"}
}

func (f *fakeNotifier) DispatchStockAlert(_ context.Context, a notify.Alert) {
	if f.onAlert != nil {
		f.onAlert(a)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func (f *fakeNotifier) DispatchStatusUpdate(_ context.Context, r notify.StatusReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, r)
}

func (f *fakeNotifier) DispatchStartup(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startups = append(f.startups, text)
}

func (f *fakeNotifier) DispatchNotice(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
}

func (f *fakeNotifier) ShutdownAll(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func (f *fakeNotifier) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type fakeSpacer struct {
	mu     sync.Mutex
	waits  int
	resets int
}

func (f *fakeSpacer) Wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return ctx.Err()
}

func (f *fakeSpacer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
