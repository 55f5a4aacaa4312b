package notify

import (
	"context"
	"sync"
	"time"
)

type fakeChannel struct {
	name      string
	initOK    bool
	initErr   error
	initDelay time.Duration

	alertErr    error
	alertDelay  time.Duration
	alertPanic  bool
	statusPanic bool
	ignoreCtx   bool

	mu        sync.Mutex
	alerts    []Alert
	statuses  []StatusReport
	texts     []string
	shutdowns int
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, initOK: true}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Initialize(context.Context) (bool, error) {
	// ignores ctx like a client stuck in a slow handshake
	time.Sleep(f.initDelay)
	return f.initOK, f.initErr
}

func (f *fakeChannel) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeChannel) SendStockAlert(ctx context.Context, alert Alert) error {
	if f.alertPanic {
		panic("boom")
	}
	if f.alertDelay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.alertDelay)
		} else {
			select {
			case <-time.After(f.alertDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.alertErr
}

func (f *fakeChannel) SendStatusUpdate(_ context.Context, report StatusReport) error {
	if f.statusPanic {
		panic("status boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, report)
	return nil
}

func (f *fakeChannel) SendStartupMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeChannel) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakeChannel) shutdownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

type recordedNotification struct {
	channel, event string
	err            error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedNotification
}

func (r *fakeRecorder) RecordNotification(_ context.Context, channel, event string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedNotification{channel, event, err})
}
