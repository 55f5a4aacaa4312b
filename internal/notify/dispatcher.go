package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrSendTimeout  = errors.New("send timed out")
	ErrChannelPanic = errors.New("channel panicked")
)

const (
	DefaultSendTimeout  = 15 * time.Second
	DefaultDrainTimeout = 10 * time.Second
)

// Recorder is told about every channel call the dispatcher makes.
type Recorder interface {
	RecordNotification(ctx context.Context, channel, event string, err error)
}

type Dispatcher struct {
	log          *slog.Logger
	recorder     Recorder
	sendTimeout  time.Duration
	drainTimeout time.Duration

	mu       sync.RWMutex
	channels []Channel
	active   []Channel
	closing  bool

	inflight sync.WaitGroup
	pending  atomic.Int64
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

func WithDrainTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.drainTimeout = t
		}
	}
}

func NewDispatcher(channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:          slog.Default(),
		sendTimeout:  DefaultSendTimeout,
		drainTimeout: DefaultDrainTimeout,
		channels:     channels,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "dispatcher")
	return d
}

// InitializeAll initializes every registered channel and keeps the ones that
// report ready. It returns the names of the active channels.
func (d *Dispatcher) InitializeAll(ctx context.Context) []string {
	var active []Channel
	for _, ch := range d.channels {
		initialized := make(chan bool, 1)
		err := d.send(ctx, ch, EventInitialize, func(ctx context.Context) (err error) {
			var ok bool
			defer func() { initialized <- ok && err == nil }()
			ok, err = ch.Initialize(ctx)
			return err
		})
		switch {
		case errors.Is(err, ErrSendTimeout):
			d.log.Warn("channel disabled", "channel", ch.Name(), "error", err)
			go d.release(ctx, ch, initialized)
		case err != nil:
			d.log.Warn("channel disabled", "channel", ch.Name(), "error", err)
		case !<-initialized:
			d.log.Info("channel disabled", "channel", ch.Name(), "reason", "not configured")
		default:
			active = append(active, ch)
		}
	}

	d.mu.Lock()
	d.active = active
	d.mu.Unlock()

	names := d.Active()
	d.log.Info("notification channels ready", "active", names)
	return names
}

// release shuts down a channel whose Initialize outlived its timeout but
// still came up, so its workers and connections are not left running.
func (d *Dispatcher) release(ctx context.Context, ch Channel, initialized <-chan bool) {
	if !<-initialized {
		return
	}
	d.log.Warn("releasing channel that initialized after its timeout", "channel", ch.Name())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()
	if err := ch.Shutdown(shutdownCtx); err != nil {
		d.log.Error("channel shutdown failed", "channel", ch.Name(), "error", err)
	}
}

func (d *Dispatcher) Active() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.active))
	for _, ch := range d.active {
		names = append(names, ch.Name())
	}
	return names
}

func (d *Dispatcher) snapshot() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// DispatchStockAlert sends the alert to every active channel concurrently and
// returns without waiting. The sends outlive ctx cancellation; ShutdownAll
// waits for them.
func (d *Dispatcher) DispatchStockAlert(ctx context.Context, alert Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closing {
		d.log.Warn("dispatcher closing, alert dropped", "sku", alert.SKU, "id", alert.ID)
		return
	}

	sendCtx := context.WithoutCancel(ctx)
	for _, ch := range d.active {
		d.inflight.Add(1)
		d.pending.Add(1)
		go func(ch Channel) {
			defer d.inflight.Done()
			defer d.pending.Add(-1)
			_ = d.send(sendCtx, ch, EventStockAlert, func(ctx context.Context) error {
				return ch.SendStockAlert(ctx, alert)
			})
		}(ch)
	}
}

func (d *Dispatcher) DispatchStatusUpdate(ctx context.Context, report StatusReport) {
	for _, ch := range d.snapshot() {
		_ = d.send(ctx, ch, EventStatusUpdate, func(ctx context.Context) error {
			return ch.SendStatusUpdate(ctx, report)
		})
	}
}

func (d *Dispatcher) DispatchStartup(ctx context.Context, text string) {
	d.dispatchText(ctx, EventStartup, text)
}

// DispatchNotice sends a diagnostic text message through the same path as the
// startup banner.
func (d *Dispatcher) DispatchNotice(ctx context.Context, text string) {
	d.dispatchText(ctx, EventNotice, text)
}

func (d *Dispatcher) dispatchText(ctx context.Context, event, text string) {
	for _, ch := range d.snapshot() {
		_ = d.send(ctx, ch, event, func(ctx context.Context) error {
			return ch.SendStartupMessage(ctx, text)
		})
	}
}

// Pending returns the number of stock alert sends still in flight.
func (d *Dispatcher) Pending() int64 {
	return d.pending.Load()
}

// ShutdownAll stops accepting alerts, waits up to the drain timeout for the
// in-flight ones and then shuts every active channel down.
func (d *Dispatcher) ShutdownAll(ctx context.Context) {
	d.mu.Lock()
	d.closing = true
	active := d.active
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.log.Warn("drain timeout, abandoning in-flight alerts", "pending", d.Pending())
	case <-ctx.Done():
		d.log.Warn("shutdown cancelled, abandoning in-flight alerts", "pending", d.Pending())
	}

	for _, ch := range active {
		_ = d.send(context.WithoutCancel(ctx), ch, EventShutdown, func(ctx context.Context) error {
			return ch.Shutdown(ctx)
		})
	}
	d.log.Info("notification channels shut down")
}

// send runs fn under the per-channel timeout, turning panics and overruns
// into errors. Failures are logged and never propagate to other channels.
func (d *Dispatcher) send(ctx context.Context, ch Channel, event string, fn func(context.Context) error) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrChannelPanic, r)
			}
		}()
		done <- fn(sendCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = fmt.Errorf("%w after %s: %v", ErrSendTimeout, d.sendTimeout, sendCtx.Err())
	}

	if err != nil && event != EventInitialize {
		d.log.Error("notification failed", "channel", ch.Name(), "event", event, "error", err)
	}
	if d.recorder != nil && event != EventInitialize && event != EventShutdown {
		d.recorder.RecordNotification(ctx, ch.Name(), event, err)
	}
	return err
}
