package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

var ErrCyclePanic = errors.New("poll cycle panicked")

// Notifier is the dispatcher surface the scheduler needs.
type Notifier interface {
	AlertNotifier
	Noticer
	InitializeAll(ctx context.Context) []string
	DispatchStartup(ctx context.Context, text string)
	ShutdownAll(ctx context.Context)
}

type SchedulerConfig struct {
	CheckInterval time.Duration
	FallbackSleep time.Duration
	DrainTimeout  time.Duration
	Startup       notify.StartupInfo
}

// Scheduler drives the resolve, poll, sleep cycle and owns the run State.
type Scheduler struct {
	cfg      SchedulerConfig
	resolver *Resolver
	poller   *Poller
	notifier Notifier
	store    *SnapshotStore
	log      *slog.Logger

	phase atomic.Value
	state *State

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(cfg SchedulerConfig, resolver *Resolver, poller *Poller, notifier Notifier, store *SnapshotStore, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		store = NewSnapshotStore()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = notify.DefaultDrainTimeout
	}
	s := &Scheduler{
		cfg:      cfg,
		resolver: resolver,
		poller:   poller,
		notifier: notifier,
		store:    store,
		log:      log.With("component", "scheduler"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	s.phase.Store(PhaseStarting)
	return s
}

func (s *Scheduler) Phase() Phase {
	return s.phase.Load().(Phase)
}

func (s *Scheduler) setPhase(p Phase) {
	s.phase.Store(p)
	s.log.Debug("phase changed", "phase", p)
}

func (s *Scheduler) publish(targets []model.ResolvedSku) {
	s.store.Store(newSnapshot(s.Phase(), s.state, targets, s.now()))
}

// Run blocks until ctx is cancelled or resolution fails fatally. Either way
// channels are drained and shut down before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	const op = "monitor.Run"

	s.setPhase(PhaseStarting)
	s.state = NewState(s.now())
	s.publish(nil)

	startup := s.cfg.Startup
	startup.Channels = s.notifier.InitializeAll(ctx)
	s.notifier.DispatchStartup(ctx, startup.Text())

	targets, err := s.resolver.Refresh(ctx, true)
	if err != nil {
		if ctx.Err() != nil {
			s.log.Info("shutdown requested during initial resolution")
			return s.drain(ctx, nil)
		}
		if !errors.Is(err, ErrResolutionExhausted) {
			s.notifier.DispatchNotice(ctx, "Stock monitor stopping: "+err.Error())
		}
		return s.drain(ctx, fmt.Errorf("%s: %w", op, err))
	}

	s.setPhase(PhaseRunning)
	s.publish(targets)
	s.log.Info("monitoring started", "products", len(targets), "check_interval", s.cfg.CheckInterval)

	for ctx.Err() == nil {
		start := s.now()
		next, err := s.cycle(ctx, targets)
		targets = next
		s.publish(targets)

		if ctx.Err() != nil {
			break
		}

		wait := s.cfg.CheckInterval - s.now().Sub(start)
		if err != nil {
			if errors.Is(err, ErrResolutionExhausted) {
				return s.drain(ctx, fmt.Errorf("%s: %w", op, err))
			}
			s.log.Error("poll cycle failed", "error", err, "retry_in", s.cfg.FallbackSleep)
			wait = s.cfg.FallbackSleep
		}
		if wait < 0 {
			wait = 0
		}
		if err := s.sleep(ctx, wait); err != nil {
			break
		}
	}

	s.log.Info("shutdown requested")
	return s.drain(ctx, nil)
}

func (s *Scheduler) cycle(ctx context.Context, prev []model.ResolvedSku) (targets []model.ResolvedSku, err error) {
	targets = prev
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()

	next, err := s.resolver.Refresh(ctx, false)
	if err != nil {
		return prev, err
	}
	targets = next

	return targets, s.poller.Poll(ctx, s.state, targets)
}

func (s *Scheduler) drain(ctx context.Context, cause error) error {
	s.setPhase(PhaseDraining)
	s.markPhase(PhaseDraining)

	// the caller's ctx is usually already cancelled here
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.cfg.DrainTimeout)
	defer cancel()
	s.notifier.ShutdownAll(drainCtx)

	s.setPhase(PhaseStopped)
	s.markPhase(PhaseStopped)

	if cause != nil {
		s.log.Error("monitor stopped", "error", cause)
	} else {
		s.log.Info("monitor stopped")
	}
	return cause
}

func (s *Scheduler) markPhase(p Phase) {
	snap := s.store.Load()
	snap.Phase = p
	snap.UpdatedAt = s.now()
	s.store.Store(snap)
}
