package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type StockSource interface {
	FetchStock(ctx context.Context, sku string) (*model.StockObservation, error)
}

// AlertNotifier is the part of the dispatcher the poller drives.
type AlertNotifier interface {
	DispatchStockAlert(ctx context.Context, alert notify.Alert)
	DispatchStatusUpdate(ctx context.Context, report notify.StatusReport)
}

// Spacer paces consecutive vendor requests.
type Spacer interface {
	Wait(ctx context.Context) error
	Reset()
}

type TransitionRecorder interface {
	RecordTransition(ctx context.Context, sku string, inStock bool)
}

type PollerConfig struct {
	Cooldown      time.Duration
	StatusEnabled bool
	// StatusSchedule decides when the next heartbeat is due after the last one.
	StatusSchedule cron.Schedule
}

type Poller struct {
	cfg      PollerConfig
	source   StockSource
	notifier AlertNotifier
	spacer   Spacer
	recorder TransitionRecorder
	log      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type PollerOption func(*Poller)

func WithTransitionRecorder(r TransitionRecorder) PollerOption {
	return func(p *Poller) { p.recorder = r }
}

func NewPoller(cfg PollerConfig, source StockSource, notifier AlertNotifier, spacer Spacer, log *slog.Logger, opts ...PollerOption) *Poller {
	if log == nil {
		log = slog.Default()
	}
	p := &Poller{
		cfg:      cfg,
		source:   source,
		notifier: notifier,
		spacer:   spacer,
		log:      log.With("component", "poller"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsTransition decides whether obs is worth an alert given the last known
// record. A product URL change only counts while the SKU is in stock.
func IsTransition(prev model.StockRecord, known bool, obs model.StockObservation) bool {
	if !known {
		return true
	}
	if prev.IsActive != obs.IsActive {
		return true
	}
	return obs.IsActive && prev.ProductURL != obs.ProductURL
}

func (p *Poller) statusDue(st *State, now time.Time) bool {
	if !p.cfg.StatusEnabled || p.cfg.StatusSchedule == nil || !st.Stats.HasChecked() {
		return false
	}
	return !now.Before(p.cfg.StatusSchedule.Next(st.LastStatusUpdate))
}

// Poll runs one inventory pass over targets. Request failures are counted and
// skipped; only cancellation aborts the pass.
func (p *Poller) Poll(ctx context.Context, st *State, targets []model.ResolvedSku) error {
	now := p.now()
	if p.statusDue(st, now) {
		st.LastStatusUpdate = now
		names := make([]string, 0, len(targets))
		for _, t := range targets {
			names = append(names, t.ProductName)
		}
		p.log.Debug("sending status update")
		p.notifier.DispatchStatusUpdate(ctx, notify.NewStatusReport(st.Stats, names, now))
	}

	skipWait := false
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !skipWait {
			if err := p.spacer.Wait(ctx); err != nil {
				return err
			}
		}
		skipWait = false

		obs, err := p.source.FetchStock(ctx, t.CurrentSKU)
		at := p.now()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			st.Stats.RecordFailure(at)
			p.log.Warn("stock check failed", "product", t.ProductName, "sku", t.CurrentSKU, "error", err)
			continue
		}
		st.Stats.RecordSuccess(at)

		if obs == nil {
			p.log.Info("SKU not currently tracked by the vendor", "product", t.ProductName, "sku", t.CurrentSKU)
			continue
		}

		prev, known := st.Stock[t.CurrentSKU]
		if !IsTransition(prev, known, *obs) {
			p.log.Debug("no change", "sku", t.CurrentSKU, "in_stock", obs.IsActive)
			continue
		}

		st.Stock[t.CurrentSKU] = model.StockRecord{IsActive: obs.IsActive, ProductURL: obs.ProductURL}
		if p.recorder != nil {
			p.recorder.RecordTransition(ctx, t.CurrentSKU, obs.IsActive)
		}

		alert := notify.NewAlert(t.ProductName, *obs, at)
		alert.SKU = t.CurrentSKU
		p.log.Info("stock changed", "product", t.ProductName, "sku", t.CurrentSKU, "in_stock", obs.IsActive, "price", obs.Price, "alert_id", alert.ID)
		p.notifier.DispatchStockAlert(ctx, alert)

		if obs.IsActive && p.cfg.Cooldown > 0 {
			p.log.Info("in stock, cooling down", "cooldown", p.cfg.Cooldown)
			if err := p.sleep(ctx, p.cfg.Cooldown); err != nil {
				return err
			}
			p.spacer.Reset()
			skipWait = true
		}
	}
	return nil
}
