package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yourneighborhoodchef/skuwatch/internal/model"
)

var (
	ErrNoProducts          = errors.New("no enabled products configured")
	ErrInitialResolution   = errors.New("initial SKU resolution failed")
	ErrResolutionExhausted = errors.New("no configured product could be matched to the catalog")
)

type CatalogSource interface {
	FetchCatalog(ctx context.Context) (model.Catalog, error)
}

// Noticer delivers free-text diagnostic notices.
type Noticer interface {
	DispatchNotice(ctx context.Context, text string)
}

type EventKind string

const (
	EventRenamed    EventKind = "renamed"
	EventSKUChanged EventKind = "sku_changed"
	EventMissing    EventKind = "missing"
)

// ResolveEvent is one change noticed while reconciling the catalog against
// the configured products.
type ResolveEvent struct {
	Kind    EventKind
	Product string
	OldSKU  string
	NewSKU  string
	OldName string
	NewName string
}

func (e ResolveEvent) String() string {
	switch e.Kind {
	case EventRenamed:
		return fmt.Sprintf("%s: renamed %q -> %q (SKU %s)", e.Product, e.OldName, e.NewName, e.NewSKU)
	case EventSKUChanged:
		return fmt.Sprintf("%s: SKU %s -> %s", e.Product, e.OldSKU, e.NewSKU)
	default:
		return fmt.Sprintf("%s: not found in catalog", e.Product)
	}
}

// Resolver maps configured product names to the SKUs the vendor currently
// lists them under, refreshing from the catalog at most once per interval.
type Resolver struct {
	products []model.ProductSpec
	source   CatalogSource
	noticer  Noticer
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	cache       []model.ResolvedSku
	lastRefresh time.Time
	lastEvents  []ResolveEvent
}

// NewResolver keeps the enabled products in configured order.
func NewResolver(products []model.ProductSpec, source CatalogSource, noticer Noticer, interval time.Duration, log *slog.Logger) (*Resolver, error) {
	var enabled []model.ProductSpec
	for _, p := range products {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoProducts
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		products: enabled,
		source:   source,
		noticer:  noticer,
		interval: interval,
		log:      log.With("component", "resolver"),
		now:      time.Now,
	}, nil
}

func (r *Resolver) Products() []string {
	names := make([]string, 0, len(r.products))
	for _, p := range r.products {
		names = append(names, p.Name)
	}
	return names
}

// LastEvents returns the events of the most recent successful refresh.
func (r *Resolver) LastEvents() []ResolveEvent {
	return r.lastEvents
}

func (r *Resolver) expired(now time.Time) bool {
	return r.lastRefresh.IsZero() || now.Sub(r.lastRefresh) >= r.interval
}

// Refresh returns the resolved SKUs, hitting the catalog only when forced or
// when the cache has expired.
func (r *Resolver) Refresh(ctx context.Context, force bool) ([]model.ResolvedSku, error) {
	const op = "monitor.Refresh"

	now := r.now()
	if !force && r.cache != nil && !r.expired(now) {
		return r.cache, nil
	}

	catalog, err := r.source.FetchCatalog(ctx)
	if err != nil {
		if r.cache != nil {
			r.log.Warn("catalog refresh failed, keeping cached SKUs", "error", err, "cached", len(r.cache))
			return r.cache, nil
		}
		if pinned := r.pinnedFallback(); pinned != nil {
			r.log.Warn("catalog unavailable, monitoring pinned SKUs unvalidated", "error", err)
			r.cache = pinned
			return pinned, nil
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInitialResolution, err)
	}

	r.log.Debug("catalog fetched", "entries", catalog.Len(), "forced", force)
	resolved, events := r.reconcile(catalog)
	r.lastEvents = events

	if notice := noticeText(events, len(resolved)); notice != "" {
		r.log.Warn("catalog changes detected", "events", len(events))
		if r.noticer != nil {
			r.noticer.DispatchNotice(ctx, notice)
		}
	}

	if len(resolved) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrResolutionExhausted)
	}

	r.cache = resolved
	r.lastRefresh = now
	r.log.Info("SKUs resolved", "products", len(resolved), "missing", len(r.products)-len(resolved))
	return resolved, nil
}

func (r *Resolver) previous() map[string]model.ResolvedSku {
	prev := make(map[string]model.ResolvedSku, len(r.cache))
	for _, c := range r.cache {
		prev[c.ProductName] = c
	}
	return prev
}

// reconcile validates known SKUs first and only then falls back to name
// lookup, so a product keeps its SKU across renames.
func (r *Resolver) reconcile(catalog model.Catalog) ([]model.ResolvedSku, []ResolveEvent) {
	prev := r.previous()
	results := make([]*model.ResolvedSku, len(r.products))
	var events []ResolveEvent

	knownSKU := func(p model.ProductSpec) (sku, lastName string) {
		if c, ok := prev[p.Name]; ok {
			return c.CurrentSKU, c.LastCatalogName
		}
		// pinned SKUs have no catalog name to compare against yet
		return p.PinnedSKU, ""
	}

	for i, p := range r.products {
		sku, lastName := knownSKU(p)
		if sku == "" {
			continue
		}
		name, ok := catalog.NameOf(sku)
		if !ok {
			continue
		}
		if lastName != "" && lastName != name {
			events = append(events, ResolveEvent{Kind: EventRenamed, Product: p.Name, OldName: lastName, NewName: name, OldSKU: sku, NewSKU: sku})
		}
		results[i] = &model.ResolvedSku{ProductName: p.Name, CurrentSKU: sku, LastCatalogName: name, Validated: true}
	}

	for i, p := range r.products {
		if results[i] != nil {
			continue
		}
		sku, ok := catalog.SKUFor(p.Name)
		if !ok {
			events = append(events, ResolveEvent{Kind: EventMissing, Product: p.Name})
			continue
		}
		if old, _ := knownSKU(p); old != "" && old != sku {
			events = append(events, ResolveEvent{Kind: EventSKUChanged, Product: p.Name, OldSKU: old, NewSKU: sku})
		}
		name, _ := catalog.NameOf(sku)
		results[i] = &model.ResolvedSku{ProductName: p.Name, CurrentSKU: sku, LastCatalogName: name, Validated: true}
	}

	resolved := make([]model.ResolvedSku, 0, len(results))
	for _, res := range results {
		if res != nil {
			resolved = append(resolved, *res)
		}
	}
	return resolved, events
}

// pinnedFallback returns unvalidated entries for the pinned SKUs, or nil
// unless every enabled product is pinned.
func (r *Resolver) pinnedFallback() []model.ResolvedSku {
	out := make([]model.ResolvedSku, 0, len(r.products))
	for _, p := range r.products {
		if p.PinnedSKU == "" {
			return nil
		}
		out = append(out, model.ResolvedSku{ProductName: p.Name, CurrentSKU: p.PinnedSKU})
	}
	return out
}

func noticeText(events []ResolveEvent, valid int) string {
	if len(events) == 0 {
		return ""
	}

	var changes, missing []string
	for _, e := range events {
		if e.Kind == EventMissing {
			missing = append(missing, e.String())
		} else {
			changes = append(changes, e.String())
		}
	}

	var b strings.Builder
	if len(changes) > 0 {
		b.WriteString("SKU changes detected:\n- ")
		b.WriteString(strings.Join(changes, "\n- "))
	}
	if len(missing) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Products missing from the catalog:\n- ")
		b.WriteString(strings.Join(missing, "\n- "))
		if valid > 0 {
			fmt.Fprintf(&b, "\nMonitoring continues for %d product(s).", valid)
		} else {
			b.WriteString("\nNo product left to monitor, stopping.")
		}
	}
	return b.String()
}
