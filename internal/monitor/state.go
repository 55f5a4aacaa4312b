package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

// State is the mutable run state. It is owned by the scheduler goroutine and
// must not be shared; other goroutines read Snapshots instead.
type State struct {
	Stock            map[string]model.StockRecord
	Stats            model.RunStats
	LastStatusUpdate time.Time
}

func NewState(now time.Time) *State {
	return &State{
		Stock:            make(map[string]model.StockRecord),
		Stats:            model.RunStats{StartTime: now},
		LastStatusUpdate: now,
	}
}

type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseDraining Phase = "draining"
	PhaseStopped  Phase = "stopped"
)

type ProductSnapshot struct {
	Product   string `json:"product"`
	SKU       string `json:"sku"`
	Validated bool   `json:"validated"`
	Known     bool   `json:"known"`
	InStock   bool   `json:"in_stock"`
	URL       string `json:"url,omitempty"`
}

// Snapshot is a read-only copy of the run state.
type Snapshot struct {
	Phase     Phase             `json:"phase"`
	Stats     model.RunStats    `json:"stats"`
	Products  []ProductSnapshot `json:"products"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (s Snapshot) Monitored() []string {
	names := make([]string, 0, len(s.Products))
	for _, p := range s.Products {
		names = append(names, p.Product)
	}
	return names
}

// Report converts the snapshot into a status report as of now.
func (s Snapshot) Report(now time.Time) notify.StatusReport {
	return notify.NewStatusReport(s.Stats, s.Monitored(), now)
}

func newSnapshot(phase Phase, st *State, targets []model.ResolvedSku, now time.Time) Snapshot {
	snap := Snapshot{Phase: phase, UpdatedAt: now}
	if st != nil {
		snap.Stats = st.Stats
	}
	snap.Products = make([]ProductSnapshot, 0, len(targets))
	for _, t := range targets {
		p := ProductSnapshot{Product: t.ProductName, SKU: t.CurrentSKU, Validated: t.Validated}
		if st != nil {
			if rec, ok := st.Stock[t.CurrentSKU]; ok {
				p.Known = true
				p.InStock = rec.IsActive
				p.URL = rec.ProductURL
			}
		}
		snap.Products = append(snap.Products, p)
	}
	return snap
}

// SnapshotStore hands the latest Snapshot from the scheduler goroutine to
// readers such as the status server.
type SnapshotStore struct {
	p atomic.Pointer[Snapshot]
}

func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	s.p.Store(&Snapshot{Phase: PhaseStarting})
	return s
}

func (s *SnapshotStore) Store(snap Snapshot) {
	s.p.Store(&snap)
}

func (s *SnapshotStore) Load() Snapshot {
	return *s.p.Load()
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
