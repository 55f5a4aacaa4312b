// Package model defines the data structures shared by the vendor client,
// the SKU resolver and the stock poller.
package model

import (
	"strings"
	"time"
)

// ProductSpec is one configured product. It never changes during a run.
type ProductSpec struct {
	Name      string
	Enabled   bool
	PinnedSKU string // optional; used as the known SKU before the first catalog match
}

// CatalogEntry is a single product as listed by the vendor catalog lookup API.
type CatalogEntry struct {
	SKU         string `json:"sku"`
	DisplayName string `json:"name"`
}

// Catalog is the full set of entries returned by one catalog refresh.
type Catalog struct {
	entries []CatalogEntry
	bySKU   map[string]string
	byName  map[string]string
}

// NewCatalog indexes entries by SKU and by normalised display name. When two
// SKUs share a display name the first one listed wins the name index.
func NewCatalog(entries []CatalogEntry) Catalog {
	c := Catalog{
		entries: make([]CatalogEntry, 0, len(entries)),
		bySKU:   make(map[string]string, len(entries)),
		byName:  make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if e.SKU == "" {
			continue
		}
		if _, dup := c.bySKU[e.SKU]; dup {
			continue
		}
		c.entries = append(c.entries, e)
		c.bySKU[e.SKU] = e.DisplayName
		key := NameKey(e.DisplayName)
		if _, taken := c.byName[key]; !taken {
			c.byName[key] = e.SKU
		}
	}
	return c
}

// Entries returns the catalog in vendor order.
func (c Catalog) Entries() []CatalogEntry {
	return c.entries
}

// Len returns the number of distinct SKUs.
func (c Catalog) Len() int {
	return len(c.entries)
}

// NameOf returns the display name currently listed for sku.
func (c Catalog) NameOf(sku string) (string, bool) {
	name, ok := c.bySKU[sku]
	return name, ok
}

// SKUFor looks up the SKU listed under an exact display name.
func (c Catalog) SKUFor(name string) (string, bool) {
	sku, ok := c.byName[NameKey(name)]
	return sku, ok
}

// NameKey normalises a display name for exact matching: surrounding and
// repeated whitespace is collapsed and case is folded.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ResolvedSku is the resolver's working state for one monitored product.
type ResolvedSku struct {
	ProductName     string
	CurrentSKU      string
	LastCatalogName string
	// Validated is false only for pinned SKUs served while the catalog is unreachable.
	Validated bool
}

// StockObservation is the outcome of one successful per-SKU inventory query.
type StockObservation struct {
	SKU        string
	IsActive   bool
	Price      string
	ProductURL string
}

// StockRecord is the last known stock state of a SKU.
type StockRecord struct {
	IsActive   bool
	ProductURL string
}

// RunStats holds the process-wide request counters.
type RunStats struct {
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	LastCheckTime      time.Time `json:"last_check_time"`
	LastCheckSuccess   bool      `json:"last_check_success"`
	StartTime          time.Time `json:"start_time"`
}

// RecordSuccess counts a successful vendor request made at t.
func (s *RunStats) RecordSuccess(t time.Time) {
	s.SuccessfulRequests++
	s.LastCheckTime = t
	s.LastCheckSuccess = true
}

// RecordFailure counts a failed vendor request made at t.
func (s *RunStats) RecordFailure(t time.Time) {
	s.FailedRequests++
	s.LastCheckTime = t
	s.LastCheckSuccess = false
}

// HasChecked reports whether any inventory request has completed yet.
func (s RunStats) HasChecked() bool {
	return !s.LastCheckTime.IsZero()
}
