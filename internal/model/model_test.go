package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCatalogIndexes(t *testing.T) {
	t.Parallel()

	c := NewCatalog([]CatalogEntry{
		{SKU: "PRO5090FE", DisplayName: "NVIDIA GeForce RTX 5090"},
		{SKU: "", DisplayName: "No SKU"},
		{SKU: "PRO5090FE", DisplayName: "Duplicate"},
		{SKU: "PRO5090B", DisplayName: "NVIDIA  GeForce rtx 5090 "},
	})

	assert.Equal(t, 2, c.Len())

	name, ok := c.NameOf("PRO5090FE")
	assert.True(t, ok)
	assert.Equal(t, "NVIDIA GeForce RTX 5090", name)

	sku, ok := c.SKUFor("nvidia geforce RTX 5090")
	assert.True(t, ok)
	assert.Equal(t, "PRO5090FE", sku, "first listed SKU wins a shared name")

	_, ok = c.SKUFor("NVIDIA GeForce RTX 5090 Ti")
	assert.False(t, ok)
}

func TestNameKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "nvidia geforce rtx 5080", NameKey("  NVIDIA\tGeForce   RTX 5080 "))
	assert.Equal(t, "", NameKey("   "))
}

func TestRunStats(t *testing.T) {
	t.Parallel()

	var s RunStats
	assert.False(t, s.HasChecked())

	t0 := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	s.RecordSuccess(t0)
	s.RecordFailure(t0.Add(time.Second))

	assert.True(t, s.HasChecked())
	assert.Equal(t, int64(1), s.SuccessfulRequests)
	assert.Equal(t, int64(1), s.FailedRequests)
	assert.False(t, s.LastCheckSuccess)
	assert.Equal(t, t0.Add(time.Second), s.LastCheckTime)
}
