package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 hours 0 minutes", FormatDuration(0))
	assert.Equal(t, "0 hours 0 minutes", FormatDuration(-time.Minute))
	assert.Equal(t, "2 hours 5 minutes", FormatDuration(2*time.Hour+5*time.Minute+30*time.Second))
	assert.Equal(t, "26 hours 0 minutes", FormatDuration(26*time.Hour))
}

func TestStatusReportLines(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := StatusReport{
		Runtime:            90 * time.Minute,
		SuccessfulRequests: 40,
		FailedRequests:     2,
		LastCheckTime:      now.Add(-3 * time.Minute),
		LastCheckSuccess:   true,
		Monitored:          []string{"RTX 5090", "RTX 5080"},
		At:                 now,
	}

	assert.Equal(t, []string{
		"Runtime: 1 hours 30 minutes",
		"Requests: 40 successful, 2 failed",
		"Last check: 11:57:00 (3m ago, success)",
		"Monitoring: RTX 5090, RTX 5080",
	}, r.Lines())

	r.LastCheckTime = time.Time{}
	assert.Equal(t, "never", r.LastCheck(now))
}

func TestAlertText(t *testing.T) {
	t.Parallel()

	a := Alert{Product: "RTX 5080", SKU: "PRO5080", Price: "999.00", URL: "https://shop.test/p", InStock: true}
	assert.Equal(t, "IN STOCK: RTX 5080\nSKU: PRO5080\nPrice: 999.00\nLink: https://shop.test/p", a.Text())

	a.InStock = false
	a.Price = ""
	assert.Equal(t, "Out of stock: RTX 5080\nSKU: PRO5080\nLink: https://shop.test/p", a.Text())
}

func TestStartupInfoText(t *testing.T) {
	t.Parallel()

	text := StartupInfo{
		Products:       []string{"RTX 5090"},
		Country:        "United Kingdom",
		CheckInterval:  10 * time.Second,
		Cooldown:       2 * time.Minute,
		SKURefresh:     time.Hour,
		BrowserEnabled: true,
		Channels:       []string{"console", "discord"},
	}.Text()

	assert.Contains(t, text, "Monitoring: RTX 5090")
	assert.Contains(t, text, "Country: United Kingdom")
	assert.Contains(t, text, "Check interval: 10s")
	assert.Contains(t, text, "SKU refresh interval: 1h0m0s")
	assert.Contains(t, text, "Browser auto-open: enabled")
	assert.Contains(t, text, "Channels: console, discord")
}
