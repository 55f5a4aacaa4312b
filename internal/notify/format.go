package notify

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders d as "H hours M minutes".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%d hours %d minutes", h, m)
}

func (a Alert) Title() string {
	if a.InStock {
		return "IN STOCK: " + a.Product
	}
	return "Out of stock: " + a.Product
}

func (a Alert) Text() string {
	var b strings.Builder
	b.WriteString(a.Title())
	fmt.Fprintf(&b, "\nSKU: %s", a.SKU)
	if a.Price != "" {
		fmt.Fprintf(&b, "\nPrice: %s", a.Price)
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "\nLink: %s", a.URL)
	}
	return b.String()
}

// LastCheck describes the last inventory request relative to now.
func (r StatusReport) LastCheck(now time.Time) string {
	if r.LastCheckTime.IsZero() {
		return "never"
	}
	ago := int(now.Sub(r.LastCheckTime) / time.Minute)
	if ago < 0 {
		ago = 0
	}
	result := "success"
	if !r.LastCheckSuccess {
		result = "failed"
	}
	return fmt.Sprintf("%s (%dm ago, %s)", r.LastCheckTime.Format("15:04:05"), ago, result)
}

// Lines is the channel-neutral body of a status update.
func (r StatusReport) Lines() []string {
	monitored := "none"
	if len(r.Monitored) > 0 {
		monitored = strings.Join(r.Monitored, ", ")
	}
	return []string{
		"Runtime: " + FormatDuration(r.Runtime),
		fmt.Sprintf("Requests: %d successful, %d failed", r.SuccessfulRequests, r.FailedRequests),
		"Last check: " + r.LastCheck(r.At),
		"Monitoring: " + monitored,
	}
}

func (r StatusReport) Text() string {
	return "Status update\n" + strings.Join(r.Lines(), "\n")
}

type StartupInfo struct {
	Products       []string
	Country        string
	CheckInterval  time.Duration
	Cooldown       time.Duration
	SKURefresh     time.Duration
	BrowserEnabled bool
	Channels       []string
}

func (s StartupInfo) Text() string {
	var b strings.Builder
	b.WriteString("Stock monitor started\n")
	fmt.Fprintf(&b, "Monitoring: %s\n", strings.Join(s.Products, ", "))
	if s.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", s.Country)
	}
	fmt.Fprintf(&b, "Check interval: %s\n", s.CheckInterval)
	fmt.Fprintf(&b, "Cooldown after in-stock: %s\n", s.Cooldown)
	fmt.Fprintf(&b, "SKU refresh interval: %s\n", s.SKURefresh)
	browser := "disabled"
	if s.BrowserEnabled {
		browser = "enabled"
	}
	fmt.Fprintf(&b, "Browser auto-open: %s", browser)
	if len(s.Channels) > 0 {
		fmt.Fprintf(&b, "\nChannels: %s", strings.Join(s.Channels, ", "))
	}
	return b.String()
}
