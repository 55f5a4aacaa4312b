// Package notify defines the notification channel contract and the dispatcher
// that fans stock alerts, status updates and text notices out to every active
// channel.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
)

// Channel is one notification destination. Implementations must be safe for
// concurrent SendStockAlert calls.
type Channel interface {
	Name() string
	// Initialize prepares the channel. Returning false or an error removes the
	// channel from the active set for the rest of the run.
	Initialize(ctx context.Context) (bool, error)
	Shutdown(ctx context.Context) error
	SendStockAlert(ctx context.Context, alert Alert) error
	SendStatusUpdate(ctx context.Context, report StatusReport) error
	// SendStartupMessage delivers free text: the startup banner and diagnostic notices.
	SendStartupMessage(ctx context.Context, text string) error
}

type Alert struct {
	ID      uuid.UUID `json:"id"`
	Product string    `json:"product"`
	SKU     string    `json:"sku"`
	Price   string    `json:"price"`
	URL     string    `json:"url"`
	InStock bool      `json:"in_stock"`
	At      time.Time `json:"at"`
}

func NewAlert(product string, obs model.StockObservation, at time.Time) Alert {
	return Alert{
		ID:      uuid.New(),
		Product: product,
		SKU:     obs.SKU,
		Price:   obs.Price,
		URL:     obs.ProductURL,
		InStock: obs.IsActive,
		At:      at,
	}
}

type StatusReport struct {
	Runtime            time.Duration `json:"runtime"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	LastCheckTime      time.Time     `json:"last_check_time"`
	LastCheckSuccess   bool          `json:"last_check_success"`
	Monitored          []string      `json:"monitored"`
	At                 time.Time     `json:"at"`
}

func NewStatusReport(stats model.RunStats, monitored []string, now time.Time) StatusReport {
	return StatusReport{
		Runtime:            now.Sub(stats.StartTime),
		SuccessfulRequests: stats.SuccessfulRequests,
		FailedRequests:     stats.FailedRequests,
		LastCheckTime:      stats.LastCheckTime,
		LastCheckSuccess:   stats.LastCheckSuccess,
		Monitored:          append([]string(nil), monitored...),
		At:                 now,
	}
}

const (
	EventStockAlert   = "stock_alert"
	EventStatusUpdate = "status_update"
	EventStartup      = "startup"
	EventNotice       = "notice"
	EventInitialize   = "initialize"
	EventShutdown     = "shutdown"
)

// Envelope is the JSON document published by the machine-facing channels.
type Envelope struct {
	ID     uuid.UUID     `json:"id"`
	Type   string        `json:"type"`
	At     time.Time     `json:"at"`
	Alert  *Alert        `json:"alert,omitempty"`
	Status *StatusReport `json:"status,omitempty"`
	Text   string        `json:"text,omitempty"`
}

func AlertEnvelope(a Alert) Envelope {
	return Envelope{ID: a.ID, Type: EventStockAlert, At: a.At, Alert: &a}
}

func StatusEnvelope(r StatusReport) Envelope {
	return Envelope{ID: uuid.New(), Type: EventStatusUpdate, At: r.At, Status: &r}
}

func TextEnvelope(text string, at time.Time) Envelope {
	return Envelope{ID: uuid.New(), Type: EventStartup, At: at, Text: text}
}
