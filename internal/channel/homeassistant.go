package channel

import (
	"context"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/client"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type haAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	URI    string `json:"uri,omitempty"`
}

type haData struct {
	URL      string         `json:"url,omitempty"`
	ClickURL string         `json:"clickAction,omitempty"`
	Tag      string         `json:"tag,omitempty"`
	Color    string         `json:"color,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Sticky   bool           `json:"sticky,omitempty"`
	Actions  []haAction     `json:"actions,omitempty"`
	Push     map[string]any `json:"push,omitempty"`
}

type haMessage struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Data    *haData `json:"data,omitempty"`
}

// HomeAssistant calls a notify service through the Home Assistant REST API.
type HomeAssistant struct {
	cfg  config.HomeAssistantConfig
	http client.Doer
}

func NewHomeAssistant(cfg config.HomeAssistantConfig, deps Deps) *HomeAssistant {
	return &HomeAssistant{cfg: cfg, http: deps.HTTP}
}

func (h *HomeAssistant) Name() string { return "home_assistant" }

func (h *HomeAssistant) base() string {
	return strings.TrimRight(h.cfg.URL, "/")
}

func (h *HomeAssistant) auth() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.cfg.Token)
	return header
}

func (h *HomeAssistant) Initialize(ctx context.Context) (bool, error) {
	if !h.cfg.Enabled || h.cfg.URL == "" || h.cfg.Token == "" {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base()+"/api/", nil)
	if err != nil {
		return false, err
	}
	req.Header = h.auth()
	if err := do(h.http, req, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (h *HomeAssistant) Shutdown(context.Context) error { return nil }

func (h *HomeAssistant) call(ctx context.Context, msg haMessage) error {
	return postJSON(ctx, h.http, h.base()+"/api/services/notify/"+h.cfg.Service, msg, h.auth())
}

func (h *HomeAssistant) SendStockAlert(ctx context.Context, a notify.Alert) error {
	data := &haData{
		URL:      a.URL,
		ClickURL: a.URL,
		Tag:      "stock-" + a.SKU,
		Color:    "#ff0000",
		Priority: "normal",
	}
	if a.InStock {
		data.Color = "#00ff00"
		data.Priority = "high"
		data.Sticky = true
		if h.cfg.Critical {
			data.Push = map[string]any{
				"sound": map[string]any{"name": "default", "critical": 1, "volume": 1.0},
			}
		}
	}
	if a.URL != "" {
		data.Actions = []haAction{{Action: "URI", Title: "View Product", URI: a.URL}}
	}
	return h.call(ctx, haMessage{Title: a.Title(), Message: a.Text(), Data: data})
}

func (h *HomeAssistant) SendStatusUpdate(ctx context.Context, r notify.StatusReport) error {
	return h.call(ctx, haMessage{
		Title:   "Status update",
		Message: strings.Join(r.Lines(), "\n"),
		Data:    &haData{Tag: "stock-status"},
	})
}

func (h *HomeAssistant) SendStartupMessage(ctx context.Context, text string) error {
	return h.call(ctx, haMessage{Title: "Stock Checker", Message: text})
}
