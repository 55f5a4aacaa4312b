package channel

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/client"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

var ntfyPriorities = map[string]int{
	"min":     1,
	"low":     2,
	"default": 3,
	"high":    4,
	"max":     5,
	"urgent":  5,
}

type ntfyAction struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	URL    string `json:"url"`
}

type ntfyMessage struct {
	Topic    string       `json:"topic"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Priority int          `json:"priority,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Click    string       `json:"click,omitempty"`
	Actions  []ntfyAction `json:"actions,omitempty"`
}

// Ntfy publishes JSON messages to an ntfy server.
type Ntfy struct {
	cfg  config.NtfyConfig
	http client.Doer
}

func NewNtfy(cfg config.NtfyConfig, deps Deps) *Ntfy {
	return &Ntfy{cfg: cfg, http: deps.HTTP}
}

func (n *Ntfy) Name() string { return "ntfy" }

func (n *Ntfy) Initialize(context.Context) (bool, error) {
	return n.cfg.Enabled && n.cfg.ServerURL != "" && n.cfg.Topic != "", nil
}

func (n *Ntfy) Shutdown(context.Context) error { return nil }

func ntfyPriority(p string) int {
	if v, ok := ntfyPriorities[strings.ToLower(p)]; ok {
		return v
	}
	if v, err := strconv.Atoi(p); err == nil && v >= 1 && v <= 5 {
		return v
	}
	return 3
}

func (n *Ntfy) publish(ctx context.Context, msg ntfyMessage) error {
	msg.Topic = n.cfg.Topic
	if msg.Priority == 0 {
		msg.Priority = ntfyPriority(n.cfg.Priority)
	}

	header := http.Header{}
	switch {
	case n.cfg.AccessToken != "":
		header.Set("Authorization", "Bearer "+n.cfg.AccessToken)
	case n.cfg.Username != "":
		creds := base64.StdEncoding.EncodeToString([]byte(n.cfg.Username + ":" + n.cfg.Password))
		header.Set("Authorization", "Basic "+creds)
	}
	return postJSON(ctx, n.http, strings.TrimRight(n.cfg.ServerURL, "/")+"/", msg, header)
}

func (n *Ntfy) SendStockAlert(ctx context.Context, a notify.Alert) error {
	msg := ntfyMessage{
		Title:   a.Title(),
		Message: a.Text(),
		Tags:    append([]string(nil), n.cfg.Tags...),
	}
	if a.InStock {
		msg.Priority = 5
		msg.Tags = append(msg.Tags, "rotating_light")
	} else {
		msg.Tags = append(msg.Tags, "x")
	}
	if a.URL != "" {
		msg.Click = a.URL
		msg.Actions = []ntfyAction{{Action: "view", Label: "View Product", URL: a.URL}}
	}
	return n.publish(ctx, msg)
}

func (n *Ntfy) SendStatusUpdate(ctx context.Context, r notify.StatusReport) error {
	return n.publish(ctx, ntfyMessage{
		Title:    "Status update",
		Message:  strings.Join(r.Lines(), "\n"),
		Priority: 2,
		Tags:     append(append([]string(nil), n.cfg.Tags...), "information_source"),
	})
}

func (n *Ntfy) SendStartupMessage(ctx context.Context, text string) error {
	return n.publish(ctx, ntfyMessage{
		Title:   "Stock Checker",
		Message: text,
		Tags:    append([]string(nil), n.cfg.Tags...),
	})
}
