package channel

import (
	"context"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/client"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

const (
	discordGreen = 0x00ff00
	discordRed   = 0xff0000
	discordBlue  = 0x0099ff
)

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

// Discord posts embeds to a webhook.
type Discord struct {
	cfg  config.DiscordConfig
	http client.Doer
}

func NewDiscord(cfg config.DiscordConfig, deps Deps) *Discord {
	return &Discord{cfg: cfg, http: deps.HTTP}
}

func (d *Discord) Name() string { return "discord" }

// Initialize checks the webhook exists; Discord answers GET with its details.
func (d *Discord) Initialize(ctx context.Context) (bool, error) {
	if !d.cfg.Enabled || d.cfg.WebhookURL == "" {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.WebhookURL, nil)
	if err != nil {
		return false, err
	}
	if err := do(d.http, req, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Discord) Shutdown(context.Context) error { return nil }

func (d *Discord) send(ctx context.Context, content string, embed discordEmbed) error {
	return postJSON(ctx, d.http, d.cfg.WebhookURL, discordPayload{
		Username:  d.cfg.Username,
		AvatarURL: d.cfg.AvatarURL,
		Content:   content,
		Embeds:    []discordEmbed{embed},
	}, nil)
}

func (d *Discord) SendStockAlert(ctx context.Context, a notify.Alert) error {
	status, colour := "OUT OF STOCK", discordRed
	content := ""
	if a.InStock {
		status, colour = "IN STOCK", discordGreen
		content = d.cfg.Mention
	}

	embed := discordEmbed{
		Title:       "Stock Alert",
		URL:         a.URL,
		Color:       colour,
		Description: status + ": " + a.Product + "\nSKU: " + a.SKU + "\nPrice: " + a.Price,
		Timestamp:   a.At.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if a.URL != "" {
		embed.Fields = []discordEmbedField{{Name: "Quick Access", Value: "[View Product](" + a.URL + ")"}}
	}
	return d.send(ctx, content, embed)
}

func (d *Discord) SendStatusUpdate(ctx context.Context, r notify.StatusReport) error {
	return d.send(ctx, "", discordEmbed{
		Title:       "Status Update",
		Color:       discordBlue,
		Description: strings.Join(r.Lines(), "\n"),
	})
}

func (d *Discord) SendStartupMessage(ctx context.Context, text string) error {
	return d.send(ctx, "", discordEmbed{
		Title:       "Stock Checker",
		Color:       discordBlue,
		Description: text,
	})
}
