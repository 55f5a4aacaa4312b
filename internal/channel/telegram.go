package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/client"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

const (
	telegramPollTimeout = 10
	telegramRetryDelay  = 5 * time.Second
)

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Telegram sends bot messages and, when enabled, answers /status commands
// from the configured chat.
type Telegram struct {
	cfg    config.TelegramConfig
	http   client.Doer
	log    *slog.Logger
	status func() notify.StatusReport

	worker *notify.Worker
	offset int64
}

func NewTelegram(cfg config.TelegramConfig, deps Deps) *Telegram {
	deps = deps.withDefaults()
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	return &Telegram{
		cfg:    cfg,
		http:   deps.HTTP,
		log:    deps.Log.With("channel", "telegram"),
		status: deps.Status,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) method(name string) string {
	return strings.TrimRight(t.cfg.APIURL, "/") + "/bot" + t.cfg.BotToken + "/" + name
}

func (t *Telegram) Initialize(ctx context.Context) (bool, error) {
	if !t.cfg.Enabled || t.cfg.BotToken == "" || t.cfg.ChatID == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.method("getMe"), nil)
	if err != nil {
		return false, err
	}
	var me struct {
		OK bool `json:"ok"`
	}
	if err := do(t.http, req, &me); err != nil {
		return false, fmt.Errorf("telegram getMe: %w", err)
	}
	if !me.OK {
		return false, fmt.Errorf("telegram getMe: %w", ErrUnexpectedStatus)
	}

	if t.cfg.PollUpdates && t.status != nil {
		t.worker = notify.NewWorker("telegram", 8, time.Second, t.log)
		t.worker.Go(t.pollUpdates)
	}
	return true, nil
}

func (t *Telegram) Shutdown(ctx context.Context) error {
	if t.worker == nil {
		return nil
	}
	return t.worker.Close(ctx)
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	return postJSON(ctx, t.http, t.method("sendMessage"), map[string]any{
		"chat_id":                  t.cfg.ChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}, nil)
}

func (t *Telegram) SendStockAlert(ctx context.Context, a notify.Alert) error {
	return t.sendMessage(ctx, a.Text())
}

func (t *Telegram) SendStatusUpdate(ctx context.Context, r notify.StatusReport) error {
	return t.sendMessage(ctx, r.Text())
}

func (t *Telegram) SendStartupMessage(ctx context.Context, text string) error {
	return t.sendMessage(ctx, text)
}

func (t *Telegram) pollUpdates(ctx context.Context) {
	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(telegramRetryDelay):
			}
			continue
		}
		for _, u := range updates {
			t.handleUpdate(ctx, u)
		}
	}
}

func (t *Telegram) getUpdates(ctx context.Context) ([]telegramUpdate, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(telegramPollTimeout))
	if t.offset > 0 {
		q.Set("offset", strconv.FormatInt(t.offset, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.method("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := do(t.http, req, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (t *Telegram) handleUpdate(ctx context.Context, u telegramUpdate) {
	if u.UpdateID >= t.offset {
		t.offset = u.UpdateID + 1
	}
	if u.Message == nil || strconv.FormatInt(u.Message.Chat.ID, 10) != t.cfg.ChatID {
		return
	}
	cmd := strings.Fields(u.Message.Text)
	if len(cmd) == 0 || strings.SplitN(cmd[0], "@", 2)[0] != "/status" {
		return
	}

	report := t.status()
	err := t.worker.Enqueue(ctx, func(ctx context.Context) error {
		return t.sendMessage(ctx, report.Text())
	})
	if err != nil {
		t.log.Warn("status reply dropped", "error", err)
	}
}
