// Package channel holds the concrete notification channels and the static
// registry that builds them from configuration.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/client"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// Runner starts external programs. Tests swap it for a recorder.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	LookPath(name string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Deps are the shared collaborators handed to every channel.
type Deps struct {
	HTTP   client.Doer
	Log    *slog.Logger
	Out    io.Writer
	Runner Runner
	// Status returns the current run status for on-demand replies.
	Status func() notify.StatusReport
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Runner == nil {
		d.Runner = execRunner{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Build returns every channel in registration order. Disabled channels are
// included and opt out in Initialize.
func Build(cfg config.NotificationsConfig, deps Deps) []notify.Channel {
	deps = deps.withDefaults()
	return []notify.Channel{
		NewConsole(cfg.Console, deps),
		NewDiscord(cfg.Discord, deps),
		NewTelegram(cfg.Telegram, deps),
		NewNtfy(cfg.Ntfy, deps),
		NewHomeAssistant(cfg.HomeAssistant, deps),
		NewSound(cfg.Sound, deps),
		NewBrowser(cfg.Browser, deps),
		NewEmail(cfg.Email, deps),
		NewRedis(cfg.Redis, deps),
		NewRabbitMQ(cfg.RabbitMQ, deps),
		NewJournal(cfg.Journal, deps),
	}
}

// postJSON sends body as JSON and treats any non-2xx answer as an error.
func postJSON(ctx context.Context, doer client.Doer, url string, body any, header http.Header) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	return do(doer, req, nil)
}

// do runs req and decodes a JSON answer into out when out is non-nil.
func do(doer client.Doer, req *http.Request, out any) error {
	resp, err := doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(body), 200))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
