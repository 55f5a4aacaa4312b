package channel

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type Console struct {
	cfg config.ConsoleConfig
	out io.Writer
	now func() time.Time

	mu    sync.Mutex
	green *color.Color
	red   *color.Color
	info  *color.Color
}

func NewConsole(cfg config.ConsoleConfig, deps Deps) *Console {
	deps = deps.withDefaults()
	c := &Console{
		cfg:   cfg,
		out:   deps.Out,
		now:   deps.Now,
		green: color.New(color.FgGreen, color.Bold),
		red:   color.New(color.FgRed),
		info:  color.New(color.FgCyan),
	}
	if !cfg.Color {
		c.green.DisableColor()
		c.red.DisableColor()
		c.info.DisableColor()
	}
	return c
}

func (c *Console) Name() string { return "console" }

func (c *Console) Initialize(context.Context) (bool, error) {
	return c.cfg.Enabled, nil
}

func (c *Console) Shutdown(context.Context) error { return nil }

func (c *Console) stamp() string {
	return "[" + c.now().Format("2006-01-02 15:04:05") + "]"
}

func (c *Console) SendStockAlert(_ context.Context, a notify.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	paint := c.red
	if a.InStock {
		paint = c.green
	}
	if _, err := paint.Fprintf(c.out, "%s %s (%s)\n", c.stamp(), a.Title(), a.SKU); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "    Price: %s\n    Link: %s\n", a.Price, a.URL)
	return err
}

func (c *Console) SendStatusUpdate(_ context.Context, r notify.StatusReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.info.Fprintf(c.out, "%s Status update\n", c.stamp()); err != nil {
		return err
	}
	for _, line := range r.Lines() {
		if _, err := fmt.Fprintf(c.out, "    %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) SendStartupMessage(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.info.Fprintf(c.out, "%s %s\n", c.stamp(), text)
	return err
}
