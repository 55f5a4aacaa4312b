package channel

import (
	"context"
	"fmt"
	"runtime"

	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type command struct {
	name string
	args []string
}

// Sound plays a short sound when a product comes into stock.
type Sound struct {
	cfg    config.SoundConfig
	runner Runner
	goos   string
}

func NewSound(cfg config.SoundConfig, deps Deps) *Sound {
	deps = deps.withDefaults()
	return &Sound{cfg: cfg, runner: deps.Runner, goos: runtime.GOOS}
}

func (s *Sound) Name() string { return "sound" }

func (s *Sound) command() (command, error) {
	switch s.goos {
	case "linux":
		file := s.cfg.File
		if file == "" {
			file = "/usr/share/sounds/freedesktop/stereo/complete.oga"
		}
		return command{"paplay", []string{file}}, nil
	case "darwin":
		file := s.cfg.File
		if file == "" {
			file = "/System/Library/Sounds/Glass.aiff"
		}
		return command{"afplay", []string{file}}, nil
	case "windows":
		script := "[System.Media.SystemSounds]::Exclamation.Play()"
		if s.cfg.File != "" {
			script = fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", s.cfg.File)
		}
		return command{"powershell", []string{"-NoProfile", "-Command", script}}, nil
	}
	return command{}, fmt.Errorf("sound: unsupported platform %s", s.goos)
}

func (s *Sound) Initialize(context.Context) (bool, error) {
	if !s.cfg.Enabled {
		return false, nil
	}
	cmd, err := s.command()
	if err != nil {
		return false, err
	}
	if _, err := s.runner.LookPath(cmd.name); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sound) Shutdown(context.Context) error { return nil }

func (s *Sound) SendStockAlert(ctx context.Context, a notify.Alert) error {
	if !a.InStock {
		return nil
	}
	cmd, err := s.command()
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, cmd.name, cmd.args...)
}

func (s *Sound) SendStatusUpdate(context.Context, notify.StatusReport) error { return nil }

func (s *Sound) SendStartupMessage(context.Context, string) error { return nil }

// Browser opens the product page when a product comes into stock.
type Browser struct {
	cfg    config.BrowserConfig
	runner Runner
	goos   string
}

func NewBrowser(cfg config.BrowserConfig, deps Deps) *Browser {
	deps = deps.withDefaults()
	return &Browser{cfg: cfg, runner: deps.Runner, goos: runtime.GOOS}
}

func (b *Browser) Name() string { return "browser" }

func (b *Browser) command(url string) (command, error) {
	switch b.goos {
	case "linux":
		return command{"xdg-open", []string{url}}, nil
	case "darwin":
		return command{"open", []string{url}}, nil
	case "windows":
		return command{"rundll32", []string{"url.dll,FileProtocolHandler", url}}, nil
	}
	return command{}, fmt.Errorf("browser: unsupported platform %s", b.goos)
}

func (b *Browser) Initialize(context.Context) (bool, error) {
	if !b.cfg.Enabled {
		return false, nil
	}
	cmd, err := b.command("")
	if err != nil {
		return false, err
	}
	if _, err := b.runner.LookPath(cmd.name); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Browser) Shutdown(context.Context) error { return nil }

func (b *Browser) SendStockAlert(ctx context.Context, a notify.Alert) error {
	if !a.InStock || a.URL == "" {
		return nil
	}
	cmd, err := b.command(a.URL)
	if err != nil {
		return err
	}
	return b.runner.Run(ctx, cmd.name, cmd.args...)
}

func (b *Browser) SendStatusUpdate(context.Context, notify.StatusReport) error { return nil }

func (b *Browser) SendStartupMessage(context.Context, string) error { return nil }
