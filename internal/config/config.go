package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
)

const (
	EnvPrefix = "SKUWATCH_"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Env           string              `koanf:"env" validate:"oneof=local dev prod"`
	Log           LogConfig           `koanf:"log"`
	Locale        LocaleConfig        `koanf:"locale"`
	Products      []ProductConfig     `koanf:"products" validate:"dive"`
	Vendor        VendorConfig        `koanf:"vendor"`
	Poll          PollConfig          `koanf:"poll"`
	StatusUpdates StatusUpdatesConfig `koanf:"status_updates"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Metrics       MetricsConfig       `koanf:"metrics"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type LocaleConfig struct {
	Locale   string `koanf:"locale" validate:"required"`
	Country  string `koanf:"country"`
	Currency string `koanf:"currency"`
}

type ProductConfig struct {
	Name    string `koanf:"name" validate:"required"`
	Enabled bool   `koanf:"enabled"`
	SKU     string `koanf:"sku"`
}

type VendorConfig struct {
	InventoryURL   string        `koanf:"inventory_url" validate:"required,url"`
	CatalogURL     string        `koanf:"catalog_url" validate:"required,url"`
	StoreURL       string        `koanf:"store_url" validate:"required,url"`
	Manufacturer   string        `koanf:"manufacturer"`
	PageLimit      int           `koanf:"page_limit" validate:"min=1,max=500"`
	MaxPages       int           `koanf:"max_pages" validate:"min=1,max=100"`
	Timeout        time.Duration `koanf:"timeout" validate:"min=1s"`
	Proxies        []string      `koanf:"proxies" validate:"dive,url"`
	RequestSpacing time.Duration `koanf:"request_spacing" validate:"min=0"`
}

type PollConfig struct {
	CheckInterval      time.Duration `koanf:"check_interval" validate:"min=1s"`
	Cooldown           time.Duration `koanf:"cooldown" validate:"min=0"`
	SKURefreshInterval time.Duration `koanf:"sku_refresh_interval" validate:"min=1m"`
	FallbackSleep      time.Duration `koanf:"fallback_sleep" validate:"min=1s"`
}

type StatusUpdatesConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule" validate:"required_if=Enabled true"`
}

type NotificationsConfig struct {
	DispatchTimeout time.Duration       `koanf:"dispatch_timeout" validate:"min=1s"`
	DrainTimeout    time.Duration       `koanf:"drain_timeout" validate:"min=0"`
	Console         ConsoleConfig       `koanf:"console"`
	Discord         DiscordConfig       `koanf:"discord"`
	Telegram        TelegramConfig      `koanf:"telegram"`
	Ntfy            NtfyConfig          `koanf:"ntfy"`
	HomeAssistant   HomeAssistantConfig `koanf:"home_assistant"`
	Sound           SoundConfig         `koanf:"sound"`
	Browser         BrowserConfig       `koanf:"browser"`
	Email           EmailConfig         `koanf:"email"`
	Redis           RedisConfig         `koanf:"redis"`
	RabbitMQ        RabbitMQConfig      `koanf:"rabbitmq"`
	Journal         JournalConfig       `koanf:"journal"`
}

type ConsoleConfig struct {
	Enabled bool `koanf:"enabled"`
	Color   bool `koanf:"color"`
}

type DiscordConfig struct {
	Enabled    bool   `koanf:"enabled"`
	WebhookURL string `koanf:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
	Username   string `koanf:"username"`
	Mention    string `koanf:"mention"`
	AvatarURL  string `koanf:"avatar_url" validate:"omitempty,url"`
}

type TelegramConfig struct {
	Enabled     bool   `koanf:"enabled"`
	APIURL      string `koanf:"api_url" validate:"omitempty,url"`
	BotToken    string `koanf:"bot_token" validate:"required_if=Enabled true"`
	ChatID      string `koanf:"chat_id" validate:"required_if=Enabled true"`
	PollUpdates bool   `koanf:"poll_updates"`
}

type NtfyConfig struct {
	Enabled     bool     `koanf:"enabled"`
	ServerURL   string   `koanf:"server_url" validate:"required_if=Enabled true,omitempty,url"`
	Topic       string   `koanf:"topic" validate:"required_if=Enabled true"`
	Username    string   `koanf:"username"`
	Password    string   `koanf:"password"`
	AccessToken string   `koanf:"access_token"`
	Priority    string   `koanf:"priority" validate:"omitempty,oneof=min low default high max urgent 1 2 3 4 5"`
	Tags        []string `koanf:"tags"`
}

type HomeAssistantConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token    string `koanf:"token" validate:"required_if=Enabled true"`
	Service  string `koanf:"service" validate:"required_if=Enabled true"`
	Critical bool   `koanf:"critical"`
}

type SoundConfig struct {
	Enabled bool   `koanf:"enabled"`
	File    string `koanf:"file"`
}

type BrowserConfig struct {
	Enabled bool `koanf:"enabled"`
}

type EmailConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Host     string   `koanf:"host" validate:"required_if=Enabled true"`
	Port     int      `koanf:"port" validate:"min=0,max=65535"`
	Username string   `koanf:"username"`
	Password string   `koanf:"password"`
	From     string   `koanf:"from" validate:"required_if=Enabled true,omitempty,email"`
	To       []string `koanf:"to" validate:"required_if=Enabled true,dive,email"`
}

type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true"`
	Channel string `koanf:"channel" validate:"required_if=Enabled true"`
}

type RabbitMQConfig struct {
	Enabled    bool   `koanf:"enabled"`
	URL        string `koanf:"url" validate:"required_if=Enabled true"`
	Exchange   string `koanf:"exchange"`
	RoutingKey string `koanf:"routing_key" validate:"required_if=Enabled true"`
	QueueSize  int    `koanf:"queue_size" validate:"min=0"`
}

type JournalConfig struct {
	Enabled bool   `koanf:"enabled"`
	DSN     string `koanf:"dsn" validate:"required_if=Enabled true"`
	Table   string `koanf:"table" validate:"required"`
}

type MetricsConfig struct {
	Exporter string `koanf:"exporter" validate:"oneof=none prometheus otlp"`
	// Address enables the status server; the prometheus exporter defaults it to :9090.
	Address      string `koanf:"address"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	ServiceName  string `koanf:"service_name"`
}

// Overrides are command-line values applied after every other source.
type Overrides struct {
	CheckInterval      *time.Duration
	Cooldown           *time.Duration
	SKURefreshInterval *time.Duration
	NoBrowser          bool
	LogLevel           string
	Locale             string
}

type LoadOptions struct {
	// ConfigPath is a JSON file. A missing file is an error only when
	// the path was given explicitly.
	ConfigPath string
	Explicit   bool
	// EnvFile is loaded into the process environment before env vars are read.
	EnvFile   string
	Overrides Overrides
	// CatalogOnly skips the product checks for commands that only read the catalog.
	CatalogOnly bool
}

// Load resolves the configuration.
// Priority: overrides > environment variables > config file > defaults
func Load(opts LoadOptions) (*Config, error) {
	const op = "config.Load"

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	k := koanf.New(".")
	for key, value := range GetDefaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("%s: default %s: %w", op, key, err)
		}
	}

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			if err := k.Load(file.Provider(opts.ConfigPath), json.Parser()); err != nil {
				return nil, fmt.Errorf("%s: failed to load config file: %w", op, err)
			}
		} else if opts.Explicit {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("%s: failed to load environment: %w", op, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal config: %w", op, err)
	}

	cfg.apply(opts.Overrides)
	cfg.Vendor.StoreURL = strings.ReplaceAll(cfg.Vendor.StoreURL, "{locale}", cfg.Locale.Locale)

	if err := cfg.validate(!opts.CatalogOnly); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// envTransform maps SKUWATCH_POLL__CHECK_INTERVAL to poll.check_interval.
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func (c *Config) apply(o Overrides) {
	if o.CheckInterval != nil {
		c.Poll.CheckInterval = *o.CheckInterval
	}
	if o.Cooldown != nil {
		c.Poll.Cooldown = *o.Cooldown
	}
	if o.SKURefreshInterval != nil {
		c.Poll.SKURefreshInterval = *o.SKURefreshInterval
	}
	if o.NoBrowser {
		c.Notifications.Browser.Enabled = false
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.Locale != "" {
		c.Locale.Locale = o.Locale
	}
}

func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(products bool) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if products && len(c.EnabledProducts()) == 0 {
		return fmt.Errorf("%w: no enabled products", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		key := model.NameKey(p.Name)
		if seen[key] {
			return fmt.Errorf("%w: product %q listed twice", ErrInvalidConfig, p.Name)
		}
		seen[key] = true
	}

	if c.StatusUpdates.Enabled {
		if _, err := c.StatusSchedule(); err != nil {
			return fmt.Errorf("%w: status_updates.schedule: %w", ErrInvalidConfig, err)
		}
	}

	if c.Metrics.Exporter == ExporterOTLP && c.Metrics.OTLPEndpoint == "" {
		return fmt.Errorf("%w: metrics.otlp_endpoint is required for the otlp exporter", ErrInvalidConfig)
	}
	return nil
}

// StatusSchedule parses the heartbeat schedule: a standard five-field cron
// spec or a descriptor such as "@every 30m".
func (c *Config) StatusSchedule() (cron.Schedule, error) {
	return cron.ParseStandard(c.StatusUpdates.Schedule)
}

// ProductSpecs converts the configured products in order.
func (c *Config) ProductSpecs() []model.ProductSpec {
	out := make([]model.ProductSpec, 0, len(c.Products))
	for _, p := range c.Products {
		out = append(out, model.ProductSpec{
			Name:      strings.TrimSpace(p.Name),
			Enabled:   p.Enabled,
			PinnedSKU: strings.TrimSpace(p.SKU),
		})
	}
	return out
}

func (c *Config) EnabledProducts() []string {
	var names []string
	for _, p := range c.Products {
		if p.Enabled {
			names = append(names, p.Name)
		}
	}
	return names
}
