package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type redisPublisher interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis publishes JSON envelopes on a pub/sub channel.
type Redis struct {
	cfg    config.RedisConfig
	now    func() time.Time
	client redisPublisher
	open   func(url string) (redisPublisher, error)
}

func NewRedis(cfg config.RedisConfig, deps Deps) *Redis {
	deps = deps.withDefaults()
	return &Redis{cfg: cfg, now: deps.Now, open: openRedis}
}

func openRedis(url string) (redisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Initialize(ctx context.Context) (bool, error) {
	const op = "channel.Redis.Initialize"

	if !r.cfg.Enabled || r.cfg.URL == "" {
		return false, nil
	}
	c, err := r.open(r.cfg.URL)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return false, fmt.Errorf("%s: %w", op, err)
	}
	r.client = c
	return true, nil
}

func (r *Redis) Shutdown(context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) publish(ctx context.Context, env notify.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.cfg.Channel, payload).Err()
}

func (r *Redis) SendStockAlert(ctx context.Context, a notify.Alert) error {
	return r.publish(ctx, notify.AlertEnvelope(a))
}

func (r *Redis) SendStatusUpdate(ctx context.Context, rep notify.StatusReport) error {
	return r.publish(ctx, notify.StatusEnvelope(rep))
}

func (r *Redis) SendStartupMessage(ctx context.Context, text string) error {
	return r.publish(ctx, notify.TextEnvelope(text, r.now()))
}
