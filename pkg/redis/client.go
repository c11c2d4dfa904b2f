package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muebleria/cotizador-backend/pkg/config"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

// Namespace prefixes every key the service writes.
const Namespace = "cotizador"

var errNotConnected = errors.New("redis client not initialized")

// commands is the slice of the go-redis API the service relies on.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
}

// Client backs settlement replay protection and request throttling.
type Client struct {
	cmd  commands
	conn *redis.Client
}

// New dials redis from cfg and fails fast when the server does not answer.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis ready")
	}
	return &Client{cmd: conn, conn: conn}, nil
}

// buildOptions prefers the URL form. Pool and timeout settings from cfg fill
// whatever the URL leaves unset.
func buildOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis url or address is required")
	}

	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	if url := strings.TrimSpace(cfg.URL); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// Key joins non-blank parts under Namespace with ":".
func Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(Namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// IdempotencyKey is where the response for (scope, id) is recorded.
func (c *Client) IdempotencyKey(scope, id string) string {
	return Key("idempotency", scope, id)
}

// LoadResponse fetches a recorded response. A missing key is not an error.
func (c *Client) LoadResponse(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.cmd == nil {
		return "", false, errNotConnected
	}
	payload, err := c.cmd.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return payload, true, nil
}

// ReserveResponse claims key with a placeholder payload. It reports false when
// another request holds or already answered the key.
func (c *Client) ReserveResponse(ctx context.Context, key, payload string, ttl time.Duration) (bool, error) {
	if c == nil || c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, key, payload, ttl).Result()
}

// SaveResponse overwrites the reservation with the final payload.
func (c *Client) SaveResponse(ctx context.Context, key, payload string, ttl time.Duration) error {
	if c == nil || c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Set(ctx, key, payload, ttl).Err()
}

// ReleaseResponse drops a reservation so the key can be tried again.
func (c *Client) ReleaseResponse(ctx context.Context, key string) error {
	if c == nil || c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Del(ctx, key).Err()
}

// FixedWindowAllow counts a hit for scope. The window starts with the first
// hit and the call is allowed while the count stays within limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c == nil || c.cmd == nil {
		return false, 0, errNotConnected
	}
	key := Key("rate_limit", scope)
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 && window > 0 {
		if err := c.cmd.Expire(ctx, key, window).Err(); err != nil {
			return false, count, fmt.Errorf("arm rate limit window: %w", err)
		}
	}
	return count <= limit, count, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
