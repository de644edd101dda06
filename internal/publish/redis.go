// Package publish pushes the latest output frame per session into
// Redis so dashboards and sibling services can read realtime state
// without talking to this process. Keys expire on their own; a stale
// key means the session went quiet.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

type Publisher struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewPublisher returns nil when publishing is disabled; callers treat a
// nil Publisher as a no-op.
func NewPublisher(cfg config.PublishConfig) *Publisher {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Publisher{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       ttl,
	}
}

func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Publish(ctx context.Context, out model.Output) error {
	if p == nil || out.SessionID == "" {
		return nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.keyPrefix+out.SessionID, data, p.ttl).Err()
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
