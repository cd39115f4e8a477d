// Package cache publishes the merged catalog to Redis and coordinates
// runs through Redis keys: a single-writer merge lock and a trigger
// cooldown.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"robotregistry/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	CatalogKey = "registry:catalog"
	StatsKey   = "registry:catalog:stats"
	LockKey    = "registry:merge:lock"
	TriggerKey = "registry:trigger:cooldown"
)

// NewClient connects to the Redis server at url (redis://...).
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Publisher stores the latest merged catalog for readers.
type Publisher struct {
	Client *redis.Client
}

// Publish writes the catalog document and its stats hash in one
// transaction so readers never see a catalog with stale stats.
func (p *Publisher) Publish(ctx context.Context, cat *model.MergedCatalog) error {
	b, err := json.Marshal(cat)
	if err != nil {
		return err
	}

	_, err = p.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, CatalogKey, b, 0)
		pipe.HSet(ctx, StatsKey, statsFields(cat))
		return nil
	})
	return err
}

// Latest returns the last published catalog, or nil when none exists.
func (p *Publisher) Latest(ctx context.Context) (*model.MergedCatalog, error) {
	val, err := p.Client.Get(ctx, CatalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cat model.MergedCatalog
	if err := json.Unmarshal(val, &cat); err != nil {
		return nil, fmt.Errorf("decode published catalog: %w", err)
	}
	return &cat, nil
}

func statsFields(cat *model.MergedCatalog) map[string]any {
	return map[string]any{
		"total":    strconv.Itoa(cat.Stats.Total),
		"live":     strconv.Itoa(cat.Stats.Live),
		"seed":     strconv.Itoa(cat.Stats.Seed),
		"mergedAt": cat.MergedAt.UTC().Format(time.RFC3339),
	}
}
