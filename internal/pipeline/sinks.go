package pipeline

import (
	"context"

	"robotregistry/internal/model"
)

type catalogReplacer interface {
	ReplaceCatalog(ctx context.Context, cat *model.MergedCatalog) error
}

type catalogPublisher interface {
	Publish(ctx context.Context, cat *model.MergedCatalog) error
}

type sink struct {
	name   string
	accept func(ctx context.Context, cat *model.MergedCatalog) error
}

func (s sink) Name() string { return s.name }

func (s sink) Accept(ctx context.Context, cat *model.MergedCatalog) error {
	return s.accept(ctx, cat)
}

// MirrorTo mirrors every merged catalog into a database table.
func MirrorTo(repo catalogReplacer) CatalogSink {
	return sink{name: "postgres", accept: repo.ReplaceCatalog}
}

// PublishTo publishes every merged catalog to a cache.
func PublishTo(pub catalogPublisher) CatalogSink {
	return sink{name: "redis", accept: pub.Publish}
}
