package renderer

import (
	"context"
	"fmt"

	"github.com/artemp/render-stack/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StorageClient is the narrow interface the storage-fronted cache
// decorator needs, satisfied by internal/storage.Client. Declared here to
// avoid an import cycle between renderer and storage.
type StorageClient interface {
	Exists(ctx context.Context, mt domain.MetaTile) (bool, error)
	Fetch(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error)
	Store(ctx context.Context, result *domain.RenderResult) error
}

// StorageConfig wraps an inner renderer with a check against a storage
// node: if the metatile is already on disk and not expired, its cached
// result is returned without invoking the inner renderer. Grounded on
// renderer/storage.py. Inner is a pointer so a read-only style -- one with
// no renderer behind its storage cache, just a served-from-disk leaf -- can
// be represented distinctly from a Config with an accidentally empty
// primitive block, which is a configuration error everywhere else.
type StorageConfig struct {
	Inner  *Config
	Client StorageClient
}

type StorageRenderer struct {
	cfg   StorageConfig
	inner Renderer
	log   *zap.SugaredLogger
	group singleflight.Group
}

func NewStorageRenderer(cfg StorageConfig, inner Renderer, log *zap.SugaredLogger) *StorageRenderer {
	return &StorageRenderer{cfg: cfg, inner: inner, log: log}
}

// Process checks the storage node first; a cache hit short-circuits the
// inner renderer entirely. Concurrent requests for the same metatile are
// deduplicated via singleflight the same way mapcache.go deduplicates
// concurrent WMS GetMap fetches.
func (r *StorageRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	key := fmt.Sprintf("%s/%d/%d/%d", mt.Style, mt.Z, mt.X, mt.Y)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if r.cfg.Client != nil {
			exists, err := r.cfg.Client.Exists(ctx, mt)
			if err == nil && exists {
				result, err := r.cfg.Client.Fetch(ctx, mt)
				if err == nil {
					return result, nil
				}
				r.log.Warnw("storage renderer: cache hit but fetch failed, re-rendering", "error", err)
			}
		}
		if r.inner == nil {
			return nil, domain.ErrNoResult
		}
		result, err := r.inner.Process(ctx, mt)
		if err != nil {
			return nil, err
		}
		if r.cfg.Client != nil {
			if err := r.cfg.Client.Store(ctx, result); err != nil {
				r.log.Warnw("storage renderer: failed to persist render result", "error", err)
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RenderResult), nil
}
