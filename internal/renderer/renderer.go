// Package renderer implements the polymorphic renderer composition graph:
// primitive renderers that produce pixels, and combinators that wrap other
// renderers to cache, composite or dispatch by coverage. Grounded on
// renderer/{factory,composite,coverages,storage,mapnik,aerial,terrain,
// mapware,renderResult}.py from the original implementation.
package renderer

import (
	"context"
	"fmt"

	"github.com/artemp/render-stack/internal/domain"
	"go.uber.org/zap"
)

// Renderer is the single contract every primitive and combinator
// implements: process a metatile and return its render result, or
// domain.ErrNoResult if there is legitimately nothing to draw.
type Renderer interface {
	Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error)
}

// Config describes one style's renderer tree, as loaded from the worker's
// style configuration file. Exactly one of the primitive fields should be
// set, unless Storage or Composite wrap another Config.
type Config struct {
	Name string

	// Primitives
	Vector  *VectorConfig
	Aerial  *AerialConfig
	Terrain *TerrainConfig
	Mapware *MapwareConfig

	// Combinators
	Storage   *StorageConfig
	Composite *CompositeConfig
	Coverage  *CoverageConfig
}

// Factory builds a Renderer tree from style configuration, matching
// factory.py's role of turning declarative config into a live object
// graph.
type Factory struct {
	log   *zap.SugaredLogger
	build map[string]func(Config) (Renderer, error)
}

func NewFactory(log *zap.SugaredLogger) *Factory {
	f := &Factory{log: log}
	f.build = map[string]func(Config) (Renderer, error){}
	return f
}

// Build constructs a Renderer from a Config, recursing into combinators.
func (f *Factory) Build(cfg Config) (Renderer, error) {
	switch {
	case cfg.Vector != nil:
		if err := cfg.Vector.Validate(); err != nil {
			return nil, fmt.Errorf("renderer %q: %w", cfg.Name, err)
		}
		return NewVectorRenderer(*cfg.Vector, f.log), nil
	case cfg.Aerial != nil:
		return NewAerialRenderer(*cfg.Aerial, f.log), nil
	case cfg.Terrain != nil:
		return NewTerrainRenderer(*cfg.Terrain, f.log), nil
	case cfg.Mapware != nil:
		return NewMapwareRenderer(*cfg.Mapware, f.log), nil
	case cfg.Storage != nil:
		var inner Renderer
		if cfg.Storage.Inner != nil {
			var err error
			inner, err = f.Build(*cfg.Storage.Inner)
			if err != nil {
				return nil, err
			}
		}
		return NewStorageRenderer(*cfg.Storage, inner, f.log), nil
	case cfg.Composite != nil:
		var layers []Renderer
		for _, lcfg := range cfg.Composite.Layers {
			r, err := f.Build(lcfg)
			if err != nil {
				return nil, err
			}
			layers = append(layers, r)
		}
		return NewCompositeRenderer(layers), nil
	case cfg.Coverage != nil:
		dispatch := make(map[string]Renderer, len(cfg.Coverage.Cases))
		for name, ccfg := range cfg.Coverage.Cases {
			r, err := f.Build(ccfg)
			if err != nil {
				return nil, err
			}
			dispatch[name] = r
		}
		var def Renderer
		if cfg.Coverage.Default != nil {
			var err error
			def, err = f.Build(*cfg.Coverage.Default)
			if err != nil {
				return nil, err
			}
		}
		return NewCoverageRenderer(cfg.Coverage.Index, dispatch, def), nil
	default:
		return nil, fmt.Errorf("renderer %q: empty configuration", cfg.Name)
	}
}
