package renderer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/artemp/render-stack/internal/coverage"
	"go.uber.org/zap"
)

// styleFile is the on-disk JSON shape for one style's renderer config. The
// renderer kind is chosen by which nested block is present (checked in the
// order vector, aerial, terrain, mapware, composite, coverages); the
// "system" field is parsed but not consulted. Composite and coverages reference other style names recursively, the
// same way the original's factory.py resolves a style tree from config
// rather than a single flat primitive.
type styleFile struct {
	Name   string `json:"name"`
	System string `json:"system"` // mapnik, terrain, aerial, composite, coverages, mapware

	Vector *struct {
		StyleFile    string        `json:"style_file"`
		MaskStyle    string        `json:"mask_style"`
		DefaultStyle string        `json:"default_style"`
		MaskRegion   [][2]float64  `json:"mask_region"`
	} `json:"vector"`

	Aerial *struct {
		SourceURLTemplate string `json:"source_url_template"`
		TimeoutSeconds    int    `json:"timeout_seconds"`
	} `json:"aerial"`

	Terrain *struct {
		ElevationSource string  `json:"elevation_source"`
		Exaggeration    float64 `json:"exaggeration"`
	} `json:"terrain"`

	Mapware *struct {
		BaseURL        string `json:"base_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"mapware"`

	Composite *struct {
		Layers []string `json:"layers"` // referenced style names, bottom layer first
	} `json:"composite"`

	Coverages *struct {
		Cases   map[string]string `json:"cases"` // dataset name -> referenced style name
		Default string            `json:"default"`
	} `json:"coverages"`
}

// coverageDataset is the on-disk shape of one entry in coverages.json, the
// shared dataset table every "coverages"-system style dispatches against.
type coverageDataset struct {
	Name          string             `json:"name"`
	DefaultScale  [2]int             `json:"default_scale"`
	ScaleByProj   map[string][2]int  `json:"scale_by_proj"`
	Region        [][2]float64       `json:"region"`
	Projection    string             `json:"projection"`
}

// stylesConfig is worker.json: the set of styles this worker serves, and
// which of those are read-only (served straight from storage, no renderer
// behind the cache) or write-back (rendered and also persisted to storage).
// Matches the original's [worker] styles/saved_styles/read_only_styles
// settings.
type stylesConfig struct {
	Styles         []string `json:"styles"`
	SavedStyles    []string `json:"saved_styles"`
	ReadOnlyStyles []string `json:"read_only_styles"`
}

// Registry resolves a style name to its built Renderer, lazily building
// and caching each renderer tree on first use.
type Registry struct {
	dir     string
	log     *zap.SugaredLogger
	factory *Factory
	storage StorageClient
	styles  stylesConfig

	mu       sync.Mutex
	built    map[string]Renderer
	covIndex *coverage.Index
	covOnce  sync.Once
	covErr   error
}

// LoadStyleRegistry prepares a Registry backed by JSON style files under
// dir (one <style>.json per style, plus an optional worker.json and
// coverages.json), matching the original's pattern of reading per-style
// renderer configuration from a directory tree.
func LoadStyleRegistry(dir string, storageClient StorageClient, log *zap.SugaredLogger) (*Registry, error) {
	r := &Registry{
		dir:     dir,
		log:     log,
		factory: NewFactory(log),
		storage: storageClient,
		built:   make(map[string]Renderer),
	}
	if err := r.loadStylesConfig(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadStylesConfig() error {
	path := filepath.Join(r.dir, "worker.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("renderer: reading %s: %w", path, err)
	}
	return json.Unmarshal(data, &r.styles)
}

func (r *Registry) allowed(style string) bool {
	if len(r.styles.Styles) == 0 {
		return true
	}
	for _, s := range r.styles.Styles {
		if s == style {
			return true
		}
	}
	return false
}

func contains(list []string, style string) bool {
	for _, s := range list {
		if s == style {
			return true
		}
	}
	return false
}

// Resolve implements worker.RendererResolver.
func (r *Registry) Resolve(style string) (Renderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rdr, ok := r.built[style]; ok {
		return rdr, nil
	}
	if !r.allowed(style) {
		return nil, fmt.Errorf("renderer: style %q is not enabled for this worker", style)
	}
	cfg, err := r.loadStyle(style, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	rdr, err := r.factory.Build(cfg)
	if err != nil {
		return nil, err
	}
	r.built[style] = rdr
	return rdr, nil
}

// loadStyle reads and builds one style's Config, recursing into composite
// layers and coverage cases by name. visiting guards against a style
// referencing itself (directly or transitively), which would otherwise
// recurse forever.
func (r *Registry) loadStyle(style string, visiting map[string]bool) (Config, error) {
	if visiting[style] {
		return Config{}, fmt.Errorf("renderer: style %q references itself", style)
	}
	visiting[style] = true

	sf, err := r.readStyleFile(style)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Name: style}
	switch {
	case sf.Vector != nil:
		cfg.Vector = &VectorConfig{
			StyleFile:    sf.Vector.StyleFile,
			MaskStyle:    sf.Vector.MaskStyle,
			DefaultStyle: sf.Vector.DefaultStyle,
			MaskRegion:   coverage.Polygon(sf.Vector.MaskRegion),
		}
	case sf.Aerial != nil:
		cfg.Aerial = &AerialConfig{
			SourceURLTemplate: sf.Aerial.SourceURLTemplate,
			Timeout:           time.Duration(sf.Aerial.TimeoutSeconds) * time.Second,
		}
	case sf.Terrain != nil:
		cfg.Terrain = &TerrainConfig{
			ElevationSource: sf.Terrain.ElevationSource,
			Exaggeration:    sf.Terrain.Exaggeration,
		}
	case sf.Mapware != nil:
		cfg.Mapware = &MapwareConfig{
			BaseURL: sf.Mapware.BaseURL,
			Timeout: time.Duration(sf.Mapware.TimeoutSeconds) * time.Second,
		}
	case sf.Composite != nil:
		var layers []Config
		for _, name := range sf.Composite.Layers {
			lcfg, err := r.loadStyle(name, visiting)
			if err != nil {
				return Config{}, err
			}
			layers = append(layers, lcfg)
		}
		cfg.Composite = &CompositeConfig{Layers: layers}
	case sf.Coverages != nil:
		idx, err := r.coverageIndex()
		if err != nil {
			return Config{}, err
		}
		cases := make(map[string]Config, len(sf.Coverages.Cases))
		for dataset, name := range sf.Coverages.Cases {
			ccfg, err := r.loadStyle(name, visiting)
			if err != nil {
				return Config{}, err
			}
			cases[dataset] = ccfg
		}
		var def *Config
		if sf.Coverages.Default != "" {
			dcfg, err := r.loadStyle(sf.Coverages.Default, visiting)
			if err != nil {
				return Config{}, err
			}
			def = &dcfg
		}
		cfg.Coverage = &CoverageConfig{Index: idx, Cases: cases, Default: def}
	default:
		return Config{}, fmt.Errorf("renderer %q: no system configured", style)
	}

	return r.wrapStorage(style, cfg), nil
}

// wrapStorage applies the worker's read_only_styles/saved_styles
// classification: a read-only style is served from storage with no inner
// renderer at all (a cache miss is an error, never a render), a saved
// style renders on miss and writes the result back, and a style listed in
// neither ReadOnlyStyles nor SavedStyles is rendered directly with no
// storage wrapping.
func (r *Registry) wrapStorage(style string, inner Config) Config {
	readOnly := contains(r.styles.ReadOnlyStyles, style)
	saved := contains(r.styles.SavedStyles, style)
	if !readOnly && !saved {
		return inner
	}
	sc := &StorageConfig{Client: r.storage}
	if !readOnly {
		innerCopy := inner
		sc.Inner = &innerCopy
	}
	return Config{Name: style, Storage: sc}
}

func (r *Registry) readStyleFile(style string) (styleFile, error) {
	path := filepath.Join(r.dir, style+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return styleFile{}, fmt.Errorf("renderer: reading style config %s: %w", path, err)
	}
	var sf styleFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return styleFile{}, fmt.Errorf("renderer: parsing style config %s: %w", path, err)
	}
	return sf, nil
}

// coverageIndex lazily loads the shared coverages.json dataset table, used
// by every "coverages"-system style in this worker. A missing file is a
// configuration error only when a style actually tries to use it.
func (r *Registry) coverageIndex() (*coverage.Index, error) {
	r.covOnce.Do(func() {
		path := filepath.Join(r.dir, "coverages.json")
		data, err := os.ReadFile(path)
		if err != nil {
			r.covErr = fmt.Errorf("renderer: reading %s: %w", path, err)
			return
		}
		var raw []coverageDataset
		if err := json.Unmarshal(data, &raw); err != nil {
			r.covErr = fmt.Errorf("renderer: parsing %s: %w", path, err)
			return
		}
		datasets := make([]coverage.Dataset, 0, len(raw))
		for _, d := range raw {
			ds := coverage.Dataset{
				Name:         d.Name,
				DefaultScale: coverage.ScaleRange{Low: d.DefaultScale[0], High: d.DefaultScale[1]},
				Projection:   d.Projection,
			}
			if len(d.ScaleByProj) > 0 {
				ds.ScaleByProj = make(map[string]coverage.ScaleRange, len(d.ScaleByProj))
				for proj, rng := range d.ScaleByProj {
					ds.ScaleByProj[proj] = coverage.ScaleRange{Low: rng[0], High: rng[1]}
				}
			}
			if len(d.Region) > 0 {
				ds.Region = coverage.Polygon(d.Region)
			}
			datasets = append(datasets, ds)
		}
		r.covIndex = coverage.NewIndex(datasets)
	})
	return r.covIndex, r.covErr
}
