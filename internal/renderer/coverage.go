package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sort"
	"strings"

	"github.com/artemp/render-stack/internal/coverage"
	"github.com/artemp/render-stack/internal/domain"
)

// CoverageConfig picks a renderer by which dataset covers the tile's
// location, with an optional fallback. Grounded on renderer/coverages.py.
type CoverageConfig struct {
	Index   *coverage.Index
	Cases   map[string]Config // dataset name -> renderer config
	Default *Config
}

type CoverageRenderer struct {
	index    *coverage.Index
	dispatch map[string]Renderer
	def      Renderer
}

func NewCoverageRenderer(index *coverage.Index, dispatch map[string]Renderer, def Renderer) *CoverageRenderer {
	return &CoverageRenderer{index: index, dispatch: dispatch, def: def}
}

// Process dispatches every sub-tile of the metatile independently against
// the coverage index, rather than the whole metatile against its center
// point: a metatile straddling two vendors' coverage needs pixel blocks
// from both. When every sub-tile agrees on one vendor the whole metatile is
// still handed to that vendor's renderer in a single call (the common
// case); only a genuinely mixed metatile pays for rendering each distinct
// vendor once and picking sub-tile blocks out of the results.
func (r *CoverageRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	perSubTile, _ := r.index.CheckSubTiles(mt)
	vendors := make([]string, len(perSubTile))
	for i, names := range perSubTile {
		vendors[i] = r.normalize(names)
	}
	unique := uniqueStrings(vendors)

	if len(unique) <= 1 {
		name := "default"
		if len(unique) == 1 {
			name = unique[0]
		}
		return r.renderVendor(ctx, mt, name)
	}

	rendered := make(map[string]*domain.RenderResult, len(unique))
	for _, name := range unique {
		res, err := r.renderVendor(ctx, mt, name)
		if err != nil {
			return nil, fmt.Errorf("coverage renderer: vendor %q: %w", name, err)
		}
		rendered[name] = res
	}

	tiles := mt.Tiles()
	result := domain.NewRenderResult(mt)
	for i := range tiles {
		src := rendered[vendors[i]]
		if src == nil {
			continue
		}
		if data, ok := firstImage(src, i); ok {
			if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
				var buf bytes.Buffer
				if err := png.Encode(&buf, img); err == nil {
					result.Set(domain.FormatPNG, i, buf.Bytes())
				}
			}
		}
		if fc, ok := src.GetMeta(i); ok {
			result.SetMeta(i, fc)
		}
	}
	return result, nil
}

func (r *CoverageRenderer) renderVendor(ctx context.Context, mt domain.MetaTile, name string) (*domain.RenderResult, error) {
	if inner, ok := r.dispatch[name]; ok {
		return inner.Process(ctx, mt)
	}
	if r.def != nil {
		return r.def.Process(ctx, mt)
	}
	return nil, domain.ErrNoResult
}

// normalize maps a sub-tile's raw candidate list to a single dispatch key:
// lowercase the first match, "default" when no dataset claimed the
// sub-tile, and "missing" when a dataset claimed it but no renderer is
// configured for that name.
func (r *CoverageRenderer) normalize(names []string) string {
	if len(names) == 0 {
		return "default"
	}
	name := strings.ToLower(names[0])
	if _, ok := r.dispatch[name]; !ok {
		return "missing"
	}
	return name
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
