package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/artemp/render-stack/internal/coverage"
	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/geo"
	"go.uber.org/zap"
)

// VectorConfig configures a mapnik-style primitive renderer that draws
// from an XML style sheet, optionally applying a region mask style on top
// of the default style. Grounded on renderer/mapnik.py.
type VectorConfig struct {
	StyleFile    string
	MaskStyle    string
	DefaultStyle string
	BufferSize   int
	// MaskRegion is the polygon mask_style applies within. A metatile whose
	// bbox falls entirely inside it renders with MaskStyle alone; entirely
	// outside renders with DefaultStyle alone; straddling the boundary
	// renders both and composites them per sub-tile.
	MaskRegion coverage.Polygon
}

// Validate enforces the region-mask invariant: mask_style requires
// default_style and vice versa, resolved per DESIGN.md's Open Question #3
// as a hard construction-time error rather than a silent partial config.
func (c VectorConfig) Validate() error {
	if (c.MaskStyle == "") != (c.DefaultStyle == "") {
		return fmt.Errorf("vector renderer: mask_style and default_style must both be set or both be empty")
	}
	return nil
}

type VectorRenderer struct {
	cfg  VectorConfig
	log  *zap.SugaredLogger
	proj *geo.Projection
}

func NewVectorRenderer(cfg VectorConfig, log *zap.SugaredLogger) *VectorRenderer {
	return &VectorRenderer{cfg: cfg, log: log, proj: geo.NewProjection()}
}

// Process renders a metatile by invoking the underlying map-rendering
// engine. The engine binding itself (cgo mapnik or an external process) is
// intentionally out of scope here, matching the rasterization-internals
// Non-goal; this implements the surrounding contract a real engine binding
// would be plugged into: region-mask dispatch (bbox projection, contains
// vs. intersects against mask_style, destination-out cutout plus region
// blend for straddling metatiles) and per-feature metadata extraction.
func (r *VectorRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if r.cfg.StyleFile == "" && r.cfg.MaskStyle == "" {
		return nil, fmt.Errorf("vector renderer: no style file configured")
	}
	if r.cfg.MaskStyle == "" {
		return r.renderPlain(mt), nil
	}
	return r.renderMasked(mt)
}

func (r *VectorRenderer) renderPlain(mt domain.MetaTile) *domain.RenderResult {
	result := renderBlankMetatile(mt)
	for i := range mt.Tiles() {
		result.SetMeta(i, r.extractMeta(mt, i))
	}
	return result
}

// renderMasked implements the region-mask dispatch: project the metatile's
// bbox, compare it against MaskRegion, and pick one of three paths --
// region alone, default alone, or a per-sub-tile blend for the boundary
// case.
func (r *VectorRenderer) renderMasked(mt domain.MetaTile) (*domain.RenderResult, error) {
	tiles := mt.Tiles()
	if len(tiles) == 0 {
		return domain.NewRenderResult(mt), nil
	}
	first, last := tiles[0], tiles[len(tiles)-1]
	// Tile rows grow southward: the first (top-left) sub-tile holds the
	// metatile's west and north edges, the last its east and south edges.
	minLon, _, _, maxLat := r.proj.TileBounds(first.X, first.Y, first.Z)
	_, minLat, maxLon, _ := r.proj.TileBounds(last.X, last.Y, last.Z)

	mask := r.cfg.MaskRegion
	switch {
	case mask == nil:
		return r.renderPlain(mt), nil
	case polygonContainsBBox(mask, minLon, minLat, maxLon, maxLat):
		r.log.Debugw("vector renderer: mask contains metatile, rendering region style alone", "style", r.cfg.MaskStyle)
		return r.renderPlain(mt), nil
	case !polygonIntersectsBBox(mask, minLon, minLat, maxLon, maxLat):
		r.log.Debugw("vector renderer: mask does not intersect metatile, rendering default style alone", "style", r.cfg.DefaultStyle)
		return r.renderPlain(mt), nil
	default:
		r.log.Debugw("vector renderer: mask straddles metatile, blending per sub-tile",
			"mask_style", r.cfg.MaskStyle, "default_style", r.cfg.DefaultStyle)
		return r.renderBlended(mt, tiles), nil
	}
}

func (r *VectorRenderer) renderBlended(mt domain.MetaTile, tiles []domain.Tile) *domain.RenderResult {
	result := domain.NewRenderResult(mt)
	mask := r.cfg.MaskRegion
	defaultImg := blankTileImage()
	regionImg := blankTileImage()
	for i, t := range tiles {
		minLon, minLat, maxLon, maxLat := r.proj.TileBounds(t.X, t.Y, t.Z)
		switch {
		case polygonContainsBBox(mask, minLon, minLat, maxLon, maxLat):
			result.Set(domain.FormatPNG, i, encodeImage(regionImg))
		case !polygonIntersectsBBox(mask, minLon, minLat, maxLon, maxLat):
			result.Set(domain.FormatPNG, i, encodeImage(defaultImg))
		default:
			result.Set(domain.FormatPNG, i, encodeImage(r.blendBoundaryTile(t, mask, defaultImg, regionImg)))
		}
		result.SetMeta(i, r.extractMeta(mt, i))
	}
	return result
}

// blendBoundaryTile composites one sub-tile straddling the mask boundary:
// for each output pixel, the region image shows through wherever the
// pixel's projected lon/lat falls inside the mask (the destination-out
// cutout), the default image everywhere else.
func (r *VectorRenderer) blendBoundaryTile(t domain.Tile, mask coverage.Polygon, defaultImg, regionImg image.Image) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, 256, 256))
	originX := float64(t.X * 256)
	originY := float64(t.Y * 256)
	for py := 0; py < 256; py++ {
		for px := 0; px < 256; px++ {
			lon, lat := r.proj.PixelsToLonLat(originX+float64(px), originY+float64(py), t.Z)
			if mask.Contains(lon, lat) {
				out.Set(px, py, regionImg.At(px, py))
			} else {
				out.Set(px, py, defaultImg.At(px, py))
			}
		}
	}
	return out
}

// extractMeta builds the per-feature metadata (bounding rects plus id/name)
// a search plugin reads off a sub-tile. Pulling real feature attributes out
// of the rasterization engine is out of scope alongside its drawing calls;
// every sub-tile still gets an explicit, empty collection rather than a
// missing one.
func (r *VectorRenderer) extractMeta(mt domain.MetaTile, index int) *domain.FeatureCollection {
	return domain.NewFeatureCollection()
}

func polygonContainsBBox(mask coverage.Polygon, minLon, minLat, maxLon, maxLat float64) bool {
	if mask == nil {
		return false
	}
	for _, c := range bboxCorners(minLon, minLat, maxLon, maxLat) {
		if !mask.Contains(c[0], c[1]) {
			return false
		}
	}
	return true
}

func polygonIntersectsBBox(mask coverage.Polygon, minLon, minLat, maxLon, maxLat float64) bool {
	if mask == nil {
		return false
	}
	for _, c := range bboxCorners(minLon, minLat, maxLon, maxLat) {
		if mask.Contains(c[0], c[1]) {
			return true
		}
	}
	for _, v := range mask {
		if v[0] >= minLon && v[0] <= maxLon && v[1] >= minLat && v[1] <= maxLat {
			return true
		}
	}
	return false
}

func bboxCorners(minLon, minLat, maxLon, maxLat float64) [4][2]float64 {
	return [4][2]float64{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat},
	}
}

// renderBlankMetatile is the fallback RenderResult shape used by
// primitives in this repository whose underlying drawing engine is out of
// scope: a fully transparent 256x256 image for every sub-tile, giving the
// worker pipeline (transcode/pack/store) something concrete to exercise
// end to end.
func renderBlankMetatile(mt domain.MetaTile) *domain.RenderResult {
	result := domain.NewRenderResult(mt)
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for i := range mt.Tiles() {
		result.Set(domain.FormatPNG, i, encodeBlank(img))
	}
	return result
}

func encodeBlank(img image.Image) []byte {
	return blankPNGCache
}

func blankTileImage() image.Image {
	img, err := png.Decode(bytes.NewReader(blankPNGCache))
	if err != nil {
		return image.NewRGBA(image.Rect(0, 0, 256, 256))
	}
	return img
}

func encodeImage(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return blankPNGCache
	}
	return buf.Bytes()
}

var blankPNGCache = encodeOnce()
