package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/disintegration/imaging"
)

// CompositeConfig stacks several renderers' outputs with alpha "over"
// compositing, bottom layer first. Grounded on renderer/composite.py.
type CompositeConfig struct {
	Layers []Config
}

type CompositeRenderer struct {
	layers []Renderer
}

func NewCompositeRenderer(layers []Renderer) *CompositeRenderer {
	return &CompositeRenderer{layers: layers}
}

// Process renders every layer and composites them with alpha "over" blend,
// the same imaging.Overlay call the teacher uses for sub-tile pasting,
// applied here across renderer layers instead of crop offsets.
func (r *CompositeRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	if len(r.layers) == 0 {
		return nil, fmt.Errorf("composite renderer: no layers configured")
	}
	tiles := mt.Tiles()
	canvases := make([]image.Image, len(tiles))
	features := make([][]domain.Feature, len(tiles))

	for _, layer := range r.layers {
		res, err := layer.Process(ctx, mt)
		if err == domain.ErrNoResult {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("composite renderer: layer failed: %w", err)
		}
		for i := range tiles {
			data, ok := firstImage(res, i)
			if !ok {
				continue
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				continue
			}
			if canvases[i] == nil {
				canvases[i] = img
			} else {
				canvases[i] = imaging.Overlay(canvases[i], img, image.Pt(0, 0), 1.0)
			}
			if fc, ok := res.GetMeta(i); ok && fc != nil {
				features[i] = append(features[i], fc.Features...)
			}
		}
	}

	result := domain.NewRenderResult(mt)
	for i, canvas := range canvases {
		if canvas == nil {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, canvas); err != nil {
			return nil, err
		}
		result.Set(domain.FormatPNG, i, buf.Bytes())
	}
	for i := range tiles {
		fc := domain.NewFeatureCollection()
		fc.Features = features[i]
		result.SetMeta(i, fc)
	}
	return result, nil
}

func firstImage(res *domain.RenderResult, index int) ([]byte, bool) {
	for _, format := range []domain.Format{domain.FormatPNG, domain.FormatJPEG, domain.FormatGIF} {
		if data, ok := res.Get(format, index); ok {
			return data, true
		}
	}
	return nil, false
}
