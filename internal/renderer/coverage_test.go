package renderer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/artemp/render-stack/internal/coverage"
	"github.com/artemp/render-stack/internal/domain"
	"github.com/stretchr/testify/require"
)

func encodeColorPNG(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type recordingRenderer struct {
	calls *int
	data  []byte
	name  string
}

func (r recordingRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	*r.calls++
	result := domain.NewRenderResult(mt)
	for i := range mt.Tiles() {
		result.Set(domain.FormatPNG, i, r.data)
		fc := domain.NewFeatureCollection()
		fc.Features = []domain.Feature{{ID: r.name}}
		result.SetMeta(i, fc)
	}
	return result, nil
}

var (
	westColor = color.RGBA{R: 255, A: 255}
	eastColor = color.RGBA{B: 255, A: 255}
)

func worldHalfPolygons() (west, east coverage.Polygon) {
	// Kept well clear of lon=0 (the exact boundary between tile x=0 and
	// x=1's bboxes) so corner containment isn't sensitive to floating-point
	// rounding right at the shared edge.
	west = coverage.Polygon{{-181, -86}, {-10, -86}, {-10, 86}, {-181, 86}}
	east = coverage.Polygon{{10, -86}, {181, -86}, {181, 86}, {10, 86}}
	return
}

func TestCoverageRendererDispatchesWholeMetatileOnceWhenUnanimous(t *testing.T) {
	world := coverage.Polygon{{-180, -90}, {180, -90}, {180, 90}, {-180, 90}}
	idx := coverage.NewIndex([]coverage.Dataset{
		{Name: "vendorA", DefaultScale: coverage.ScaleRange{Low: 0, High: 10}, Region: world},
	})
	calls := 0
	dispatch := map[string]Renderer{
		"vendora": recordingRenderer{calls: &calls, data: encodeColorPNG(westColor), name: "vendorA"},
	}
	r := NewCoverageRenderer(idx, dispatch, nil)

	result, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 1})
	require.NoError(t, err)
	require.Equal(t, 1, calls, "a metatile where every sub-tile agrees on one vendor must dispatch to that vendor exactly once")

	for i := range (domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 1}).Tiles() {
		_, ok := result.Get(domain.FormatPNG, i)
		require.True(t, ok)
	}
}

func TestCoverageRendererBlendsMixedSubTilesFromEachVendorOnce(t *testing.T) {
	west, east := worldHalfPolygons()
	idx := coverage.NewIndex([]coverage.Dataset{
		{Name: "vendorA", DefaultScale: coverage.ScaleRange{Low: 0, High: 10}, Region: west},
		{Name: "vendorB", DefaultScale: coverage.ScaleRange{Low: 0, High: 10}, Region: east},
	})
	callsA, callsB := 0, 0
	dispatch := map[string]Renderer{
		"vendora": recordingRenderer{calls: &callsA, data: encodeColorPNG(westColor), name: "vendorA"},
		"vendorb": recordingRenderer{calls: &callsB, data: encodeColorPNG(eastColor), name: "vendorB"},
	}
	r := NewCoverageRenderer(idx, dispatch, nil)

	mt := domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 1}
	result, err := r.Process(context.Background(), mt)
	require.NoError(t, err)
	require.Equal(t, 1, callsA, "vendorA's sub-renderer runs exactly once even though it only covers some sub-tiles")
	require.Equal(t, 1, callsB, "vendorB's sub-renderer runs exactly once even though it only covers some sub-tiles")

	tiles := mt.Tiles()
	for i, tile := range tiles {
		data, ok := result.Get(domain.FormatPNG, i)
		require.True(t, ok)
		img, _, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		r, _, b, _ := img.At(0, 0).RGBA()
		if tile.X == 0 {
			require.NotZero(t, r, "west sub-tile %d must carry vendorA's pixel", i)
		} else {
			require.NotZero(t, b, "east sub-tile %d must carry vendorB's pixel", i)
		}
		fc, ok := result.GetMeta(i)
		require.True(t, ok)
		require.NotEmpty(t, fc.Features)
	}
}

func TestCoverageRendererFallsBackToDefaultWhenUnmatched(t *testing.T) {
	idx := coverage.NewIndex(nil)
	calls := 0
	def := recordingRenderer{calls: &calls, data: encodeColorPNG(westColor), name: "default"}
	r := NewCoverageRenderer(idx, map[string]Renderer{}, def)

	_, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 1})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}
