package renderer

import (
	"context"
	"testing"

	"github.com/artemp/render-stack/internal/coverage"
	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/geo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func worldPolygon() coverage.Polygon {
	// Slightly wider than the projected world (lon +-180, lat +-85.05) so
	// every corner of a whole-world metatile lies strictly inside.
	return coverage.Polygon{{-181, -86}, {181, -86}, {181, 86}, {-181, 86}}
}

func tinyPolygonAt(lon, lat float64) coverage.Polygon {
	return coverage.Polygon{
		{lon - 0.0001, lat - 0.0001}, {lon + 0.0001, lat - 0.0001},
		{lon + 0.0001, lat + 0.0001}, {lon - 0.0001, lat + 0.0001},
	}
}

func TestVectorRendererMaskContainsMetatileRendersWithoutBlend(t *testing.T) {
	cfg := VectorConfig{StyleFile: "default.xml", MaskStyle: "region.xml", DefaultStyle: "default.xml", MaskRegion: worldPolygon()}
	r := NewVectorRenderer(cfg, zap.NewNop().Sugar())

	result, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	require.NoError(t, err)
	for i := range result.MetaTile.Tiles() {
		_, ok := result.Get(domain.FormatPNG, i)
		require.True(t, ok)
		fc, ok := result.GetMeta(i)
		require.True(t, ok)
		require.NotNil(t, fc)
	}
}

func TestVectorRendererMaskOutsideMetatileRendersDefaultAlone(t *testing.T) {
	// The z=6 metatile at x=0 y=0 spans roughly lon -180..-135 and lat
	// 79..85; a tiny polygon near lon 170, lat -80 doesn't intersect its
	// projected bbox at all.
	cfg := VectorConfig{StyleFile: "default.xml", MaskStyle: "region.xml", DefaultStyle: "default.xml", MaskRegion: tinyPolygonAt(170, -80)}
	r := NewVectorRenderer(cfg, zap.NewNop().Sugar())

	result, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 6})
	require.NoError(t, err)
	_, ok := result.Get(domain.FormatPNG, 0)
	require.True(t, ok)
}

func TestVectorRendererMaskStraddlingMetatileBlendsPerSubTile(t *testing.T) {
	proj := geo.NewProjection()
	// A metatile at z=6 x=0 y=0 spans tile columns/rows 0..7; a polygon
	// covering only the western half of that bbox straddles the boundary,
	// forcing the mixed per-sub-tile path.
	minLon, minLat, _, _ := proj.TileBounds(0, 0, 6)
	_, _, maxLon, maxLat := proj.TileBounds(7, 7, 6)
	midLon := (minLon + maxLon) / 2

	mask := coverage.Polygon{
		{minLon, minLat}, {midLon, minLat}, {midLon, maxLat}, {minLon, maxLat},
	}
	cfg := VectorConfig{StyleFile: "default.xml", MaskStyle: "region.xml", DefaultStyle: "default.xml", MaskRegion: mask}
	r := NewVectorRenderer(cfg, zap.NewNop().Sugar())

	result, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 6})
	require.NoError(t, err)
	tiles := domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 6}.Tiles()
	require.Len(t, tiles, 64)
	for i := range tiles {
		_, ok := result.Get(domain.FormatPNG, i)
		require.True(t, ok, "every sub-tile must still produce an image in the mixed case")
	}
}

func TestVectorRendererNoMaskRendersPlain(t *testing.T) {
	cfg := VectorConfig{StyleFile: "default.xml"}
	r := NewVectorRenderer(cfg, zap.NewNop().Sugar())
	result, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	require.NoError(t, err)
	_, ok := result.Get(domain.FormatPNG, 0)
	require.True(t, ok)
}
