package coverage

import (
	"testing"

	"github.com/artemp/render-stack/internal/domain"
)

func TestLookupPicksContainingDataset(t *testing.T) {
	world := Polygon{{-180, -85}, {180, -85}, {180, 85}, {-180, 85}}
	idx := NewIndex([]Dataset{
		{Name: "global", DefaultScale: ScaleRange{Low: 0, High: 20}, Region: world},
	})
	name, ok := idx.Lookup(domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	if !ok || name != "global" {
		t.Fatalf("expected match on global dataset, got %q ok=%v", name, ok)
	}
}

func TestLookupRespectsScaleRange(t *testing.T) {
	world := Polygon{{-180, -85}, {180, -85}, {180, 85}, {-180, 85}}
	idx := NewIndex([]Dataset{
		{Name: "hi-res-only", DefaultScale: ScaleRange{Low: 15, High: 20}, Region: world},
	})
	_, ok := idx.Lookup(domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	if ok {
		t.Fatalf("expected no match at zoom below scale range")
	}
}

func TestCheckSubTilesReturnsSingleUniqueNameWhenWholeMetatileAgrees(t *testing.T) {
	world := Polygon{{-180, -85}, {180, -85}, {180, 85}, {-180, 85}}
	idx := NewIndex([]Dataset{
		{Name: "global", DefaultScale: ScaleRange{Low: 0, High: 20}, Region: world},
	})
	perSubTile, unique := idx.CheckSubTiles(domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	if len(unique) != 1 || unique[0] != "global" {
		t.Fatalf("expected single unique dataset %q, got %v", "global", unique)
	}
	for i, names := range perSubTile {
		if len(names) != 1 || names[0] != "global" {
			t.Fatalf("sub-tile %d: expected [global], got %v", i, names)
		}
	}
}

func TestCheckSubTilesSplitsByPerCornerContainment(t *testing.T) {
	west := Polygon{{-181, -86}, {-10, -86}, {-10, 86}, {-181, 86}}
	east := Polygon{{10, -86}, {181, -86}, {181, 86}, {10, 86}}
	idx := NewIndex([]Dataset{
		{Name: "west", DefaultScale: ScaleRange{Low: 0, High: 20}, Region: west},
		{Name: "east", DefaultScale: ScaleRange{Low: 0, High: 20}, Region: east},
	})
	mt := domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 1}
	perSubTile, unique := idx.CheckSubTiles(mt)
	if len(unique) != 2 {
		t.Fatalf("expected both datasets represented across the metatile, got %v", unique)
	}
	tiles := mt.Tiles()
	for i, tile := range tiles {
		names := perSubTile[i]
		if len(names) != 1 {
			t.Fatalf("sub-tile %d: expected exactly one matching dataset, got %v", i, names)
		}
		want := "west"
		if tile.X != 0 {
			want = "east"
		}
		if names[0] != want {
			t.Fatalf("sub-tile %d (x=%d): expected %q, got %q", i, tile.X, want, names[0])
		}
	}
}

func TestPolygonContains(t *testing.T) {
	square := Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if !square.Contains(5, 5) {
		t.Fatalf("expected point inside square to be contained")
	}
	if square.Contains(20, 20) {
		t.Fatalf("expected point outside square to be excluded")
	}
}
