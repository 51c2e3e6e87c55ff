package geo

import (
	"math"
	"testing"
)

func TestTileBoundsOrigin(t *testing.T) {
	p := NewProjection()
	minLon, minLat, maxLon, maxLat := p.TileBounds(0, 0, 1)
	if minLon >= maxLon || minLat >= maxLat {
		t.Fatalf("invalid bounds: %f %f %f %f", minLon, minLat, maxLon, maxLat)
	}
	if math.Abs(minLon-(-180)) > 1 {
		t.Errorf("expected min lon near -180, got %f", minLon)
	}
}

func TestLonLatRoundTrip(t *testing.T) {
	p := NewProjection()
	px, py := p.LonLatToPixels(13.4, 52.5, 10)
	lon, lat := p.PixelsToLonLat(px, py, 10)
	if math.Abs(lon-13.4) > 0.01 || math.Abs(lat-52.5) > 0.01 {
		t.Errorf("round trip mismatch: got lon=%f lat=%f", lon, lat)
	}
}
