package expiry

import "github.com/artemp/render-stack/internal/geo"

// tileIndex computes the flat bit-set index for a tile: its Morton code
// within the zoom level, offset by the cumulative tile count of all
// coarser zoom levels, so every zoom level gets a disjoint range in the
// same per-style file.
func tileIndex(x, y, z int) int {
	base := 0
	for i := 0; i < z; i++ {
		base += 1 << uint(2*i)
	}
	code := geo.Interleave(uint32(x), uint32(y))
	return base + int(code)
}
