package domain

// Tile identifies a single 256x256 tile within a style.
type Tile struct {
	Style string
	X, Y, Z int
}

// MetaTile identifies the anchor (top-left) tile of an 8x8 block of tiles
// that are rendered together in one pass.
type MetaTile struct {
	Style string
	X, Y, Z int
}

// MetaTileSize is the fixed number of tiles along one edge of a metatile,
// matching the original implementation's N_META_TILE.
const MetaTileSize = 8

// MetaTileAnchor returns the metatile this tile belongs to.
func MetaTileAnchor(t Tile) MetaTile {
	return MetaTile{
		Style: t.Style,
		X:     (t.X / MetaTileSize) * MetaTileSize,
		Y:     (t.Y / MetaTileSize) * MetaTileSize,
		Z:     t.Z,
	}
}

// Tiles enumerates the up-to-64 tiles contained in a metatile, in the same
// row-major order the metatile codec uses for its offset table.
func (mt MetaTile) Tiles() []Tile {
	limit := 1 << uint(mt.Z)
	tiles := make([]Tile, 0, MetaTileSize*MetaTileSize)
	for dy := 0; dy < MetaTileSize; dy++ {
		for dx := 0; dx < MetaTileSize; dx++ {
			x, y := mt.X+dx, mt.Y+dy
			if x >= limit || y >= limit {
				continue
			}
			tiles = append(tiles, Tile{Style: mt.Style, X: x, Y: y, Z: mt.Z})
		}
	}
	return tiles
}

// Feature is one interactive metadata entry attached to a sub-tile: a
// bounding rectangle plus the id/name a search plugin would report. Mirrors
// the feature shape extracted by the vector and external map-composition
// renderers.
type Feature struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	BBox [4]float64 `json:"bbox"` // minLon, minLat, maxLon, maxLat
}

// FeatureCollection is the GeoJSON-like metadata side of a RenderResult.
// Empty collections are explicit, not absent: a sub-tile with no features
// still gets a FeatureCollection with a nil Features slice, not a missing
// entry.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty, explicit collection.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection"}
}

// RenderResult is the output of a renderer's Process call: encoded bytes
// per requested format. "No data" is not carried here; a renderer signals
// it by returning ErrNoResult instead of a result.
type RenderResult struct {
	MetaTile MetaTile
	// Images maps a single format bit to its encoded bytes for each tile
	// in the metatile, indexed by the tile's position within the 8x8
	// block (dy*8+dx).
	Images map[Format]map[int][]byte
	// Meta holds each sub-tile's interactive metadata, keyed by the same
	// index used in Images. Not every renderer populates this.
	Meta map[int]*FeatureCollection
	// LastModified is the render timestamp, unix seconds.
	LastModified int64
}

func NewRenderResult(mt MetaTile) *RenderResult {
	return &RenderResult{
		MetaTile: mt,
		Images:   make(map[Format]map[int][]byte),
		Meta:     make(map[int]*FeatureCollection),
	}
}

func (r *RenderResult) Set(format Format, index int, data []byte) {
	m, ok := r.Images[format]
	if !ok {
		m = make(map[int][]byte)
		r.Images[format] = m
	}
	m[index] = data
}

func (r *RenderResult) Get(format Format, index int) ([]byte, bool) {
	m, ok := r.Images[format]
	if !ok {
		return nil, false
	}
	data, ok := m[index]
	return data, ok
}

func (r *RenderResult) SetMeta(index int, fc *FeatureCollection) {
	r.Meta[index] = fc
}

func (r *RenderResult) GetMeta(index int) (*FeatureCollection, bool) {
	fc, ok := r.Meta[index]
	return fc, ok
}
