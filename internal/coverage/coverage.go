// Package coverage implements dataset dispatch by geographic coverage:
// each dataset declares a scale range (optionally overridden per
// projection) and a polygon; a lookup picks the first dataset whose scale
// range contains the tile's zoom level and whose polygon contains the
// center point of the metatile's anchor tile. Grounded on coverage/{CoverageChecker,coveragedata,
// mqdataset,coveragemanager}.py.
package coverage

import (
	"strconv"
	"time"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/geo"
	"github.com/jellydator/ttlcache/v3"
)

// ScaleRange is a [low, high] zoom-level band a dataset is eligible for.
type ScaleRange struct {
	Low, High int
}

// Polygon is a simple closed ring in lon/lat, tested with a point-in-polygon
// check -- coverage datasets in the original are shapefile-backed; shapefile
// ingestion itself is a Non-goal, so datasets here are supplied pre-parsed.
type Polygon [][2]float64

// Contains reports whether pt lies inside the polygon using the standard
// ray-casting algorithm, matching the original's isCandidate shortlist
// followed by an exact intersects/within test.
func (p Polygon) Contains(lon, lat float64) bool {
	inside := false
	n := len(p)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p[i][0], p[i][1]
		xj, yj := p[j][0], p[j][1]
		intersects := (yi > lat) != (yj > lat) &&
			(lon < (xj-xi)*(lat-yi)/(yj-yi)+xi)
		if intersects {
			inside = !inside
		}
	}
	return inside
}

// Dataset is one coverage entry: a name, a default scale range, optional
// per-projection overrides, and the polygon it applies to.
type Dataset struct {
	Name           string
	DefaultScale   ScaleRange
	ScaleByProj    map[string]ScaleRange
	Region         Polygon
	Projection     string
}

// isCandidate mirrors mqdataset.py's isCandidate: a per-projection scale
// override takes precedence over the dataset's default range.
func (d Dataset) isCandidate(zoom int, projection string) bool {
	r := d.DefaultScale
	if override, ok := d.ScaleByProj[projection]; ok {
		r = override
	}
	return zoom >= r.Low && zoom <= r.High
}

// Index is an ordered list of datasets, checked in priority order. Replaces
// the original's module-level mutable coverage_datamap with an explicit,
// passed-by-reference instance -- see DESIGN.md Design Notes item on
// eliminating shared mutable global state.
type Index struct {
	datasets []Dataset
	byName   map[string]Dataset
	proj     *geo.Projection
	cache    *ttlcache.Cache[string, []string]
}

// NewIndex builds a coverage index over the given datasets, in priority
// order (first match wins).
func NewIndex(datasets []Dataset) *Index {
	cache := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](30 * time.Second),
	)
	go cache.Start()
	byName := make(map[string]Dataset, len(datasets))
	for _, d := range datasets {
		byName[d.Name] = d
	}
	return &Index{
		datasets: datasets,
		byName:   byName,
		proj:     geo.NewProjection(),
		cache:    cache,
	}
}

// Lookup finds the first dataset covering the center point of the
// metatile's anchor (top-left) tile, returning its name. Candidate shortlisting by scale is memoized per
// zoom/projection for a short TTL, since repeat queries at the same zoom
// level are common under sustained render load.
func (idx *Index) Lookup(mt domain.MetaTile) (string, bool) {
	projection := "EPSG:3857"
	candidates := idx.candidatesForScale(mt.Z, projection)
	if len(candidates) == 0 {
		return "", false
	}
	minLon, minLat, maxLon, maxLat := idx.proj.TileBounds(mt.X, mt.Y, mt.Z)
	centerLon := (minLon + maxLon) / 2
	centerLat := (minLat + maxLat) / 2

	for _, name := range candidates {
		d := idx.byName[name]
		if d.Region == nil || d.Region.Contains(centerLon, centerLat) {
			return d.Name, true
		}
	}
	return "", false
}

// CheckSubTiles dispatches every sub-tile of a metatile independently,
// mirroring mqdataset.py's per-corner isCandidate/isWithin test rather than
// Lookup's single center-point shortcut. For each sub-tile it returns every
// candidate dataset whose scale range covers the zoom level and whose
// region contains any of the sub-tile's four corners (allMatches, not
// first-wins) -- a sub-tile straddling two datasets' regions legitimately
// belongs to both. It also returns the set of distinct dataset names seen
// across the whole metatile, so a caller can tell in one check whether
// every sub-tile agreed on a single dataset.
func (idx *Index) CheckSubTiles(mt domain.MetaTile) (perSubTile [][]string, uniqueNames []string) {
	projection := "EPSG:3857"
	candidates := idx.candidatesForScale(mt.Z, projection)
	tiles := mt.Tiles()
	perSubTile = make([][]string, len(tiles))
	seen := make(map[string]bool)
	for i, t := range tiles {
		minLon, minLat, maxLon, maxLat := idx.proj.TileBounds(t.X, t.Y, t.Z)
		corners := [4][2]float64{
			{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat},
		}
		var names []string
		for _, name := range candidates {
			d := idx.byName[name]
			if d.Region == nil {
				names = append(names, name)
				continue
			}
			for _, c := range corners {
				if d.Region.Contains(c[0], c[1]) {
					names = append(names, name)
					break
				}
			}
		}
		perSubTile[i] = names
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				uniqueNames = append(uniqueNames, name)
			}
		}
	}
	return perSubTile, uniqueNames
}

func (idx *Index) candidatesForScale(zoom int, projection string) []string {
	key := keyFor(zoom, projection)
	if item := idx.cache.Get(key); item != nil {
		return item.Value()
	}
	var names []string
	for _, d := range idx.datasets {
		if d.isCandidate(zoom, projection) {
			names = append(names, d.Name)
		}
	}
	idx.cache.Set(key, names, ttlcache.DefaultTTL)
	return names
}

func keyFor(zoom int, projection string) string {
	return projection + ":" + strconv.Itoa(zoom)
}
