// Package storage implements the content-addressed tile storage node: an
// HTTP GET/POST API over a decimal-grouped directory tree, with
// Last-Modified/expiry semantics and atomic writes. Grounded on
// storage/node/storage_node_pylons/.../controllers/mercator_tiles.py and
// lib/{mqCache,mqTile}.py.
package storage

import (
	"fmt"
	"path/filepath"
)

// DefaultVersion is the API version segment used when a caller doesn't
// specify one explicitly.
const DefaultVersion = "v1"

// TilePath builds the on-disk path for a metatile, splitting both the X
// and Y coordinates into three zero-padded 3-digit groups the way
// mqCache.py's path_split does, so no directory ever holds more than 1000
// entries: <root>/<version>/<style>/<z>/<x1>/<x2>/<x3>/<y1>/<y2>/<y3>.<ext>.
func TilePath(root, version, style string, x, y, z int, ext string) string {
	return filepath.Join(root, version, style, fmt.Sprintf("%d", z),
		fmt.Sprintf("%03d", x/1_000_000), fmt.Sprintf("%03d", (x/1_000)%1_000), fmt.Sprintf("%03d", x%1_000),
		fmt.Sprintf("%03d", y/1_000_000), fmt.Sprintf("%03d", (y/1_000)%1_000),
		fmt.Sprintf("%03d.%s", y%1_000, ext))
}
