package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/geo"
	"github.com/artemp/render-stack/internal/metatile"
	"github.com/artemp/render-stack/internal/metrics"
	"github.com/labstack/echo/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// ExpiryChecker reports and sets whether a style's tile index entry is
// marked expired. Declared here rather than imported from internal/expiry
// to avoid a dependency from storage onto expiry's mmap internals.
type ExpiryChecker interface {
	IsExpired(style string, x, y, z int) (bool, error)
	SetExpired(style string, x, y, z int) error
}

// Node is the storage node HTTP API: GET serves an individual tile cut out
// of its metatile container, POST stores a metatile container, in both
// cases addressed by the decimal-grouped directory layout in path.go.
// Grounded on mercator_tiles.py.
type Node struct {
	root    string
	expiry  ExpiryChecker
	log     *zap.SugaredLogger
	metrics *metrics.Storage
}

func NewNode(root string, expiry ExpiryChecker, log *zap.SugaredLogger) *Node {
	return &Node{root: root, expiry: expiry, log: log, metrics: metrics.NewStorageMetrics()}
}

// Routes registers the node's handlers on an echo instance.
func (n *Node) Routes(e *echo.Echo) {
	e.GET("/:version/:style/:z/:x/:y", n.handleGet)
	e.POST("/:version/:style/:z/:x/:y", n.handlePost)
}

type params struct {
	version    string
	style      string
	x, y, z    int
	ext        string
}

func parseParams(c echo.Context) (params, error) {
	version := c.Param("version")
	style := c.Param("style")
	z, err := strconv.Atoi(c.Param("z"))
	if err != nil {
		return params{}, fmt.Errorf("bad z: %w", err)
	}
	x, err := strconv.Atoi(c.Param("x"))
	if err != nil {
		return params{}, fmt.Errorf("bad x: %w", err)
	}
	yExt := c.Param("y")
	y, ext, err := splitExt(yExt)
	if err != nil {
		return params{}, err
	}
	return params{version: version, style: style, x: x, y: y, z: z, ext: ext}, nil
}

func splitExt(s string) (int, string, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			y, err := strconv.Atoi(s[:i])
			if err != nil {
				return 0, "", fmt.Errorf("bad y: %w", err)
			}
			return y, s[i+1:], nil
		}
	}
	return 0, "", fmt.Errorf("missing file extension in %q", s)
}

// handleGet serves a single tile by reading its metatile container and
// cutting out the sub-tile at the requested coordinates. Last-Modified is
// set to the container's mtime, or the epoch if the expiry service has
// marked the style's index entry for this tile as expired -- this signals
// downstream caches to treat the response as stale without the storage
// node itself deleting anything, matching the original's separation of
// "expiry bookkeeping" from "tile bytes".
func (n *Node) handleGet(c echo.Context) error {
	p, err := parseParams(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	format := extToFormat(p.ext)
	mt := domain.MetaTile{Style: p.style, X: (p.x / domain.MetaTileSize) * domain.MetaTileSize, Y: (p.y / domain.MetaTileSize) * domain.MetaTileSize, Z: p.z}
	path := TilePath(n.root, p.version, p.style, mt.X, mt.Y, p.z, p.ext+".meta")

	data, err := readAll(path)
	if os.IsNotExist(err) {
		n.metrics.CacheMisses.Inc()
		return c.String(http.StatusNotFound, "tile not found")
	}
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	decoded, err := metatile.Decode(data)
	if err != nil {
		return c.String(http.StatusInternalServerError, fmt.Sprintf("corrupt metatile: %s", err))
	}
	index := geo.MetaOffset(p.x, p.y, domain.MetaTileSize)
	tileData, ok := decoded.Tile(index)
	if !ok {
		n.metrics.CacheMisses.Inc()
		return c.String(http.StatusNotFound, "tile not present in metatile")
	}
	n.metrics.CacheHits.Inc()

	lastMod := mtimeOf(path)
	if n.expiry != nil {
		if expired, err := n.expiry.IsExpired(p.style, p.x, p.y, p.z); err == nil && expired {
			lastMod = time.Unix(0, 0)
		}
	}
	c.Response().Header().Set("Last-Modified", lastMod.UTC().Format(http.TimeFormat))
	return c.Blob(http.StatusOK, contentType(format), tileData)
}

// handlePost stores a metatile container uploaded by a worker. The body is
// a multipart form whose file parts are named ".../z/x/y.ext", matching
// the documented POST contract: a single request can carry more than one
// sub-resource, each located by its own part filename rather than the URL
// (the URL's z/x/y only pin the request to one metatile's directory
// group). An optional Last-Modified header (RFC 1123) is recorded onto
// every stored file; X-Also-Expire propagates to companion styles by
// marking their same-coordinate entry expired in the expiry service,
// matching mercator_tiles.py's cross-style invalidation on write.
func (n *Node) handlePost(c echo.Context) error {
	p, err := parseParams(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	lastMod := time.Now()
	if lm := c.Request().Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			lastMod = t
		}
	}

	stored := 0
	mr, err := c.Request().MultipartReader()
	if err == nil {
		stored, err = n.storeMultipart(mr, p, lastMod)
		if err != nil {
			n.log.Errorw("storage: failed to store metatile", "error", err)
			return c.String(http.StatusServiceUnavailable, "storage failure")
		}
	} else {
		// Non-multipart fallback: the whole body is one metatile container
		// for the URL's own z/x/y.
		body, rerr := io.ReadAll(c.Request().Body)
		if rerr != nil {
			return c.String(http.StatusBadRequest, "reading body")
		}
		path := TilePath(n.root, p.version, p.style, p.x, p.y, p.z, p.ext+".meta")
		if werr := n.storeOne(path, body, lastMod); werr != nil {
			n.log.Errorw("storage: failed to store metatile", "error", werr, "path", path)
			return c.String(http.StatusServiceUnavailable, "storage failure")
		}
		stored = 1
	}
	if stored == 0 {
		return c.String(http.StatusBadRequest, "no file parts in request")
	}

	if also := c.Request().Header.Get("X-Also-Expire"); also != "" {
		n.propagateExpiry(also, p.x, p.y, p.z)
	}
	return c.NoContent(http.StatusCreated)
}

func (n *Node) storeOne(path string, data []byte, lastMod time.Time) error {
	if err := atomicWrite(path, data); err != nil {
		return err
	}
	if err := os.Chtimes(path, lastMod, lastMod); err != nil {
		n.log.Warnw("storage: failed to set mtime", "path", path, "error", err)
	}
	return nil
}

// storeMultipart writes every file part of the request, parsing each
// part's filename as ".../z/x/y.ext" the way mqCache.py's controller does
// for a multi-file POST, and falls back to the URL's own z/x/y/style when
// a part carries no filename of its own.
func (n *Node) storeMultipart(mr *multipart.Reader, p params, lastMod time.Time) (int, error) {
	stored := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stored, fmt.Errorf("reading multipart body: %w", err)
		}
		x, y, z, ext, ok := parsePartFilename(part.FileName())
		if !ok {
			x, y, z, ext = p.x, p.y, p.z, p.ext
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return stored, fmt.Errorf("reading part %q: %w", part.FileName(), err)
		}
		path := TilePath(n.root, p.version, p.style, x, y, z, ext+".meta")
		if err := n.storeOne(path, data, lastMod); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// parsePartFilename parses a multipart file part's name as ".../z/x/y.ext",
// matching the filename-encoded coordinates mqCache.py's POST handler
// expects for each part of a batched upload.
func parsePartFilename(name string) (x, y, z int, ext string, ok bool) {
	if name == "" {
		return 0, 0, 0, "", false
	}
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	yPart, ext, err := splitExt(base)
	if err != nil {
		return 0, 0, 0, "", false
	}
	segments := strings.Split(strings.Trim(name, "/"), "/")
	if len(segments) < 3 {
		return 0, 0, 0, "", false
	}
	z, err := strconv.Atoi(segments[len(segments)-3])
	if err != nil {
		return 0, 0, 0, "", false
	}
	x, err = strconv.Atoi(segments[len(segments)-2])
	if err != nil {
		return 0, 0, 0, "", false
	}
	return x, yPart, z, ext, true
}

func mtimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Unix(0, 0)
	}
	return info.ModTime()
}

func (n *Node) propagateExpiry(csv string, x, y, z int) {
	if n.expiry == nil {
		return
	}
	for _, style := range strings.Split(csv, ",") {
		style = strings.TrimSpace(style)
		if style == "" {
			continue
		}
		if err := n.expiry.SetExpired(style, x, y, z); err != nil {
			n.log.Warnw("storage: companion expiry propagation failed", "style", style, "error", err)
		}
	}
}

func extToFormat(ext string) domain.Format {
	switch ext {
	case "png":
		return domain.FormatPNG
	case "jpg", "jpeg":
		return domain.FormatJPEG
	case "gif":
		return domain.FormatGIF
	case "json":
		return domain.FormatJSON
	default:
		return domain.FormatPNG
	}
}

func contentType(f domain.Format) string {
	switch f {
	case domain.FormatPNG:
		return "image/png"
	case domain.FormatJPEG:
		return "image/jpeg"
	case domain.FormatGIF:
		return "image/gif"
	case domain.FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// JSONSerializer matches the teacher's server.go: echo's default JSON
// encoding swapped for json-iterator for speed under heavy render-node
// traffic.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	return jsoniter.NewDecoder(c.Request().Body).Decode(i)
}
