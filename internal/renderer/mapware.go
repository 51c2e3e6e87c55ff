package renderer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/artemp/render-stack/internal/domain"
	"go.uber.org/zap"
)

// MapwareConfig configures the "external map composition" primitive: a
// renderer that sends the whole metatile request to a separate
// map-composition service over HTTP and checks its response status. The
// response body is not decoded: a 200 yields a fully transparent metatile,
// a 204 yields ErrNoResult, and any other status is an error. Grounded on
// renderer/mapware.py.
type MapwareConfig struct {
	BaseURL string
	Timeout time.Duration
}

type MapwareRenderer struct {
	cfg    MapwareConfig
	log    *zap.SugaredLogger
	client *http.Client
}

func NewMapwareRenderer(cfg MapwareConfig, log *zap.SugaredLogger) *MapwareRenderer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &MapwareRenderer{cfg: cfg, log: log, client: &http.Client{Timeout: cfg.Timeout}}
}

func (r *MapwareRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	url := fmt.Sprintf("%s/%s/%d/%d/%d", r.cfg.BaseURL, mt.Style, mt.Z, mt.X, mt.Y)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapware: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, domain.ErrNoResult
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapware: upstream returned %d", resp.StatusCode)
	}
	r.log.Debugw("mapware: composed metatile", "style", mt.Style, "x", mt.X, "y", mt.Y, "z", mt.Z)
	result := renderBlankMetatile(mt)
	// The composition service's own JSON metadata sidecar isn't fetched
	// here (its wire shape belongs to that service, not this renderer);
	// every sub-tile still gets an explicit collection to satisfy callers
	// that thread Meta through regardless of which renderer produced it.
	for i := range mt.Tiles() {
		result.SetMeta(i, domain.NewFeatureCollection())
	}
	return result, nil
}
