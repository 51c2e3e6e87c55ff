package renderer

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/transcode"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AerialConfig configures the aerial imagery renderer, which fans out
// requests for constituent sub-tiles from an upstream imagery source and
// pastes them into the metatile canvas. Grounded on renderer/aerial.py.
type AerialConfig struct {
	SourceURLTemplate string // "%d/%d/%d.jpg" style template for z/x/y
	Timeout           time.Duration
}

type AerialRenderer struct {
	cfg    AerialConfig
	log    *zap.SugaredLogger
	client *http.Client
	group  singleflight.Group
}

func NewAerialRenderer(cfg AerialConfig, log *zap.SugaredLogger) *AerialRenderer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AerialRenderer{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Process fetches each sub-tile of the metatile from the upstream imagery
// source one after another, not in parallel (each fetch is deduplicated
// per tile key via singleflight, since neighboring metatiles can race on
// the same upstream sub-tile), pastes them onto a single canvas and slices
// the canvas back into per-tile JPEGs.
func (r *AerialRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	tiles := mt.Tiles()
	canvas := image.NewRGBA(image.Rect(0, 0, domain.MetaTileSize*256, domain.MetaTileSize*256))

	for i, t := range tiles {
		key := fmt.Sprintf("%s/%d/%d/%d", t.Style, t.Z, t.X, t.Y)
		v, err, _ := r.group.Do(key, func() (interface{}, error) {
			return r.fetchTile(ctx, t)
		})
		if err != nil {
			return nil, fmt.Errorf("aerial: sub-tile fetch failed for %+v: %w", t, err)
		}
		img := v.(image.Image)
		dx := i % domain.MetaTileSize
		dy := i / domain.MetaTileSize
		offset := image.Pt(dx*256, dy*256)
		canvas = imaging.Paste(canvas, img, offset)
	}

	result := domain.NewRenderResult(mt)
	for i := range tiles {
		dx := i % domain.MetaTileSize
		dy := i / domain.MetaTileSize
		rect := image.Rect(dx*256, dy*256, dx*256+256, dy*256+256)
		sub := canvas.SubImage(rect)
		data, err := transcode.Encode(sub, domain.FormatJPEG)
		if err != nil {
			return nil, fmt.Errorf("aerial: encoding sub-tile %d: %w", i, err)
		}
		result.Set(domain.FormatJPEG, i, data)
	}
	return result, nil
}

func (r *AerialRenderer) fetchTile(ctx context.Context, t domain.Tile) (image.Image, error) {
	url := fmt.Sprintf(r.cfg.SourceURLTemplate, t.Z, t.X, t.Y)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream imagery returned %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return transcode.Resize(img), nil
}
