package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/metatile"
)

// Client is the worker-side and copytiles-side HTTP client for a storage
// node, satisfying renderer.StorageClient.
type Client struct {
	baseURL string
	version string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, version: DefaultVersion, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) url(mt domain.MetaTile, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%d/%d/%d.%s", c.baseURL, c.version, mt.Style, mt.Z, mt.X, mt.Y, ext)
}

// Exists reports whether the node holds a non-expired tile: a 404 or an
// epoch Last-Modified (the expiry service's way of flagging a stale entry
// without deleting it) both count as "not there" for caching purposes.
func (c *Client) Exists(ctx context.Context, mt domain.MetaTile) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(mt, "png"), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	return !isEpoch(resp.Header.Get("Last-Modified")), nil
}

func (c *Client) Fetch(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(mt, "png"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage client: fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	result := domain.NewRenderResult(mt)
	result.Set(domain.FormatPNG, 0, data)
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			result.LastModified = t.Unix()
		}
	}
	return result, nil
}

func isEpoch(lastMod string) bool {
	if lastMod == "" {
		return false
	}
	t, err := http.ParseTime(lastMod)
	if err != nil {
		return false
	}
	return t.Unix() == 0
}

// Store uploads a render result as a packed metatile container per format.
func (c *Client) Store(ctx context.Context, result *domain.RenderResult) error {
	for format, tiles := range result.Images {
		var buf bytes.Buffer
		h := metatile.Header{Format: format, X: result.MetaTile.X, Y: result.MetaTile.Y, Z: result.MetaTile.Z}
		if err := metatile.Encode(&buf, h, tiles); err != nil {
			return fmt.Errorf("storage client: encoding metatile: %w", err)
		}
		ext := format.Extension()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(result.MetaTile, ext), &buf)
		if err != nil {
			return err
		}
		if result.LastModified != 0 {
			req.Header.Set("Last-Modified", time.Unix(result.LastModified, 0).UTC().Format(http.TimeFormat))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("storage client: store: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("storage client: store returned %d", resp.StatusCode)
		}
	}
	return nil
}

// CopyMetatile streams a stored metatile's raw bytes from this client to
// another storage node without decoding or re-encoding it -- the behavior
// cmd/copytiles relies on, per DESIGN.md's Open Question #1 resolution.
func (c *Client) CopyMetatile(ctx context.Context, dst *Client, style string, x, y, z int, ext string) error {
	mt := domain.MetaTile{Style: style, X: x, Y: y, Z: z}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(mt, ext), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("copytiles: source returned %d", resp.StatusCode)
	}
	lastMod := resp.Header.Get("Last-Modified")

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPost, dst.url(mt, ext), resp.Body)
	if err != nil {
		return err
	}
	if lastMod != "" {
		putReq.Header.Set("Last-Modified", lastMod)
	}
	putResp, err := dst.http.Do(putReq)
	if err != nil {
		return err
	}
	defer putResp.Body.Close()
	if putResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("copytiles: destination returned %d", putResp.StatusCode)
	}
	return nil
}
