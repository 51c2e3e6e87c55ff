// Package worker implements the render worker loop: fetch a job, validate
// it, resolve the renderer for its style, check whether the result already
// exists, render, transcode, pack into a metatile container, store it, and
// ack the broker. Grounded on the original worker.py.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artemp/render-stack/internal/broker"
	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/metrics"
	"github.com/artemp/render-stack/internal/renderer"
	"github.com/artemp/render-stack/internal/transcode"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// GCInterval matches worker.py's "collect garbage every 10 jobs" cadence.
const GCInterval = 10

// AckRetries bounds the deadlock-retry loop when notifying the broker of a
// completed job: the original's notify() retries a fixed number of times
// before giving up and letting the job be picked up again by another
// worker.
const AckRetries = 3

// StorageClient is the subset of storage.Client the worker needs to
// persist finished renders and to check for an already-stored result before
// re-rendering.
type StorageClient interface {
	Exists(ctx context.Context, mt domain.MetaTile) (bool, error)
	Fetch(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error)
	Store(ctx context.Context, result *domain.RenderResult) error
}

// RendererResolver returns the renderer tree for a style, looked up per job;
// renderer.Registry builds a style's tree on its first lookup and caches it.
type RendererResolver interface {
	Resolve(style string) (renderer.Renderer, error)
}

// Config bundles the worker's dependencies and tunables.
type Config struct {
	ID              string
	Broker          broker.Broker
	Resolver        RendererResolver
	Storage         StorageClient
	Metrics         *metrics.Worker
	Log             *zap.SugaredLogger
	MemoryLimit     uint64
	MetaCols        int
	MetaRows        int
}

// Worker runs the single-threaded cooperative job loop for one process.
type Worker struct {
	cfg       Config
	jobsSince int
}

// New constructs a Worker, generating an id via gofrs/uuid when none is
// supplied (replacing the original's uuid.uuid4() call).
func New(cfg Config) (*Worker, error) {
	if cfg.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("worker: generating id: %w", err)
		}
		cfg.ID = id.String()
	}
	if cfg.MetaCols == 0 {
		cfg.MetaCols = domain.MetaTileSize
	}
	if cfg.MetaRows == 0 {
		cfg.MetaRows = domain.MetaTileSize
	}
	return &Worker{cfg: cfg}, nil
}

// Run processes jobs until ctx is canceled or the memory watchdog trips.
func (w *Worker) Run(ctx context.Context) error {
	w.cfg.Log.Infow("worker: starting", "id", w.cfg.ID)
	for {
		select {
		case <-ctx.Done():
			w.cfg.Log.Infow("worker: shutting down", "id", w.cfg.ID)
			return nil
		default:
		}

		if MemoryLimitExceeded(w.cfg.MemoryLimit) {
			w.cfg.Log.Warnw("worker: memory limit exceeded, exiting for supervisor restart", "id", w.cfg.ID)
			return nil
		}

		job, err := w.cfg.Broker.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.cfg.Log.Errorw("worker: fetch failed", "error", err)
			continue
		}
		if job == nil {
			continue
		}

		jobErr := w.processJob(ctx, job)
		w.ackWithRetry(ctx, job, jobErr)

		w.jobsSince++
		if w.jobsSince >= GCInterval {
			ForceGC()
			w.jobsSince = 0
		}
	}
}

// processJob runs one job through fetch(done)->validate->resolve->
// render->transcode->pack->store, returning the terminal error if any.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) error {
	if job.Status == domain.StatusIgnore {
		w.cfg.Log.Debugw("worker: ignoring job", "id", job.ID)
		return nil
	}

	if err := job.Validate(w.cfg.MetaCols, w.cfg.MetaRows); err != nil {
		w.cfg.Metrics.JobErrors.WithLabelValues("validate").Inc()
		return err
	}

	mt := domain.MetaTile{Style: job.Style, X: job.X, Y: job.Y, Z: job.Z}

	// Dirty and bulk-render jobs exist specifically to force a re-render, so
	// they skip the cache-hit check entirely. Everything else gets a
	// storage lookup first: a hit sets the job's Data/LastModified from the
	// stored blob and marks it Ignore rather than invoking the renderer, the
	// same short-circuit renderer.StorageRenderer applies at the combinator
	// level, applied here so a cache hit never even resolves a renderer.
	if job.Status != domain.StatusDirty && job.Status != domain.StatusRenderBulk && w.cfg.Storage != nil {
		if exists, err := w.cfg.Storage.Exists(ctx, mt); err == nil && exists {
			cached, err := w.cfg.Storage.Fetch(ctx, mt)
			if err == nil {
				if data, ok := firstFormatImages(cached); ok {
					for _, blob := range data {
						job.Data = blob
						break
					}
				}
				job.Status = domain.StatusIgnore
				job.LastModified = cached.LastModified
				w.cfg.Metrics.JobsProcessed.WithLabelValues(domain.StatusIgnore.String()).Inc()
				return nil
			}
			w.cfg.Log.Warnw("worker: cache hit but fetch failed, rendering", "style", job.Style, "error", err)
		}
	}

	rdr, err := w.cfg.Resolver.Resolve(job.Style)
	if err != nil {
		w.cfg.Metrics.JobErrors.WithLabelValues("resolve").Inc()
		return fmt.Errorf("worker: resolving renderer for %q: %w", job.Style, err)
	}

	renderStart := time.Now()
	result, err := rdr.Process(ctx, mt)
	w.cfg.Metrics.RenderDuration.Observe(time.Since(renderStart).Seconds())
	if errors.Is(err, domain.ErrNoResult) {
		w.cfg.Log.Debugw("worker: renderer produced no result", "style", job.Style, "x", job.X, "y", job.Y, "z", job.Z)
		return nil
	}
	if err != nil {
		w.cfg.Metrics.JobErrors.WithLabelValues("render").Inc()
		return fmt.Errorf("worker: render failed: %w", err)
	}

	transcodeStart := time.Now()
	if err := w.transcodeMissingFormats(result, job.Format); err != nil {
		w.cfg.Metrics.JobErrors.WithLabelValues("transcode").Inc()
		return fmt.Errorf("worker: transcode failed: %w", err)
	}
	w.cfg.Metrics.TranscodeDuration.Observe(time.Since(transcodeStart).Seconds())

	if w.cfg.Storage != nil {
		if err := w.cfg.Storage.Store(ctx, result); err != nil {
			w.cfg.Metrics.JobErrors.WithLabelValues("store").Inc()
			return fmt.Errorf("worker: store failed: %w", err)
		}
	}

	job.LastModified = time.Now().Unix()
	w.cfg.Metrics.JobsProcessed.WithLabelValues(domain.StatusDone.String()).Inc()
	return nil
}

// transcodeMissingFormats ensures every format bit requested by the job is
// present in result, decoding an already-produced format and re-encoding
// it for any that are missing. Renderers are expected to produce at least
// one format; this lets a renderer emit only PNG while still satisfying a
// job that also requested JPEG/GIF.
func (w *Worker) transcodeMissingFormats(result *domain.RenderResult, requested domain.Format) error {
	for _, format := range requested.Bits() {
		if _, ok := result.Images[format]; ok {
			continue
		}
		if format == domain.FormatJSON {
			if err := w.encodeMetaFormat(result); err != nil {
				return err
			}
			continue
		}
		source, ok := firstFormatImages(result)
		if !ok {
			continue
		}
		for index, data := range source {
			img, _, err := decodeImage(data)
			if err != nil {
				return err
			}
			encoded, err := transcode.Encode(img, format)
			if err != nil {
				return err
			}
			result.Set(format, index, encoded)
		}
	}
	return nil
}

// encodeMetaFormat serializes each sub-tile's FeatureCollection as its
// FormatJSON image, so the metatile codec packs interactive metadata
// alongside pixel formats rather than needing a separate wire shape.
func (w *Worker) encodeMetaFormat(result *domain.RenderResult) error {
	for i := range result.Meta {
		fc, ok := result.GetMeta(i)
		if !ok || fc == nil {
			continue
		}
		data, err := json.Marshal(fc)
		if err != nil {
			return fmt.Errorf("worker: encoding metadata for sub-tile %d: %w", i, err)
		}
		result.Set(domain.FormatJSON, i, data)
	}
	return nil
}

func firstFormatImages(result *domain.RenderResult) (map[int][]byte, bool) {
	for _, format := range []domain.Format{domain.FormatPNG, domain.FormatJPEG, domain.FormatGIF} {
		if m, ok := result.Images[format]; ok {
			return m, true
		}
	}
	return nil, false
}

// ackWithRetry notifies the broker of the job outcome, retrying a bounded
// number of times on transient ack failures the way the original's
// notify() tolerates the broker being momentarily deadlocked.
func (w *Worker) ackWithRetry(ctx context.Context, job *domain.Job, jobErr error) {
	var err error
	for attempt := 0; attempt < AckRetries; attempt++ {
		err = w.cfg.Broker.Ack(ctx, job, jobErr)
		if err == nil {
			return
		}
		w.cfg.Log.Warnw("worker: ack failed, retrying", "job", job.ID, "attempt", attempt, "error", err)
	}
	w.cfg.Log.Errorw("worker: ack failed after retries, job will be re-dispatched", "job", job.ID, "error", err)
}
