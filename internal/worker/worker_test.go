package worker

import (
	"context"
	"testing"
	"time"

	"github.com/artemp/render-stack/internal/broker"
	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/metrics"
	"github.com/artemp/render-stack/internal/renderer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver struct {
	r renderer.Renderer
}

func (s stubResolver) Resolve(style string) (renderer.Renderer, error) {
	return s.r, nil
}

type stubRenderer struct{}

func (stubRenderer) Process(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	result := domain.NewRenderResult(mt)
	result.Set(domain.FormatPNG, 0, []byte{0x89, 'P', 'N', 'G'})
	return result, nil
}

type stubStorage struct {
	stored []*domain.RenderResult
	cached *domain.RenderResult
}

func (s *stubStorage) Exists(ctx context.Context, mt domain.MetaTile) (bool, error) {
	return s.cached != nil, nil
}

func (s *stubStorage) Fetch(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	if s.cached == nil {
		return nil, domain.ErrNotFound
	}
	return s.cached, nil
}

func (s *stubStorage) Store(ctx context.Context, result *domain.RenderResult) error {
	s.stored = append(s.stored, result)
	return nil
}

func TestWorkerProcessesSingleJob(t *testing.T) {
	b := broker.NewMemoryBroker(1)
	storage := &stubStorage{}
	log := zap.NewNop().Sugar()

	w, err := New(Config{
		Broker:   b,
		Resolver: stubResolver{r: stubRenderer{}},
		Storage:  storage,
		Metrics:  metrics.NewWorkerMetrics(),
		Log:      log,
	})
	require.NoError(t, err)

	b.Push(&domain.Job{ID: "job-1", Style: "base", X: 0, Y: 0, Z: 4, Format: domain.FormatPNG})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, w.Run(ctx))

	require.Len(t, storage.stored, 1)
	require.Len(t, b.Acks, 1)
	require.NoError(t, b.Acks[0].Err)
}

func TestWorkerSkipsIgnoredJob(t *testing.T) {
	b := broker.NewMemoryBroker(1)
	storage := &stubStorage{}
	log := zap.NewNop().Sugar()

	w, err := New(Config{
		Broker:   b,
		Resolver: stubResolver{r: stubRenderer{}},
		Storage:  storage,
		Metrics:  metrics.NewWorkerMetrics(),
		Log:      log,
	})
	require.NoError(t, err)

	b.Push(&domain.Job{ID: "job-ignore", Style: "base", Status: domain.StatusIgnore})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, w.Run(ctx))
	require.Empty(t, storage.stored)
}

func TestWorkerSkipsRenderOnCacheHit(t *testing.T) {
	b := broker.NewMemoryBroker(1)
	cached := domain.NewRenderResult(domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 4})
	cached.Set(domain.FormatPNG, 0, []byte{0x01, 0x02})
	cached.LastModified = 12345
	storage := &stubStorage{cached: cached}
	log := zap.NewNop().Sugar()

	w, err := New(Config{
		Broker:   b,
		Resolver: stubResolver{r: stubRenderer{}},
		Storage:  storage,
		Metrics:  metrics.NewWorkerMetrics(),
		Log:      log,
	})
	require.NoError(t, err)

	job := &domain.Job{ID: "job-cached", Style: "base", X: 0, Y: 0, Z: 4, Format: domain.FormatPNG}
	b.Push(job)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, w.Run(ctx))

	require.Empty(t, storage.stored, "a cache hit must not re-render or re-store")
	require.Equal(t, domain.StatusIgnore, job.Status)
	require.Equal(t, []byte{0x01, 0x02}, job.Data)
	require.EqualValues(t, 12345, job.LastModified)
}

func TestWorkerRendersDirtyJobEvenOnCacheHit(t *testing.T) {
	b := broker.NewMemoryBroker(1)
	cached := domain.NewRenderResult(domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 4})
	cached.Set(domain.FormatPNG, 0, []byte{0x01, 0x02})
	storage := &stubStorage{cached: cached}
	log := zap.NewNop().Sugar()

	w, err := New(Config{
		Broker:   b,
		Resolver: stubResolver{r: stubRenderer{}},
		Storage:  storage,
		Metrics:  metrics.NewWorkerMetrics(),
		Log:      log,
	})
	require.NoError(t, err)

	b.Push(&domain.Job{ID: "job-dirty", Style: "base", X: 0, Y: 0, Z: 4, Format: domain.FormatPNG, Status: domain.StatusDirty})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, w.Run(ctx))

	require.Len(t, storage.stored, 1, "a dirty job re-renders and stores despite an existing cached entry")
}
