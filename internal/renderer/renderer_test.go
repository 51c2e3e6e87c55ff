package renderer

import (
	"context"
	"testing"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVectorConfigValidation(t *testing.T) {
	cfg := VectorConfig{StyleFile: "base.xml", MaskStyle: "mask.xml"}
	require.Error(t, cfg.Validate(), "mask_style without default_style must be rejected")

	cfg.DefaultStyle = "default.xml"
	require.NoError(t, cfg.Validate())
}

func TestFactoryBuildsVectorRenderer(t *testing.T) {
	f := NewFactory(zap.NewNop().Sugar())
	r, err := f.Build(Config{Name: "base", Vector: &VectorConfig{StyleFile: "base.xml"}})
	require.NoError(t, err)

	result, err := r.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	require.NoError(t, err)
	_, ok := result.Get(domain.FormatPNG, 0)
	require.True(t, ok)
}

type nilStorageClient struct{}

func (nilStorageClient) Exists(ctx context.Context, mt domain.MetaTile) (bool, error) {
	return false, nil
}
func (nilStorageClient) Fetch(ctx context.Context, mt domain.MetaTile) (*domain.RenderResult, error) {
	return nil, domain.ErrNotFound
}
func (nilStorageClient) Store(ctx context.Context, result *domain.RenderResult) error { return nil }

func TestStorageRendererWithNoInnerIsReadOnly(t *testing.T) {
	f := NewFactory(zap.NewNop().Sugar())
	r, err := f.Build(Config{
		Name:    "read-only",
		Storage: &StorageConfig{Client: nilStorageClient{}},
	})
	require.NoError(t, err)

	_, err = r.Process(context.Background(), domain.MetaTile{Style: "read-only", X: 0, Y: 0, Z: 2})
	require.ErrorIs(t, err, domain.ErrNoResult, "a read-only style with no inner renderer must not render on a cache miss")
}

func TestCompositeRendererOverlaysLayers(t *testing.T) {
	f := NewFactory(zap.NewNop().Sugar())
	r, err := f.Build(Config{
		Name: "combined",
		Composite: &CompositeConfig{
			Layers: []Config{
				{Name: "base", Vector: &VectorConfig{StyleFile: "base.xml"}},
				{Name: "labels", Vector: &VectorConfig{StyleFile: "labels.xml"}},
			},
		},
	})
	require.NoError(t, err)

	result, err := r.Process(context.Background(), domain.MetaTile{Style: "combined", X: 0, Y: 0, Z: 2})
	require.NoError(t, err)
	_, ok := result.Get(domain.FormatPNG, 0)
	require.True(t, ok)
}
