package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeStyleFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestRegistryBuildsVectorStyleFromSystemField(t *testing.T) {
	dir := t.TempDir()
	writeStyleFile(t, dir, "base.json", `{"name":"base","system":"mapnik","vector":{"style_file":"base.xml"}}`)

	reg, err := LoadStyleRegistry(dir, nilStorageClient{}, zap.NewNop().Sugar())
	require.NoError(t, err)

	rdr, err := reg.Resolve("base")
	require.NoError(t, err)
	result, err := rdr.Process(context.Background(), domain.MetaTile{Style: "base", X: 0, Y: 0, Z: 2})
	require.NoError(t, err)
	_, ok := result.Get(domain.FormatPNG, 0)
	require.True(t, ok)
}

func TestRegistryRejectsStyleNotInAllowList(t *testing.T) {
	dir := t.TempDir()
	writeStyleFile(t, dir, "base.json", `{"name":"base","system":"mapnik","vector":{"style_file":"base.xml"}}`)
	writeStyleFile(t, dir, "worker.json", `{"styles":["other"]}`)

	reg, err := LoadStyleRegistry(dir, nilStorageClient{}, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = reg.Resolve("base")
	require.Error(t, err)
}

func TestRegistryWrapsReadOnlyStyleWithNoInnerRenderer(t *testing.T) {
	dir := t.TempDir()
	writeStyleFile(t, dir, "cached.json", `{"name":"cached","system":"mapnik","vector":{"style_file":"base.xml"}}`)
	writeStyleFile(t, dir, "worker.json", `{"read_only_styles":["cached"]}`)

	reg, err := LoadStyleRegistry(dir, nilStorageClient{}, zap.NewNop().Sugar())
	require.NoError(t, err)

	rdr, err := reg.Resolve("cached")
	require.NoError(t, err)
	_, err = rdr.Process(context.Background(), domain.MetaTile{Style: "cached", X: 0, Y: 0, Z: 2})
	require.ErrorIs(t, err, domain.ErrNoResult, "a read-only style must never fall through to its own vector block on a cache miss")
}

func TestRegistryResolvesCompositeLayersByName(t *testing.T) {
	dir := t.TempDir()
	writeStyleFile(t, dir, "roads.json", `{"name":"roads","system":"mapnik","vector":{"style_file":"roads.xml"}}`)
	writeStyleFile(t, dir, "labels.json", `{"name":"labels","system":"mapnik","vector":{"style_file":"labels.xml"}}`)
	writeStyleFile(t, dir, "combined.json", `{"name":"combined","system":"composite","composite":{"layers":["roads","labels"]}}`)

	reg, err := LoadStyleRegistry(dir, nilStorageClient{}, zap.NewNop().Sugar())
	require.NoError(t, err)

	rdr, err := reg.Resolve("combined")
	require.NoError(t, err)
	result, err := rdr.Process(context.Background(), domain.MetaTile{Style: "combined", X: 0, Y: 0, Z: 2})
	require.NoError(t, err)
	_, ok := result.Get(domain.FormatPNG, 0)
	require.True(t, ok)
}
