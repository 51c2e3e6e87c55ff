package storage

import (
	"strings"
	"testing"
)

func TestTilePathGrouping(t *testing.T) {
	path := TilePath("/root", "v1", "base", 1234567, 2345678, 10, "png")
	if !strings.Contains(path, "/v1/base/10/001/234/567/") {
		t.Fatalf("expected version/style/z and x decimal grouping in path, got %s", path)
	}
	if !strings.HasSuffix(path, "/002/345/678.png") {
		t.Fatalf("expected y decimal grouping suffix, got %s", path)
	}
}

func TestTilePathNoDirectoryExceedsThousandEntries(t *testing.T) {
	seen := make(map[string]bool)
	for y := 0; y < 2000; y++ {
		path := TilePath("/root", "v1", "base", 7, y, 12, "png")
		dir := path[:strings.LastIndex(path, "/")]
		seen[dir] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected y to split across multiple directories, got %d", len(seen))
	}
}
