package metatile

import (
	"bytes"
	"testing"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Format: domain.FormatPNG, X: 8, Y: 16, Z: 5}
	tiles := map[int][]byte{
		0:  []byte("tile-0"),
		5:  []byte("tile-5-longer-payload"),
		63: []byte("last"),
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, h, tiles))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, h, decoded.Header)

	for i, want := range tiles {
		got, ok := decoded.Tile(i)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := decoded.Tile(1)
	require.False(t, ok)
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte("NOPE00000000000000000000"))
	require.Error(t, err)
}

func TestDecodeTruncatedOffsetTable(t *testing.T) {
	h := Header{Format: domain.FormatPNG, X: 0, Y: 0, Z: 0}
	tiles := map[int][]byte{0: []byte("a"), 1: []byte("b")}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, h, tiles))

	truncated := buf.Bytes()[:headerSize+entrySize] // only room for one full entry
	decoded, err := Decode(truncated)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
}
