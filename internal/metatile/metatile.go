// Package metatile implements the binary container format used to store a
// metatile's 64 (8x8) sub-tiles in one file: a header, a fixed-size offset
// table, and a payload region. Ported directly from metatile.py's
// metatile_builder / metatile_reader, with the on-wire field list and
// little-endian byte order matched exactly so a non-Go reader can parse it.
package metatile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/artemp/render-stack/internal/domain"
)

const (
	Magic = "META"
	// NumTiles is the fixed sub-tile count a container can hold: METATILE^2.
	NumTiles = domain.MetaTileSize * domain.MetaTileSize
	// headerSize = magic(4) + n_tiles(4) + tile_x(4) + tile_y(4) + tile_z(4) + format_code(4)
	headerSize = 4 + 4 + 4 + 4 + 4 + 4
	entrySize  = 4 + 4 // offset(4) + size(4)
)

// Header precedes the offset table in every encoded metatile.
type Header struct {
	Format  domain.Format
	X, Y, Z int
}

// Encode packs the given tile data (indexed by row-major offset within the
// metatile, 0..63) into the binary container format for a single format.
// All multi-byte fields are little-endian, matching META_MAGIC's
// documented "written LSB first" byte order.
func Encode(w io.Writer, h Header, tiles map[int][]byte) error {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	writeI32(&buf, NumTiles)
	writeI32(&buf, int32(h.X))
	writeI32(&buf, int32(h.Y))
	writeI32(&buf, int32(h.Z))
	writeI32(&buf, int32(h.Format))

	offsets := make([][2]int32, NumTiles)
	payload := new(bytes.Buffer)
	cursor := int32(headerSize + NumTiles*entrySize)
	for i := 0; i < NumTiles; i++ {
		data := tiles[i]
		offsets[i] = [2]int32{cursor, int32(len(data))}
		payload.Write(data)
		cursor += int32(len(data))
	}
	for _, off := range offsets {
		writeI32(&buf, off[0])
		writeI32(&buf, off[1])
	}
	buf.Write(payload.Bytes())
	_, err := w.Write(buf.Bytes())
	return err
}

// Entry describes one sub-tile's location within the payload.
type Entry struct {
	Offset, Size int32
}

// Decoded is a fully parsed metatile container: header plus offset table.
// Tile bytes are fetched lazily via Tile() against the original backing
// buffer, so a truncated file still yields whatever prefix of tiles it
// actually contains.
type Decoded struct {
	Header  Header
	Entries []Entry
	data    []byte
}

// Decode parses a metatile container. If the magic is wrong it returns an
// error immediately (mirrors the reader's "bad magic -> stop" behavior). If
// the offset table itself is truncated, Decode returns as many entries as
// were fully readable and no error — callers can get whichever sub-tiles
// were actually recoverable.
func Decode(data []byte) (*Decoded, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("metatile: truncated header (%d bytes)", len(data))
	}
	if string(data[0:4]) != Magic {
		return nil, fmt.Errorf("metatile: bad magic %q", data[0:4])
	}
	nTiles := int(readI32(data[4:8]))
	if nTiles <= 0 || nTiles > NumTiles {
		nTiles = NumTiles
	}
	h := Header{
		X:      int(readI32(data[8:12])),
		Y:      int(readI32(data[12:16])),
		Z:      int(readI32(data[16:20])),
		Format: domain.Format(readI32(data[20:24])),
	}
	entries := make([]Entry, 0, nTiles)
	pos := headerSize
	for i := 0; i < nTiles; i++ {
		if pos+entrySize > len(data) {
			break
		}
		off := readI32(data[pos : pos+4])
		sz := readI32(data[pos+4 : pos+8])
		entries = append(entries, Entry{Offset: off, Size: sz})
		pos += entrySize
	}
	return &Decoded{Header: h, Entries: entries, data: data}, nil
}

// Tile returns the raw bytes for sub-tile index i (0..63), or false if i is
// out of range of what was actually parsed or its byte range is truncated.
func (d *Decoded) Tile(i int) ([]byte, bool) {
	if i < 0 || i >= len(d.Entries) {
		return nil, false
	}
	e := d.Entries[i]
	if e.Size == 0 {
		return nil, false
	}
	start, end := int(e.Offset), int(e.Offset+e.Size)
	if start < 0 || end > len(d.data) || start > end {
		return nil, false
	}
	return d.data[start:end], true
}

func writeI32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func readI32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}
