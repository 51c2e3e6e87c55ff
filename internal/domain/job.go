package domain

import (
	"errors"
	"fmt"
)

// Status mirrors the original render job lifecycle states. The historical
// implementation spelled the field "satus" in one code path and left it
// unset on a stray branch; that bug is treated here as the job meaning
// StatusIgnore, and no misspelled twin field exists in this struct.
type Status int

const (
	StatusRender Status = iota
	StatusRenderBulk
	StatusDirty
	StatusDone
	StatusIgnore
)

func (s Status) String() string {
	switch s {
	case StatusRender:
		return "render"
	case StatusRenderBulk:
		return "render_bulk"
	case StatusDirty:
		return "dirty"
	case StatusDone:
		return "done"
	case StatusIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

var (
	ErrJobInvalid  = errors.New("job: invalid coordinates")
	ErrNoResult    = errors.New("renderer: no result for tile")
	ErrNoRenderer  = errors.New("renderer: no renderer configured for style")
	ErrTileExpired = errors.New("storage: tile expired")
	ErrNotFound    = errors.New("storage: tile not found")
)

// Job is a single unit of render work: one metatile, identified by the
// style it belongs to and its metatile-anchored x/y/z coordinates, along
// with the set of output formats the worker should produce.
type Job struct {
	ID       string
	Style    string
	X, Y, Z  int
	Format   Format
	Status   Status
	Priority int
	// Data carries stored tile bytes back to the broker on a cache hit: the
	// first PNG, JPEG or GIF image the storage client's Fetch returned. A
	// fresh render does not set it.
	Data []byte
	// LastModified is a unix timestamp, set from the cached result's mtime
	// on a cache hit or to the render time after a fresh render.
	LastModified int64
}

// Validate enforces the invariant that a metatile's anchor coordinates lie
// on the metatile grid and within the valid range for the zoom level, the
// same check the original implementation calls check_xyz.
func (j Job) Validate(metaCols, metaRows int) error {
	if j.Z < 0 {
		return fmt.Errorf("%w: negative zoom %d", ErrJobInvalid, j.Z)
	}
	limit := 1 << uint(j.Z)
	if j.X < 0 || j.Y < 0 || j.X >= limit || j.Y >= limit {
		return fmt.Errorf("%w: x=%d y=%d out of range for z=%d", ErrJobInvalid, j.X, j.Y, j.Z)
	}
	if metaCols > 0 && j.X%metaCols != 0 {
		return fmt.Errorf("%w: x=%d is not a metatile anchor (meta_cols=%d)", ErrJobInvalid, j.X, metaCols)
	}
	if metaRows > 0 && j.Y%metaRows != 0 {
		return fmt.Errorf("%w: y=%d is not a metatile anchor (meta_rows=%d)", ErrJobInvalid, j.Y, metaRows)
	}
	return nil
}
