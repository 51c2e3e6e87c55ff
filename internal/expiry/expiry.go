// Package expiry implements the expiry service: one expiry flag per tile
// index and style, stored one byte per index (not bit-packed) in a
// memory-mapped file that only ever grows, flushed to disk every few
// seconds. Grounded on storage/node/storage_node_pylons/
// expiry_info/server.py.
package expiry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FlushInterval matches the original's 5 second fsync cadence.
const FlushInterval = 5 * time.Second

// Index is a single style's mmap-backed expiry bit set. One byte per tile
// index (not a packed bit, for simplicity of random access; the on-disk
// layout still only ever grows, matching the original's never-shrinks
// file).
type Index struct {
	mu     sync.Mutex
	file   *os.File
	data   []byte
	path   string
	dirty  bool
}

// Open maps (creating if necessary) the expiry file for one style.
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("expiry: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		size = 4096
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("expiry: mmap: %w", err)
	}
	return &Index{file: f, data: data, path: path}, nil
}

// ensure grows the mapping (file + mmap) so index i is addressable,
// matching the original's grows-never-shrinks file semantics.
func (idx *Index) ensure(i int) error {
	if i < len(idx.data) {
		return nil
	}
	newSize := len(idx.data)
	if newSize == 0 {
		newSize = 4096
	}
	for i >= newSize {
		newSize *= 2
	}
	if err := unix.Munmap(idx.data); err != nil {
		return err
	}
	if err := idx.file.Truncate(int64(newSize)); err != nil {
		return err
	}
	data, err := unix.Mmap(int(idx.file.Fd()), 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	idx.data = data
	return nil
}

// Set marks (or clears) the expiry bit for index i with the given value,
// matching InfoUDP's "set value at index" command.
func (idx *Index) Set(i int, value int8) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.ensure(i); err != nil {
		return err
	}
	idx.data[i] = byte(value)
	idx.dirty = true
	return nil
}

// Get reads the expiry value for index i, returning 0 if never set.
func (idx *Index) Get(i int) (int8, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if i < 0 || i >= len(idx.data) {
		return 0, nil
	}
	return int8(idx.data[i]), nil
}

// Flush syncs the mapping to disk if it has been modified since the last
// flush, called on a timer by the service loop every FlushInterval.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	if err := unix.Msync(idx.data, unix.MS_SYNC); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	unix.Munmap(idx.data)
	return idx.file.Close()
}
