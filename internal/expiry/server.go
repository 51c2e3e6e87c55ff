package expiry

import (
	"encoding/binary"
	"net"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RequestSize is the fixed wire size of an expiry UDP request: an 8-byte
// big-endian index, a 1-byte signed value, a 1-byte command, and a
// 255-byte Pascal-style style name (first byte is the length), matching
// the original's "!Qbc255p" struct format.
const RequestSize = 8 + 1 + 1 + 255

const (
	CmdSet byte = 's'
	CmdGet byte = 'g'
)

type request struct {
	index int
	value int8
	cmd   byte
	style string
}

func parseRequest(b []byte) (request, bool) {
	if len(b) < RequestSize {
		return request{}, false
	}
	index := binary.BigEndian.Uint64(b[0:8])
	value := int8(b[8])
	cmd := b[9]
	nameLen := int(b[10])
	if nameLen > 254 {
		nameLen = 254
	}
	style := string(b[11 : 11+nameLen])
	return request{index: int(index), value: value, cmd: cmd, style: style}, true
}

// Service is the expiry UDP server: one Index per style, lazily opened
// under root, flushed to disk on FlushInterval.
type Service struct {
	root string
	log  *zap.SugaredLogger

	mu      sync.Mutex
	indexes map[string]*Index
}

func NewService(root string, log *zap.SugaredLogger) *Service {
	return &Service{root: root, log: log, indexes: make(map[string]*Index)}
}

func (s *Service) indexFor(style string) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[style]; ok {
		return idx, nil
	}
	idx, err := Open(filepath.Join(s.root, style+".expiry"))
	if err != nil {
		return nil, err
	}
	s.indexes[style] = idx
	return idx, nil
}

// Serve listens on the UDP address until conn is closed, handling one
// packet at a time (matching the original's single-threaded event loop
// per service instance).
func (s *Service) Serve(conn *net.UDPConn) error {
	go s.flushLoop()
	buf := make([]byte, RequestSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		if n < RequestSize {
			continue
		}
		req, ok := parseRequest(buf[:n])
		if !ok {
			continue
		}
		s.handle(req)
	}
}

func (s *Service) handle(req request) {
	idx, err := s.indexFor(req.style)
	if err != nil {
		s.log.Errorw("expiry: opening index", "style", req.style, "error", err)
		return
	}
	switch req.cmd {
	case CmdSet:
		if err := idx.Set(req.index, req.value); err != nil {
			s.log.Errorw("expiry: set failed", "style", req.style, "index", req.index, "error", err)
		}
	case CmdGet:
		// Get-by-UDP has no reply channel in this protocol (matching the
		// original fire-and-forget design); TCP/HTTP callers use IsExpired.
	}
}

func (s *Service) flushLoop() {
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		indexes := make([]*Index, 0, len(s.indexes))
		for _, idx := range s.indexes {
			indexes = append(indexes, idx)
		}
		s.mu.Unlock()
		for _, idx := range indexes {
			if err := idx.Flush(); err != nil {
				s.log.Warnw("expiry: flush failed", "error", err)
			}
		}
	}
}

// IsExpired implements storage.ExpiryChecker: non-zero value at the tile's
// Morton-coded index means expired.
func (s *Service) IsExpired(style string, x, y, z int) (bool, error) {
	idx, err := s.indexFor(style)
	if err != nil {
		return false, err
	}
	code := tileIndex(x, y, z)
	v, err := idx.Get(code)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// SetExpired implements storage.ExpiryChecker: marks the tile's index entry
// expired directly, the same effect a CmdSet UDP request has, used for
// X-Also-Expire's cross-style propagation on a storage write.
func (s *Service) SetExpired(style string, x, y, z int) error {
	idx, err := s.indexFor(style)
	if err != nil {
		return err
	}
	return idx.Set(tileIndex(x, y, z), 1)
}
