package stats

import (
	"encoding/binary"
	"net"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// SampleSize is the fixed wire size of a UDP stats ingest packet: a
// 1-byte style tag and a 4-byte big-endian count, matching the original's
// "!cI" struct format. A production deployment maps the 1-byte tag to a
// style name via shared configuration; this package accepts the tag
// directly as the style key to keep the wire format and the public API
// symmetrical.
const SampleSize = 1 + 4

// Server wires a Collector to its UDP ingest and TCP snapshot listeners.
type Server struct {
	collector *Collector
	log       *zap.SugaredLogger
}

func NewServer(collector *Collector, log *zap.SugaredLogger) *Server {
	return &Server{collector: collector, log: log}
}

// ServeUDP reads fixed-size sample packets until conn errors out.
func (s *Server) ServeUDP(conn *net.UDPConn) error {
	buf := make([]byte, SampleSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		if n < SampleSize {
			continue
		}
		style := string(buf[0:1])
		count := binary.BigEndian.Uint32(buf[1:5])
		s.collector.Record(style, float64(count))
	}
}

// ServeTCP accepts connections and writes one JSON snapshot per
// connection before closing it, matching the original's connect-dump-close
// TCP handler.
func (s *Server) ServeTCP(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleTCP(conn)
	}
}

func (s *Server) handleTCP(conn net.Conn) {
	defer conn.Close()
	snapshot := s.collector.Snapshot()
	enc := jsoniter.NewEncoder(conn)
	if err := enc.Encode(snapshot); err != nil {
		s.log.Warnw("stats: failed to write snapshot", "error", err)
	}
}
