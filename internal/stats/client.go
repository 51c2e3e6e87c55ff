package stats

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
)

// Client sends sample packets to the stats collector's UDP listener,
// matching mqStats.py's client-side protocol and its mutex-guarded
// reconnect-on-timeout behavior.
type Client struct {
	mu   sync.Mutex
	addr string
	conn net.Conn
}

func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) ensureConn() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.Dial("udp", c.addr)
	if err != nil {
		return fmt.Errorf("stats client: dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Record sends one sample for the given single-byte style tag.
func (c *Client) Record(styleTag byte, count uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConn(); err != nil {
		return err
	}
	buf := make([]byte, SampleSize)
	buf[0] = styleTag
	binary.BigEndian.PutUint32(buf[1:5], count)
	if _, err := c.conn.Write(buf); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("stats client: write: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
