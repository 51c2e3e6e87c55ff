package expiry

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
)

// Client sends expiry UDP requests, matching mqExpiry.py's client-side
// protocol, including its mutex-guarded reconnect-on-timeout pattern: a
// send failure reopens the socket before the next attempt rather than
// propagating a permanently broken connection.
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
		return fmt.Errorf("expiry client: dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Expire marks the tile at (x,y,z) within style as expired.
func (c *Client) Expire(style string, x, y, z int) error {
	return c.send(style, tileIndex(x, y, z), 1, CmdSet)
}

func (c *Client) send(style string, index int, value int8, cmd byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConn(); err != nil {
		return err
	}
	buf := make([]byte, RequestSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(index))
	buf[8] = byte(value)
	buf[9] = cmd
	name := []byte(style)
	if len(name) > 254 {
		name = name[:254]
	}
	buf[10] = byte(len(name))
	copy(buf[11:], name)

	if _, err := c.conn.Write(buf); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("expiry client: write: %w", err)
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
