package net

import (
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn implements net.Conn around a websocket connection. Writes become
// binary messages; Read drains the current message before pulling the next
// one, so the byte-stream framing of NetworkTransport works unchanged.
type WSConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

// NewWSConn instantiates a WSConn from a websocket connection
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{
		ws: ws,
	}
}

// Read implements the Conn Read method.
func (c *WSConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, reader, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = reader
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write implements the Conn Write method.
func (c *WSConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements the Conn Close method.
func (c *WSConn) Close() error {
	return c.ws.Close()
}

// LocalAddr implements the Conn LocalAddr method.
func (c *WSConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

// RemoteAddr implements the Conn RemoteAddr method.
func (c *WSConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// SetDeadline implements the Conn SetDeadline method.
func (c *WSConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// SetReadDeadline implements the Conn SetReadDeadline method.
func (c *WSConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// SetWriteDeadline implements the Conn SetWriteDeadline method.
func (c *WSConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
