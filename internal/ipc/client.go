package ipc

import (
	"context"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultConnectTimeout bounds how long Send waits for a listener.
	DefaultConnectTimeout = 3 * time.Second
	// DefaultWriteTimeout bounds how long Send waits on a slow listener.
	DefaultWriteTimeout = 3 * time.Second
)

// Client delivers events to a single listener.
type Client struct {
	addr           string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// NewClient creates a client for the listener at host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		addr:           net.JoinHostPort(host, strconv.Itoa(port)),
		ConnectTimeout: DefaultConnectTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// Addr returns the listener address the client sends to.
func (c *Client) Addr() string {
	return c.addr
}

// Send writes e to the listener and closes the connection without waiting
// for any reply. Failures are reported in the returned Delivery.
func (c *Client) Send(ctx context.Context, e Event) Delivery {
	d := Delivery{Addr: c.addr}

	payload, err := Encode(e)
	if err != nil {
		d.Err = err
		return d
	}

	dialer := net.Dialer{Timeout: c.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		d.Err = &ConnectError{Addr: c.addr, Err: err}
		return d
	}
	defer conn.Close()

	if c.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
			d.Err = &WriteError{Addr: c.addr, Err: err}
			return d
		}
	}
	if _, err := conn.Write(payload); err != nil {
		d.Err = &WriteError{Addr: c.addr, Err: err}
		return d
	}
	// Signal end of record so the listener never waits on us.
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			d.Err = &WriteError{Addr: c.addr, Err: err}
			return d
		}
	}
	return d
}
