package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Connection setup is split into its lifecycle phases so each one carries
// its own explicit timeout and maps onto one ConnState.

// resolve performs hostname resolution under the configured bound. A literal
// address skips the resolver.
func (c *Client) resolve(ctx context.Context) ([]string, error) {
	host := c.profile.Server
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.profile.Timeouts.Resolve.Std())
	defer cancel()
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	return addrs, nil
}

// connect attempts a TCP connection to each resolved address in turn,
// bounded by the connect timeout per address.
func (c *Client) connect(ctx context.Context, addrs []string) (net.Conn, error) {
	port := fmt.Sprintf("%d", c.profile.Port)
	d := net.Dialer{Timeout: c.profile.Timeouts.Connect.Std()}
	var lastErr error
	for _, addr := range addrs {
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("connect %s: %w", c.profile.Addr(), lastErr)
}

// handshake wraps the socket in TLS and completes the handshake under its
// own timeout. Certificate validation failure is fatal for the attempt and
// is never downgraded to plaintext.
func (c *Client) handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	cfg := &tls.Config{
		ServerName:         c.profile.Server,
		InsecureSkipVerify: c.profile.Insecure,
	}
	tlsConn := tls.Client(conn, cfg)
	ctx, cancel := context.WithTimeout(ctx, c.profile.Timeouts.Handshake.Std())
	defer cancel()
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake %s: %w", c.profile.Addr(), err)
	}
	return tlsConn, nil
}

// writeLine sends one encoded line, CRLF included, under a write deadline.
func (c *Client) writeLine(line []byte) error {
	if c.conn == nil {
		return fmt.Errorf("write: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.profile.Timeouts.Connect.Std()))
	_, err := c.conn.Write(line)
	c.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.metrics.LineSent()
	return nil
}
