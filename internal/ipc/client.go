package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Client receives method calls from a running bridge.
type Client struct {
	socketPath string
	codec      Codec
	timeout    time.Duration
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string, codec Codec) *Client {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Client{
		socketPath: socketPath,
		codec:      codec,
		timeout:    5 * time.Second,
	}
}

// Subscribe connects and calls fn for every method call until ctx is
// cancelled, the bridge closes the connection, or fn returns an error.
// A clean close by the bridge returns nil.
func (c *Client) Subscribe(ctx context.Context, fn func(MethodCall) error) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to bridge: %w (is the bridge running?)", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	dec := c.codec.NewDecoder(conn)
	for {
		call, err := dec.Decode()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read method call: %w", err)
		}
		if err := fn(call); err != nil {
			return err
		}
	}
}
