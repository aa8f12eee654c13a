// Package scpi implements safe command execution against an instrument's raw
// SCPI socket. Failed operations trigger a best-effort *RST soft reset; the
// original command is never retried automatically.
package scpi

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OPCResult is the outcome of waiting on the instrument's Operation Complete
// flag.
type OPCResult string

const (
	OPCPassed  OPCResult = "PASSED"
	OPCFailed  OPCResult = "FAILED"
	OPCTimeout OPCResult = "TIME FAILED"
)

// DefaultTimeout bounds a single command round trip.
const DefaultTimeout = 5 * time.Second

// Client is a synchronous SCPI connection. All commands are serialized; the
// instrument answers one query at a time.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	rd      *bufio.Reader
	timeout time.Duration
	log     zerolog.Logger
}

// Dial connects to an instrument's SCPI-over-TCP port (commonly 5025 or 5555).
func Dial(ctx context.Context, addr string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("scpi dial %s: %w", addr, err)
	}
	return NewClient(conn, timeout, logger), nil
}

// NewClient wraps an established connection. Useful for tests with net.Pipe.
func NewClient(conn net.Conn, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		conn:    conn,
		rd:      bufio.NewReader(conn),
		timeout: timeout,
		log:     logger,
	}
}

// Close shuts down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// rawWrite sends a command without error recovery.
func (c *Client) rawWrite(cmd string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		return err
	}
	c.log.Debug().Str("dir", "SENT").Str("cmd", cmd).Msg("scpi")
	return nil
}

// rawQuery sends a command and reads one newline-terminated response without
// error recovery.
func (c *Client) rawQuery(cmd string, timeout time.Duration) (string, error) {
	if err := c.rawWrite(cmd); err != nil {
		return "", err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := c.rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	resp := strings.TrimSpace(line)
	c.log.Debug().Str("dir", "RECEIVED").Str("cmd", cmd).Str("resp", resp).Msg("scpi")
	return resp, nil
}

// reset sends *RST to restore a known instrument state after a failed
// command. Best effort: a failing reset is logged, not propagated.
func (c *Client) reset() {
	c.log.Warn().Msg("command failed, sending *RST to reset the instrument")
	if err := c.rawWrite("*RST"); err != nil {
		c.log.Error().Err(err).Msg("instrument reset failed")
		return
	}
	c.log.Info().Msg("instrument reset command sent")
}

// Write sends a SCPI command. On failure the instrument is soft-reset and the
// write error is returned.
func (c *Client) Write(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rawWrite(cmd); err != nil {
		c.reset()
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

// Query sends a SCPI query and returns the trimmed response. On failure the
// instrument is soft-reset and the error is returned.
func (c *Client) Query(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.rawQuery(cmd, c.timeout)
	if err != nil {
		c.reset()
		return "", fmt.Errorf("query %q: %w", cmd, err)
	}
	return resp, nil
}

// Set writes a command with a value argument, e.g. Set(":SENS:FREQ:STAR",
// "100000000").
func (c *Client) Set(cmd, value string) error {
	return c.Write(fmt.Sprintf("%s %s", cmd, value))
}

// Reset sends *RST explicitly.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawWrite("*RST")
}

// WaitOPC polls *OPC? with a temporary timeout override, restoring the usual
// timeout afterwards. A "1" response means the pending operation completed.
func (c *Client) WaitOPC(timeout time.Duration) OPCResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rawQuery("*OPC?", timeout)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			c.log.Error().Dur("timeout", timeout).Msg("*OPC? timed out")
			c.reset()
			return OPCTimeout
		}
		c.log.Error().Err(err).Msg("*OPC? failed")
		c.reset()
		return OPCFailed
	}
	if resp != "1" {
		c.log.Error().Str("resp", resp).Msg("*OPC? returned an unexpected value")
		c.reset()
		return OPCFailed
	}
	return OPCPassed
}
