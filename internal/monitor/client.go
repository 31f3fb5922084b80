// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package monitor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// prompt is printed by the monitor when it is ready for the next command.
const prompt = "(qemu) "

// dialInterval is the pause between connection attempts while the emulator
// is still creating its chardev sockets.
const dialInterval = 50 * time.Millisecond

// Client is a connected human monitor client.
//
// It is not safe for concurrent use. The session serializes all guest
// interaction anyway.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the monitor socket at the given path.
//
// The emulator creates the socket asynchronously after process start, so
// connection attempts are retried until the context is done. The initial
// banner is consumed, so the returned [Client] is ready for [Client.Run].
func Dial(ctx context.Context, path string) (*Client, error) {
	var dialer net.Dialer

	for {
		conn, err := dialer.DialContext(ctx, "unix", path)
		if err == nil {
			return New(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial monitor %s: %w", path, ctx.Err())
		case <-time.After(dialInterval):
		}
	}
}

// New creates a [Client] on the given connection and consumes the monitor
// banner up to the first prompt.
func New(ctx context.Context, conn net.Conn) (*Client, error) {
	client := &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}

	_, err := client.awaitPrompt(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("monitor banner: %w", err)
	}

	return client, nil
}

// Run issues the given monitor command and returns its output.
//
// The command echo and the trailing prompt are stripped from the returned
// output.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	err := c.write(ctx, command+"\n")
	if err != nil {
		return "", fmt.Errorf("monitor %q: %w", command, err)
	}

	output, err := c.awaitPrompt(ctx)
	if err != nil {
		return "", fmt.Errorf("monitor %q: %w", command, err)
	}

	return trimEcho(output, command), nil
}

// Send issues the given monitor command without waiting for the next
// prompt. Used for commands that terminate the emulator, like quit, where
// no further prompt will arrive.
func (c *Client) Send(ctx context.Context, command string) error {
	err := c.write(ctx, command+"\n")
	if err != nil {
		return fmt.Errorf("monitor %q: %w", command, err)
	}

	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	err := c.conn.Close()
	if err != nil {
		return fmt.Errorf("close monitor: %w", err)
	}

	return nil
}

func (c *Client) write(ctx context.Context, data string) error {
	defer c.watch(ctx)()

	_, err := c.conn.Write([]byte(data))

	return err
}

// awaitPrompt reads until the next prompt and returns everything read
// before it.
func (c *Client) awaitPrompt(ctx context.Context) (string, error) {
	defer c.watch(ctx)()

	var buf bytes.Buffer

	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}

			return buf.String(), err
		}

		buf.WriteByte(b)

		if bytes.HasSuffix(buf.Bytes(), []byte(prompt)) {
			buf.Truncate(buf.Len() - len(prompt))
			return buf.String(), nil
		}
	}
}

// watch unblocks pending connection reads and writes once the context is
// done. The returned stop function must be called when the operation
// completed.
func (c *Client) watch(ctx context.Context) func() bool {
	// Clear any deadline a previously canceled operation left behind.
	_ = c.conn.SetDeadline(time.Time{})

	return context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
}

// trimEcho removes the echoed command line and terminal control sequences
// the monitor puts in front of its output.
func trimEcho(output, command string) string {
	lines := strings.Split(output, "\n")

	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasSuffix(line, command) {
			continue
		}

		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}
