// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// dialInterval is the pause between connection attempts while the emulator
// is still creating its chardev sockets.
const dialInterval = 50 * time.Millisecond

// Console is a connected guest serial console.
//
// It is not safe for concurrent use. The session serializes all guest
// interaction anyway.
type Console struct {
	conn   net.Conn
	reader *bufio.Reader

	// pending holds bytes read from the connection that have not been
	// consumed by a successful [Console.Expect] match yet.
	pending bytes.Buffer

	// transcript holds everything ever read from the console.
	transcript bytes.Buffer
}

// Dial connects to the serial console socket at the given path.
//
// The emulator creates the socket asynchronously after process start, so
// connection attempts are retried until the context is done.
func Dial(ctx context.Context, path string) (*Console, error) {
	var dialer net.Dialer

	for {
		conn, err := dialer.DialContext(ctx, "unix", path)
		if err == nil {
			return New(conn), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial console %s: %w", path, ctx.Err())
		case <-time.After(dialInterval):
		}
	}
}

// New creates a [Console] on the given connection.
func New(conn net.Conn) *Console {
	return &Console{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Type writes the given input to the console without a trailing newline.
func (c *Console) Type(ctx context.Context, input string) error {
	defer c.watch(ctx)()

	_, err := c.conn.Write([]byte(input))
	if err != nil {
		return fmt.Errorf("console type: %w", err)
	}

	return nil
}

// SendLine writes the given input to the console followed by a newline.
func (c *Console) SendLine(ctx context.Context, input string) error {
	return c.Type(ctx, input+"\n")
}

// Expect reads console output until the given pattern matches.
//
// It returns the sanitized output received before the match. The match
// itself is consumed but not returned. Bytes after the match remain pending
// for the next call.
func (c *Console) Expect(
	ctx context.Context,
	pattern *regexp.Regexp,
) (string, error) {
	defer c.watch(ctx)()

	for {
		if loc := pattern.FindIndex(c.pending.Bytes()); loc != nil {
			output := sanitize(c.pending.Bytes()[:loc[0]])
			c.pending.Next(loc[1])

			return output, nil
		}

		b, err := c.reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}

			return "", fmt.Errorf("console expect %q: %w", pattern, err)
		}

		c.pending.WriteByte(b)
		c.transcript.WriteByte(b)
	}
}

// Transcript returns everything read from the console so far.
func (c *Console) Transcript() string {
	return c.transcript.String()
}

// Close closes the underlying connection.
func (c *Console) Close() error {
	err := c.conn.Close()
	if err != nil {
		return fmt.Errorf("close console: %w", err)
	}

	return nil
}

// watch unblocks pending connection reads and writes once the context is
// done. The returned stop function must be called when the operation
// completed.
func (c *Console) watch(ctx context.Context) func() bool {
	// Clear any deadline a previously canceled operation left behind.
	_ = c.conn.SetDeadline(time.Time{})

	return context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
}

// sanitize normalizes serial line endings and strips leading and trailing
// whitespace.
func sanitize(raw []byte) string {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	return strings.TrimSpace(s)
}
