// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package panrec

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panrec/panrec/internal/qemu"
)

// opLog records guest interactions of both fakes so tests can assert their
// relative order.
type opLog struct {
	ops []string
}

func (l *opLog) add(op string) {
	l.ops = append(l.ops, op)
}

type fakeMonitor struct {
	log       *opLog
	responses map[string]string
	runErr    error
}

func (f *fakeMonitor) Run(_ context.Context, command string) (string, error) {
	f.log.add("monitor: " + command)
	return f.responses[command], f.runErr
}

func (f *fakeMonitor) Send(_ context.Context, command string) error {
	f.log.add("monitor send: " + command)
	return nil
}

func (f *fakeMonitor) Close() error { return nil }

type fakeConsole struct {
	log    *opLog
	output string
}

func (f *fakeConsole) Type(_ context.Context, input string) error {
	f.log.add("console type: " + input)
	return nil
}

func (f *fakeConsole) SendLine(_ context.Context, input string) error {
	f.log.add("console sendline: " + input)
	return nil
}

func (f *fakeConsole) Expect(
	_ context.Context,
	_ *regexp.Regexp,
) (string, error) {
	f.log.add("console expect")
	return f.output, nil
}

func (f *fakeConsole) Transcript() string { return f.output }

func (f *fakeConsole) Close() error { return nil }

func newTestSession(log *opLog, consoleOutput string) *Session {
	profile, err := Generic("x86_64")
	if err != nil {
		panic(err)
	}

	s := New(Config{Profile: profile, WorkDir: "/recordings"})
	s.mon = &fakeMonitor{log: log, responses: map[string]string{}}
	s.cons = &fakeConsole{log: log, output: consoleOutput}

	return s
}

func TestRevertSync(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")

	require.NoError(t, s.RevertSync(t.Context(), "root"))
	assert.Equal(t, []string{"monitor: loadvm root"}, log.ops)
}

func TestRevertSyncMissingSnapshot(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")
	s.mon = &fakeMonitor{
		log: log,
		responses: map[string]string{
			"loadvm missing": "Snapshot 'missing' not found",
		},
	}

	err := s.RevertSync(t.Context(), "missing")

	require.ErrorIs(t, err, ErrRevertFailed)
	assert.ErrorContains(t, err, "not found")
}

func TestRecordCmdOrdering(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")

	rec, err := s.RecordCmd(t.Context(), "sudo dhclient -v -4", "test")
	require.NoError(t, err)

	// The command must be typed before the recording begins and executed
	// (newline) after, so the typing is not part of the recording.
	assert.Equal(t, []string{
		"console type: sudo dhclient -v -4",
		"monitor: begin_record test",
		"console sendline: ",
		"console expect",
		"monitor: end_record",
	}, log.ops)

	assert.Equal(t, "test", rec.Name)
	assert.Equal(t, "/recordings", rec.Dir)
}

func TestRecordCmdBeginFails(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")
	s.mon = &fakeMonitor{
		log: log,
		responses: map[string]string{
			"begin_record test": "Recording already in progress",
		},
	}

	_, err := s.RecordCmd(t.Context(), "echo test", "test")

	require.ErrorIs(t, err, ErrRecordFailed)
}

func TestRunSerialCmd(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		output   string
		expected string
	}{
		{
			name:     "echo stripped",
			command:  "uname",
			output:   "uname\nLinux",
			expected: "Linux",
		},
		{
			name:     "echo only",
			command:  "true",
			output:   "true",
			expected: "",
		},
		{
			name:     "no echo",
			command:  "uname",
			output:   "Linux",
			expected: "Linux",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &opLog{}
			s := newTestSession(log, tt.output)

			output, err := s.RunSerialCmd(t.Context(), tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, output)
		})
	}
}

func TestEndAnalysis(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")

	require.NoError(t, s.EndAnalysis(t.Context()))
	assert.Equal(t, []string{"monitor send: quit"}, log.ops)

	// Idempotent.
	require.NoError(t, s.EndAnalysis(t.Context()))
	assert.Len(t, log.ops, 1)

	// No guest interaction after the end.
	require.ErrorIs(t, s.RevertSync(t.Context(), "root"), ErrSessionEnded)
	_, err := s.RunSerialCmd(t.Context(), "echo test")
	require.ErrorIs(t, err, ErrSessionEnded)
}

func TestRunTasksOrder(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")

	var order []int

	s.QueueAsync(func(context.Context, *Session) error {
		order = append(order, 1)
		return nil
	})
	s.QueueAsync(func(context.Context, *Session) error {
		order = append(order, 2)
		return nil
	})

	require.NoError(t, s.runTasks(t.Context()))

	assert.Equal(t, []int{1, 2}, order)
	// The analysis is ended implicitly after the last task.
	assert.Equal(t, []string{"monitor send: quit"}, log.ops)
}

func TestRunTasksError(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")

	taskErr := errors.New("task exploded")
	ran := false

	s.QueueAsync(func(context.Context, *Session) error {
		return taskErr
	})
	s.QueueAsync(func(context.Context, *Session) error {
		ran = true
		return nil
	})

	err := s.runTasks(t.Context())

	require.ErrorIs(t, err, taskErr)
	require.ErrorIs(t, err, &TaskError{})
	assert.False(t, ran, "subsequent tasks must not run")
}

func TestRunTasksEndedByTask(t *testing.T) {
	log := &opLog{}
	s := newTestSession(log, "")

	s.QueueAsync(func(ctx context.Context, s *Session) error {
		return s.EndAnalysis(ctx)
	})

	require.NoError(t, s.runTasks(t.Context()))
	assert.Equal(t, []string{"monitor send: quit"}, log.ops)
}

func TestCommandSpecSMP(t *testing.T) {
	profile, err := Generic("x86_64")
	require.NoError(t, err)

	s := New(Config{
		Profile:  profile,
		ImageDir: "/images",
		SMP:      4,
	})

	spec := s.commandSpec("/run/monitor.sock", "/run/serial.sock")
	assert.Equal(t, uint64(4), spec.SMP)

	cmd, err := qemu.NewCommand(spec)
	require.NoError(t, err)
	assert.Subset(t, cmd.Args(), []string{"-smp", "4"})
}
