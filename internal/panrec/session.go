// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package panrec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/panrec/panrec/internal/console"
	"github.com/panrec/panrec/internal/monitor"
	"github.com/panrec/panrec/internal/qemu"
	"github.com/panrec/panrec/internal/recording"
)

// Task is a queued guest interaction. Tasks are executed one after another
// by [Session.Run] once the machine is active.
type Task func(ctx context.Context, s *Session) error

// monitorClient is the part of [monitor.Client] the session uses.
type monitorClient interface {
	Run(ctx context.Context, command string) (string, error)
	Send(ctx context.Context, command string) error
	Close() error
}

// serialConsole is the part of [console.Console] the session uses.
type serialConsole interface {
	Type(ctx context.Context, input string) error
	SendLine(ctx context.Context, input string) error
	Expect(ctx context.Context, pattern *regexp.Regexp) (string, error)
	Transcript() string
	Close() error
}

// Config defines a [Session].
type Config struct {
	// Profile of the guest system to boot.
	Profile Profile

	// ImageDir is the directory the profile image files live in.
	ImageDir string

	// WorkDir is the emulator working directory. Recording artifacts are
	// written here. Empty means the current directory.
	WorkDir string

	// RuntimeDir is the directory for the chardev sockets. If empty, a
	// temporary directory is created for the duration of the run.
	RuntimeDir string

	// SMP is the number of guest CPUs. Zero keeps the machine default.
	SMP uint64

	// NetworkMode for the guest NIC. Empty means user mode networking.
	NetworkMode qemu.NetworkMode

	// TapDevice for [qemu.NetworkModeTap].
	TapDevice string

	// ExtraArgs are passed to the emulator command verbatim.
	ExtraArgs []qemu.Argument

	// Stdout and Stderr receive the emulator process output. Both default
	// to [io.Discard]. Guest console output does not appear here, it is
	// carried by the serial socket.
	Stdout io.Writer
	Stderr io.Writer
}

// Session drives one PANDA emulator analysis.
//
// Queue tasks with [Session.QueueAsync], then call [Session.Run]. The guest
// interaction methods may only be called from within a task.
type Session struct {
	cfg   Config
	tasks []Task

	mon   monitorClient
	cons  serialConsole
	ended bool
}

// New creates a [Session] for the given [Config].
func New(cfg Config) *Session {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}

	return &Session{cfg: cfg}
}

// Profile returns the guest profile the session was created with.
func (s *Session) Profile() Profile {
	return s.cfg.Profile
}

// QueueAsync registers a task to be run once the machine is active. Must be
// called before [Session.Run].
func (s *Session) QueueAsync(task Task) {
	s.tasks = append(s.tasks, task)
}

// Run starts the emulator, executes all queued tasks in order and waits for
// the emulator to terminate.
//
// The run ends when a task calls [Session.EndAnalysis], when all tasks have
// completed, when a task fails, or when the context is canceled.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runtimeDir := s.cfg.RuntimeDir
	if runtimeDir == "" {
		var err error

		runtimeDir, err = os.MkdirTemp("", "panrec-*")
		if err != nil {
			return fmt.Errorf("create runtime dir: %w", err)
		}

		defer func() {
			_ = os.RemoveAll(runtimeDir)
		}()
	}

	monitorSocket := filepath.Join(runtimeDir, "monitor.sock")
	serialSocket := filepath.Join(runtimeDir, "serial.sock")

	cmd, err := qemu.NewCommand(s.commandSpec(monitorSocket, serialSocket))
	if err != nil {
		return err
	}

	slog.Debug("Starting emulator", slog.String("command", cmd.String()))

	proc, err := cmd.Start(ctx, s.cfg.Stdout, s.cfg.Stderr)
	if err != nil {
		return err
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		// Unblock task interaction when the emulator goes away.
		defer cancel()

		return proc.Wait()
	})

	taskErr := s.connectAndRunTasks(ctx, monitorSocket, serialSocket)
	if taskErr != nil {
		cancel()
	}

	waitErr := eg.Wait()

	// The emulator exiting on the requested quit is the expected way for
	// a run to end.
	if s.ended {
		waitErr = nil
	}

	return errors.Join(taskErr, waitErr)
}

// commandSpec builds the emulator command spec from the profile and the
// session wide settings.
func (s *Session) commandSpec(
	monitorSocket, serialSocket string,
) qemu.CommandSpec {
	spec := s.cfg.Profile.CommandSpec(
		s.cfg.ImageDir, s.cfg.WorkDir, monitorSocket, serialSocket,
	)
	spec.SMP = s.cfg.SMP
	spec.NetworkMode = s.cfg.NetworkMode
	spec.TapDevice = s.cfg.TapDevice
	spec.ExtraArgs = s.cfg.ExtraArgs

	return spec
}

func (s *Session) connectAndRunTasks(
	ctx context.Context,
	monitorSocket, serialSocket string,
) error {
	mon, err := monitor.Dial(ctx, monitorSocket)
	if err != nil {
		return err
	}
	defer mon.Close()

	cons, err := console.Dial(ctx, serialSocket)
	if err != nil {
		return err
	}
	defer cons.Close()

	s.mon = mon
	s.cons = cons

	return s.runTasks(ctx)
}

func (s *Session) runTasks(ctx context.Context) error {
	for _, task := range s.tasks {
		err := task(ctx, s)
		if err != nil {
			return &TaskError{Err: err}
		}
	}

	// Falling out of the last task without an explicit end still
	// terminates the analysis.
	return s.EndAnalysis(ctx)
}

// RevertSync reverts the guest to the named snapshot and returns once the
// revert completed.
func (s *Session) RevertSync(ctx context.Context, name string) error {
	if s.ended {
		return ErrSessionEnded
	}

	slog.Debug("Reverting to snapshot", slog.String("snapshot", name))

	output, err := s.mon.Run(ctx, "loadvm "+name)
	if err != nil {
		return err
	}

	// loadvm reports problems as plain text before the next prompt.
	if output != "" {
		return fmt.Errorf("%w: %s", ErrRevertFailed, output)
	}

	return nil
}

// TypeSerialCmd types the command on the serial console without pressing
// enter.
func (s *Session) TypeSerialCmd(ctx context.Context, command string) error {
	if s.ended {
		return ErrSessionEnded
	}

	return s.cons.Type(ctx, command)
}

// FinishSerialCmd presses enter and waits for the guest shell prompt. It
// returns the command output.
func (s *Session) FinishSerialCmd(ctx context.Context) (string, error) {
	if s.ended {
		return "", ErrSessionEnded
	}

	err := s.cons.SendLine(ctx, "")
	if err != nil {
		return "", err
	}

	output, err := s.cons.Expect(ctx, s.cfg.Profile.Prompt)
	if err != nil {
		return "", err
	}

	return output, nil
}

// RunSerialCmd types the command into the guest shell, waits for the prompt
// and returns the command output with the echoed command line stripped.
func (s *Session) RunSerialCmd(
	ctx context.Context,
	command string,
) (string, error) {
	err := s.TypeSerialCmd(ctx, command)
	if err != nil {
		return "", err
	}

	output, err := s.FinishSerialCmd(ctx)
	if err != nil {
		return "", err
	}

	return trimCommandEcho(output, command), nil
}

// RecordCmd executes the command in the guest while capturing an execution
// recording with the given name.
//
// The command is typed before the recording starts and executed after, so
// the recording contains the execution but not the typing. This matches the
// record_cmd semantics of the PANDA scripting interface.
func (s *Session) RecordCmd(
	ctx context.Context,
	command, name string,
) (recording.Recording, error) {
	slog.Info("Running command in guest", slog.String("command", command))

	err := s.TypeSerialCmd(ctx, command)
	if err != nil {
		return recording.Recording{}, err
	}

	err = s.recordControl(ctx, "begin_record "+name)
	if err != nil {
		return recording.Recording{}, err
	}

	_, err = s.FinishSerialCmd(ctx)
	if err != nil {
		return recording.Recording{}, err
	}

	err = s.recordControl(ctx, "end_record")
	if err != nil {
		return recording.Recording{}, err
	}

	return recording.New(s.cfg.WorkDir, name), nil
}

func (s *Session) recordControl(ctx context.Context, command string) error {
	output, err := s.mon.Run(ctx, command)
	if err != nil {
		return err
	}

	if output != "" {
		return fmt.Errorf("%w: %s: %s", ErrRecordFailed, command, output)
	}

	return nil
}

// EndAnalysis terminates the session by asking the emulator to quit.
// Subsequent guest interactions fail with [ErrSessionEnded].
func (s *Session) EndAnalysis(ctx context.Context) error {
	if s.ended {
		return nil
	}

	s.ended = true

	slog.Debug("Ending analysis")

	return s.mon.Send(ctx, "quit")
}

// Transcript returns the serial console transcript collected so far.
func (s *Session) Transcript() string {
	if s.cons == nil {
		return ""
	}

	return s.cons.Transcript()
}

// trimCommandEcho drops the echoed command line from the start of the
// output.
func trimCommandEcho(output, command string) string {
	first, rest, found := strings.Cut(output, "\n")
	if !strings.Contains(first, command) {
		return output
	}

	if !found {
		return ""
	}

	return rest
}
