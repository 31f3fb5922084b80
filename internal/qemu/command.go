// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// waitDelay is the grace period between context cancellation and SIGKILL.
const waitDelay = 5 * time.Second

// Command is a single emulator command that can be run.
//
// Create it with [NewCommand] which validates the [CommandSpec] and compiles
// the argument list.
type Command struct {
	executable string
	args       []string
	workDir    string
}

// NewCommand validates the given [CommandSpec] and builds the [Command]
// for it.
func NewCommand(spec CommandSpec) (*Command, error) {
	err := spec.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	args, err := BuildArgumentStrings(spec.arguments())
	if err != nil {
		return nil, fmt.Errorf("build arguments: %w", err)
	}

	return &Command{
		executable: spec.Executable,
		args:       args,
		workDir:    spec.WorkDir,
	}, nil
}

// String implements [fmt.Stringer].
//
// It returns the executable and all arguments joined as a single string, as
// it could be used in a shell.
func (c *Command) String() string {
	return strings.Join(append([]string{c.executable}, c.args...), " ")
}

// Args returns a copy of the compiled argument strings.
func (c *Command) Args() []string {
	args := make([]string, len(c.args))
	copy(args, c.args)

	return args
}

// Start starts the emulator process.
//
// Emulator stdout and stderr are copied to the given writers. The returned
// [Proc] must be waited on. If the context is canceled, the process is
// terminated, first gracefully, with SIGKILL after a grace period.
func (c *Command) Start(
	ctx context.Context,
	stdout, stderr io.Writer,
) (*Proc, error) {
	cmd := exec.CommandContext(ctx, c.executable, c.args...) //nolint:gosec
	cmd.Dir = c.workDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}

	// The emulator must not outlive the driver.
	cmd.SysProcAttr = &unix.SysProcAttr{
		Pdeathsig: unix.SIGKILL,
	}

	err := cmd.Start()
	if err != nil {
		return nil, &CommandError{Err: err, ExitCode: -1}
	}

	return &Proc{cmd: cmd}, nil
}

// Proc is a started emulator process.
type Proc struct {
	cmd *exec.Cmd
}

// Wait waits for the process to terminate.
//
// A non-zero exit status is returned as [CommandError] with the exit code
// set. Termination by the monitor quit command is treated as success.
func (p *Proc) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{Err: err, ExitCode: exitErr.ExitCode()}
	}

	return &CommandError{Err: err, ExitCode: -1}
}
