// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package script runs user supplied Starlark driver scripts against a
// session.
//
// A script queues tasks with queue_async and interacts with the guest from
// within them:
//
//	def run_cmd():
//	    revert_sync("root")
//	    record_cmd("sudo dhclient -v -4", recording_name="test")
//	    end_analysis()
//
//	queue_async(run_cmd)
//
// The guest built-ins revert_sync, run_serial_cmd, record_cmd and
// end_analysis are only callable from within a queued task, since the
// machine is not active before.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/panrec/panrec/internal/recording"
)

const (
	ctxLocalKey    = "panrec.ctx"
	driverLocalKey = "panrec.driver"
)

// ErrNotInTask is returned if a guest built-in is called outside a queued
// task.
var ErrNotInTask = errors.New("guest interaction outside queued task")

// Driver is the session surface exposed to scripts.
type Driver interface {
	RevertSync(ctx context.Context, name string) error
	RunSerialCmd(ctx context.Context, command string) (string, error)
	RecordCmd(
		ctx context.Context,
		command, name string,
	) (recording.Recording, error)
	EndAnalysis(ctx context.Context) error
}

// Script is a loaded driver script with its queued task functions.
type Script struct {
	path   string
	queued []starlark.Callable
}

// Load executes the script file at the given path and collects the tasks it
// queues.
//
// Guest built-ins are declared but fail until called from a task run by
// [Script.Tasks].
func Load(path string) (*Script, error) {
	script := &Script{path: path}

	thread := &starlark.Thread{
		Name:  "panrec load " + path,
		Print: printToLog,
	}

	_, err := starlark.ExecFileOptions(
		&syntax.FileOptions{}, thread, path, nil, script.predeclared(),
	)
	if err != nil {
		return nil, fmt.Errorf("exec script %s: %w", path, err)
	}

	return script, nil
}

// Tasks returns the queued script functions as runnable tasks driving the
// given [Driver], in queue order.
func (s *Script) Tasks(driver Driver) []func(context.Context) error {
	tasks := make([]func(context.Context) error, 0, len(s.queued))

	for _, callable := range s.queued {
		tasks = append(tasks, func(ctx context.Context) error {
			thread := &starlark.Thread{
				Name:  "panrec task " + callable.Name(),
				Print: printToLog,
			}
			thread.SetLocal(ctxLocalKey, ctx)
			thread.SetLocal(driverLocalKey, driver)

			_, err := starlark.Call(thread, callable, nil, nil)
			if err != nil {
				return fmt.Errorf(
					"script task %s: %w", callable.Name(), err,
				)
			}

			return nil
		})
	}

	return tasks
}

func (s *Script) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"queue_async":    starlark.NewBuiltin("queue_async", s.queueAsync),
		"revert_sync":    starlark.NewBuiltin("revert_sync", revertSync),
		"run_serial_cmd": starlark.NewBuiltin("run_serial_cmd", runSerialCmd),
		"record_cmd":     starlark.NewBuiltin("record_cmd", recordCmd),
		"end_analysis":   starlark.NewBuiltin("end_analysis", endAnalysis),
	}
}

func (s *Script) queueAsync(
	_ *starlark.Thread,
	builtin *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var callable starlark.Callable

	err := starlark.UnpackArgs(
		builtin.Name(), args, kwargs, "task", &callable,
	)
	if err != nil {
		return nil, err
	}

	s.queued = append(s.queued, callable)

	return starlark.None, nil
}

func revertSync(
	thread *starlark.Thread,
	builtin *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	name := "root"

	err := starlark.UnpackArgs(builtin.Name(), args, kwargs, "name?", &name)
	if err != nil {
		return nil, err
	}

	ctx, driver, err := taskState(thread)
	if err != nil {
		return nil, err
	}

	err = driver.RevertSync(ctx, name)
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func runSerialCmd(
	thread *starlark.Thread,
	builtin *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var command string

	err := starlark.UnpackArgs(
		builtin.Name(), args, kwargs, "command", &command,
	)
	if err != nil {
		return nil, err
	}

	ctx, driver, err := taskState(thread)
	if err != nil {
		return nil, err
	}

	output, err := driver.RunSerialCmd(ctx, command)
	if err != nil {
		return nil, err
	}

	return starlark.String(output), nil
}

func recordCmd(
	thread *starlark.Thread,
	builtin *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var command string

	name := "test"

	err := starlark.UnpackArgs(
		builtin.Name(), args, kwargs,
		"command", &command,
		"recording_name?", &name,
	)
	if err != nil {
		return nil, err
	}

	ctx, driver, err := taskState(thread)
	if err != nil {
		return nil, err
	}

	_, err = driver.RecordCmd(ctx, command, name)
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func endAnalysis(
	thread *starlark.Thread,
	builtin *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	err := starlark.UnpackArgs(builtin.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}

	ctx, driver, err := taskState(thread)
	if err != nil {
		return nil, err
	}

	err = driver.EndAnalysis(ctx)
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func taskState(thread *starlark.Thread) (context.Context, Driver, error) {
	ctx, ctxOK := thread.Local(ctxLocalKey).(context.Context)
	driver, driverOK := thread.Local(driverLocalKey).(Driver)

	if !ctxOK || !driverOK {
		return nil, nil, ErrNotInTask
	}

	return ctx, driver, nil
}

func printToLog(_ *starlark.Thread, msg string) {
	slog.Info(msg, slog.String("source", "script"))
}
