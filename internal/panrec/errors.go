// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package panrec

import "errors"

var (
	// ErrArchNotSupported is returned if no generic profile exists for the
	// requested guest architecture.
	ErrArchNotSupported = errors.New("guest architecture not supported")

	// ErrRevertFailed is returned if the emulator rejected a snapshot
	// revert, e.g. because the snapshot does not exist in the image.
	ErrRevertFailed = errors.New("snapshot revert failed")

	// ErrRecordFailed is returned if the emulator rejected a recording
	// control command.
	ErrRecordFailed = errors.New("recording control failed")

	// ErrSessionEnded is returned if a guest interaction is attempted
	// after the analysis has been ended.
	ErrSessionEnded = errors.New("session already ended")
)

// TaskError wraps an error returned by a queued task.
type TaskError struct {
	Err error
}

// Error implements the [error] interface.
func (e *TaskError) Error() string {
	return "task: " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*TaskError) Is(other error) bool {
	_, ok := other.(*TaskError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *TaskError) Unwrap() error {
	return e.Err
}
