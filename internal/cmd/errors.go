// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"flag"
	"fmt"
)

var (
	// ErrHelp is returned when the usage or version output was requested.
	ErrHelp = flag.ErrHelp

	// ErrReadBuildInfo is returned when the build info can not be read.
	ErrReadBuildInfo = errors.New("build info can not be read")

	// ErrScriptWithCommand is returned when a guest command is given
	// together with a driver script.
	ErrScriptWithCommand = errors.New("command argument conflicts with -script")

	// ErrPackSingleRecording is returned when -pack is used for a run that
	// did not capture exactly one recording.
	ErrPackSingleRecording = errors.New("pack requires a single recording")
)

// ParseArgsError wraps errors that occur during argument parsing.
type ParseArgsError struct {
	err error
	msg string
}

func (e *ParseArgsError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *ParseArgsError) Is(other error) bool {
	_, ok := other.(*ParseArgsError)
	return ok
}

func (e *ParseArgsError) Unwrap() error {
	return e.err
}
