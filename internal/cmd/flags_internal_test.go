// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"bytes"
	"io"
	"testing"

	"github.com/panrec/panrec/internal/qemu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsParseArgs(t *testing.T) {
	defaults := func(modify func(*options)) *options {
		opts := newOptions()
		if modify != nil {
			modify(opts)
		}

		return opts
	}

	tests := []struct {
		name         string
		args         []string
		expectedOpts *options
		expectedErr  error
	}{
		{
			name:        "help",
			args:        []string{"-help"},
			expectedErr: ErrHelp,
		},
		{
			name:        "version",
			args:        []string{"-version"},
			expectedErr: ErrHelp,
		},
		{
			name:         "no args keeps defaults",
			args:         []string{},
			expectedOpts: defaults(nil),
		},
		{
			name: "arch positional",
			args: []string{"arm"},
			expectedOpts: defaults(func(opts *options) {
				opts.arch = "arm"
			}),
		},
		{
			name: "arch and command positionals",
			args: []string{"mipsel", "cat /proc/cpuinfo"},
			expectedOpts: defaults(func(opts *options) {
				opts.arch = "mipsel"
				opts.command = "cat /proc/cpuinfo"
			}),
		},
		{
			name:        "too many positionals",
			args:        []string{"arm", "true", "extra"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "command with script",
			args:        []string{"-script=drive.star", "arm", "true"},
			expectedErr: ErrScriptWithCommand,
		},
		{
			name: "all flags",
			args: []string{
				"-image-dir=/var/lib/panda",
				"-image=custom.qcow2",
				"-qemu-bin=/opt/panda/bin/panda-system-i386",
				"-snapshot=clean",
				"-name=run1",
				"-cpu", "pentium3",
				"-memory=2048",
				"-smp", "2",
				"-workdir=/tmp/out",
				"-net=tap",
				"-tap=tap0",
				"-pack=run1.cpio.zst",
				"-catalog=recordings.db",
				"-debug",
				"i386",
			},
			expectedOpts: defaults(func(opts *options) {
				opts.arch = "i386"
				opts.imageDir = "/var/lib/panda"
				opts.image = "custom.qcow2"
				opts.qemuBin = "/opt/panda/bin/panda-system-i386"
				opts.snapshot = "clean"
				opts.recordingName = "run1"
				opts.cpu = "pentium3"
				opts.memory = 2048
				opts.smp = 2
				opts.workDir = "/tmp/out"
				opts.networkMode = qemu.NetworkModeTap
				opts.tapDevice = "tap0"
				opts.packPath = "run1.cpio.zst"
				opts.catalogPath = "recordings.db"
			}),
		},
		{
			name:        "invalid network mode",
			args:        []string{"-net=bridge"},
			expectedErr: &ParseArgsError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions()
			flags := NewFlags(programName, opts, io.Discard)

			err := flags.ParseArgs(tt.args)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedOpts, opts)
		})
	}
}

func TestFlagsPrintVersionInformation(t *testing.T) {
	var output bytes.Buffer

	opts := newOptions()
	flags := NewFlags(programName, opts, &output)

	// Test binaries always carry build info, so the output must be
	// written and the version request must map to [ErrHelp].
	err := flags.ParseArgs([]string{"-version"})
	require.ErrorIs(t, err, ErrHelp)
	assert.Contains(t, output.String(), programName+": "+version)
}

func TestFlagsDebug(t *testing.T) {
	opts := newOptions()
	flags := NewFlags(programName, opts, io.Discard)

	require.NoError(t, flags.ParseArgs([]string{"-debug"}))
	assert.True(t, flags.Debug())
}
