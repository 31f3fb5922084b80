// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/panrec/panrec/internal/panrec"
	"github.com/panrec/panrec/internal/qemu"
)

// Set on build.
var version = "dev"

const (
	defaultCommand   = "sudo dhclient -v -4"
	defaultArch      = "x86_64"
	defaultRecording = "test"
	defaultTapDevice = "panrec0"
)

// options carries all settings that can be set via arguments.
type options struct {
	arch    string
	command string

	imageDir      string
	image         string
	qemuBin       string
	snapshot      string
	recordingName string
	cpu           string
	memory        uint
	smp           uint
	workDir       string
	networkMode   qemu.NetworkMode
	tapDevice     string
	packPath      string
	catalogPath   string
	scriptPath    string
}

type Flags struct {
	name string
	opts *options

	versionFlag bool
	debugFlag   bool
	flagSet     *flag.FlagSet
}

func NewFlags(name string, opts *options, output io.Writer) *Flags {
	flags := &Flags{
		name: name,
		opts: opts,
	}

	flags.initFlagset(output)

	return flags
}

// defaultImageDir is where the generic images are expected, matching where
// the image fetching tools put them.
func defaultImageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".panda"
	}

	return filepath.Join(home, ".panda")
}

func newOptions() *options {
	return &options{
		arch:          defaultArch,
		imageDir:      defaultImageDir(),
		command:       defaultCommand,
		snapshot:      panrec.DefaultSnapshot,
		recordingName: defaultRecording,
		networkMode:   qemu.NetworkModeUser,
		tapDevice:     defaultTapDevice,
	}
}

func (f *Flags) initFlagset(output io.Writer) {
	fsName := f.name + " [flags...] [arch [command]]"
	fs := flag.NewFlagSet(fsName, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(
		&f.opts.imageDir,
		"image-dir",
		f.opts.imageDir,
		"directory with the generic guest images",
	)

	fs.StringVar(
		&f.opts.image,
		"image",
		f.opts.image,
		"guest disk image file name to use instead of the profile default",
	)

	fs.StringVar(
		&f.opts.qemuBin,
		"qemu-bin",
		f.opts.qemuBin,
		"PANDA system binary to use instead of the profile default",
	)

	fs.StringVar(
		&f.opts.snapshot,
		"snapshot",
		f.opts.snapshot,
		"guest snapshot to revert to before recording",
	)

	fs.StringVar(
		&f.opts.recordingName,
		"name",
		f.opts.recordingName,
		"name of the captured recording",
	)

	fs.StringVar(
		&f.opts.cpu,
		"cpu",
		f.opts.cpu,
		"CPU type to use instead of the profile default",
	)

	fs.UintVar(
		&f.opts.memory,
		"memory",
		f.opts.memory,
		"memory (in MB) to use instead of the profile default",
	)

	fs.UintVar(
		&f.opts.smp,
		"smp",
		f.opts.smp,
		"number of CPUs for the guest",
	)

	fs.StringVar(
		&f.opts.workDir,
		"workdir",
		f.opts.workDir,
		"directory the recording artifacts are written to",
	)

	fs.TextVar(
		&f.opts.networkMode,
		"net",
		&f.opts.networkMode,
		"guest network mode: none, user, tap",
	)

	fs.StringVar(
		&f.opts.tapDevice,
		"tap",
		f.opts.tapDevice,
		"host tap device to use with -net tap",
	)

	fs.StringVar(
		&f.opts.packPath,
		"pack",
		f.opts.packPath,
		"write the recording artifacts as compressed archive to this file",
	)

	fs.StringVar(
		&f.opts.catalogPath,
		"catalog",
		f.opts.catalogPath,
		"register the recording in the catalog database at this path",
	)

	fs.StringVar(
		&f.opts.scriptPath,
		"script",
		f.opts.scriptPath,
		"run the tasks queued by this driver script instead of the"+
			" default capture",
	)

	fs.BoolVar(
		&f.debugFlag,
		"debug",
		f.debugFlag,
		"enable debug output",
	)

	fs.BoolVar(
		&f.versionFlag,
		"version",
		f.versionFlag,
		"show version and exit",
	)

	f.flagSet = fs
}

// Fail fails like flag does. It prints the error first and then usage.
func (f *Flags) Fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *Flags) Debug() bool {
	return f.debugFlag
}

func (f *Flags) printVersionInformation() error {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ErrReadBuildInfo
	}

	fmt.Fprintf(f.flagSet.Output(), "%s: %s\n\n", f.name, version)
	fmt.Fprintln(f.flagSet.Output(), buildInfo.String())

	return nil
}

func (f *Flags) ParseArgs(args []string) error {
	// Parses arguments up to the first one that is not prefixed with a "-" or
	// is "--".
	if err := f.flagSet.Parse(args); err != nil {
		return &ParseArgsError{msg: "flag parse", err: err}
	}

	// With version flag, just print the version and exit. Using [flag.ErrHelp]
	// the main binary is supposed to return with a non error exit code.
	if f.versionFlag {
		if err := f.printVersionInformation(); err != nil {
			return &ParseArgsError{msg: "version", err: err}
		}

		return &ParseArgsError{msg: "version requested", err: flag.ErrHelp}
	}

	positionalArgs := f.flagSet.Args()

	// First positional argument selects the guest architecture, the second
	// one replaces the default guest command.
	switch len(positionalArgs) {
	case 0:
	case 1:
		f.opts.arch = positionalArgs[0]
	case 2:
		f.opts.arch = positionalArgs[0]
		f.opts.command = positionalArgs[1]

		if f.opts.scriptPath != "" {
			return f.Fail("guest command", ErrScriptWithCommand)
		}
	default:
		return f.Fail("too many arguments", nil)
	}

	return nil
}
