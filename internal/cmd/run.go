// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/panrec/panrec/internal/catalog"
	"github.com/panrec/panrec/internal/network"
	"github.com/panrec/panrec/internal/panrec"
	"github.com/panrec/panrec/internal/qemu"
	"github.com/panrec/panrec/internal/recording"
	"github.com/panrec/panrec/internal/script"
)

const programName = "panrec"

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func parseArgs(args []string, cfg IO) (*options, *Flags, error) {
	args, err := MergedArgs(args, os.DirFS("."), localConfigFile)
	if err != nil {
		return nil, nil, err
	}

	opts := newOptions()

	flags := NewFlags(programName, opts, cfg.Stderr)
	if err := flags.ParseArgs(args); err != nil {
		return nil, nil, fmt.Errorf("parse args: %w", err)
	}

	return opts, flags, nil
}

// newProfile looks up the generic profile for the selected architecture and
// applies the command line overrides.
func newProfile(opts *options) (panrec.Profile, error) {
	profile, err := panrec.Generic(opts.arch)
	if err != nil {
		return panrec.Profile{}, fmt.Errorf(
			"arch %q (supported: %s): %w",
			opts.arch,
			strings.Join(panrec.Arches(), ", "),
			err,
		)
	}

	if opts.image != "" {
		profile.Image = opts.image
	}

	if opts.qemuBin != "" {
		profile.Executable = opts.qemuBin
	}

	if opts.cpu != "" {
		profile.CPU = opts.cpu
	}

	if opts.memory != 0 {
		profile.Memory = uint64(opts.memory)
	}

	return profile, nil
}

func newRunner(opts *options, profile panrec.Profile, cfg IO) *runner {
	sessionCfg := panrec.Config{
		Profile:     profile,
		ImageDir:    opts.imageDir,
		WorkDir:     opts.workDir,
		SMP:         uint64(opts.smp),
		NetworkMode: opts.networkMode,
		TapDevice:   opts.tapDevice,
	}

	// The emulator output is only interesting when debugging a guest that
	// does not come up.
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		sessionCfg.Stdout = cfg.Stderr
		sessionCfg.Stderr = cfg.Stderr
	}

	return &runner{
		session: panrec.New(sessionCfg),
		opts:    opts,
	}
}

// capture is one recording together with the command and snapshot it was
// actually captured with. Script runs may use different ones per recording,
// so they are tracked here instead of being read back from the options.
type capture struct {
	rec      recording.Recording
	command  string
	snapshot string
}

// runner wraps a [panrec.Session] together with the task queue outcome the
// command needs after the emulator is gone.
type runner struct {
	session  *panrec.Session
	opts     *options
	captured []capture
}

// queueDefaultCapture queues the default task: revert to the configured
// snapshot, record the guest command and end the analysis.
func (s *runner) queueDefaultCapture() {
	s.session.QueueAsync(func(ctx context.Context, sess *panrec.Session) error {
		if err := sess.RevertSync(ctx, s.opts.snapshot); err != nil {
			return err
		}

		rec, err := sess.RecordCmd(ctx, s.opts.command, s.opts.recordingName)
		if err != nil {
			return err
		}

		s.captured = append(s.captured, capture{
			rec:      rec,
			command:  s.opts.command,
			snapshot: s.opts.snapshot,
		})

		return sess.EndAnalysis(ctx)
	})
}

// queueScript loads the driver script and queues all tasks it registers.
func (s *runner) queueScript(path string) error {
	scr, err := script.Load(path)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	driver := &scriptDriver{
		session:  s.session,
		captured: &s.captured,
	}

	for _, task := range scr.Tasks(driver) {
		s.session.QueueAsync(
			func(ctx context.Context, _ *panrec.Session) error {
				return task(ctx)
			},
		)
	}

	return nil
}

// guestSession is the part of [panrec.Session] driver scripts use.
type guestSession interface {
	RevertSync(ctx context.Context, name string) error
	RunSerialCmd(ctx context.Context, command string) (string, error)
	RecordCmd(
		ctx context.Context, command, name string,
	) (recording.Recording, error)
	EndAnalysis(ctx context.Context) error
}

// scriptDriver exposes the session operations to driver scripts and tracks
// the recordings they capture, including the command and the snapshot each
// one was taken from.
type scriptDriver struct {
	session  guestSession
	captured *[]capture
	snapshot string
}

func (d *scriptDriver) RevertSync(ctx context.Context, name string) error {
	err := d.session.RevertSync(ctx, name)
	if err != nil {
		return err
	}

	d.snapshot = name

	return nil
}

func (d *scriptDriver) RunSerialCmd(
	ctx context.Context, command string,
) (string, error) {
	return d.session.RunSerialCmd(ctx, command)
}

func (d *scriptDriver) RecordCmd(
	ctx context.Context, command, name string,
) (recording.Recording, error) {
	rec, err := d.session.RecordCmd(ctx, command, name)
	if err != nil {
		return rec, err
	}

	*d.captured = append(*d.captured, capture{
		rec:      rec,
		command:  command,
		snapshot: d.snapshot,
	})

	return rec, nil
}

func (d *scriptDriver) EndAnalysis(ctx context.Context) error {
	return d.session.EndAnalysis(ctx)
}

// finishRecordings validates the captured recordings and runs the requested
// post processing, like packing and catalog registration.
func finishRecordings(
	ctx context.Context, opts *options, captures []capture,
) error {
	for _, c := range captures {
		if err := c.rec.Validate(); err != nil {
			return fmt.Errorf("recording %q: %w", c.rec.Name, err)
		}

		size, err := c.rec.Size()
		if err != nil {
			return fmt.Errorf("recording %q size: %w", c.rec.Name, err)
		}

		slog.Info("Recording captured",
			slog.String("name", c.rec.Name),
			slog.Int64("size", size))
	}

	if opts.packPath != "" {
		if len(captures) != 1 {
			return fmt.Errorf(
				"pack %d recordings: %w",
				len(captures),
				ErrPackSingleRecording,
			)
		}

		if err := packRecording(opts.packPath, captures[0].rec); err != nil {
			return err
		}
	}

	if opts.catalogPath != "" {
		if err := registerRecordings(ctx, opts, captures); err != nil {
			return err
		}
	}

	return nil
}

func packRecording(path string, rec recording.Recording) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer file.Close()

	if err := rec.Pack(file); err != nil {
		return fmt.Errorf("pack %q: %w", rec.Name, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	slog.Debug("Packed recording", slog.String("path", path))

	return nil
}

func registerRecordings(
	ctx context.Context, opts *options, captures []capture,
) error {
	cat, err := catalog.Open(opts.catalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	for _, c := range captures {
		size, err := c.rec.Size()
		if err != nil {
			return fmt.Errorf("recording %q size: %w", c.rec.Name, err)
		}

		entry := catalog.Entry{
			Name:       c.rec.Name,
			Arch:       opts.arch,
			Command:    c.command,
			Snapshot:   c.snapshot,
			CapturedAt: time.Now(),
			SizeBytes:  size,
		}

		id, err := cat.Add(ctx, entry)
		if err != nil {
			return fmt.Errorf("catalog add: %w", err)
		}

		slog.Debug("Registered recording",
			slog.String("name", c.rec.Name),
			slog.Int64("id", id))
	}

	return nil
}

func run(ctx context.Context, opts *options, cfg IO) error {
	profile, err := newProfile(opts)
	if err != nil {
		return err
	}

	if opts.networkMode == qemu.NetworkModeTap {
		created, err := network.EnsureTap(opts.tapDevice)
		if err != nil {
			return fmt.Errorf("tap device: %w", err)
		}

		// Only remove tap devices this run created. Preexisting ones stay
		// with their owner.
		if created {
			defer removeTap(opts.tapDevice)
		}
	}

	runner := newRunner(opts, profile, cfg)

	if opts.scriptPath != "" {
		if err := runner.queueScript(opts.scriptPath); err != nil {
			return err
		}
	} else {
		runner.queueDefaultCapture()
	}

	if err := runner.session.Run(ctx); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	return finishRecordings(ctx, opts, runner.captured)
}

func removeTap(name string) {
	slog.Debug("Removing tap device", slog.String("tap", name))

	err := network.RemoveTap(name)
	if err != nil {
		slog.Error("Failed to remove tap device",
			slog.String("tap", name),
			slog.Any("error", err))
	}
}

func handleParseArgsError(err error) int {
	// [ErrHelp] is returned when help or version output is requested. So
	// exit without error in this case.
	if errors.Is(err, ErrHelp) {
		return 0
	}

	// ParseArgs already prints errors, so we just exit without an error.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return -1
}

func handleRunError(err error) int {
	exitCode := -1

	var qemuErr *qemu.CommandError
	if errors.As(err, &qemuErr) {
		if qemuErr.ExitCode != 0 {
			exitCode = qemuErr.ExitCode
		}
	}

	slog.Error(err.Error())

	return exitCode
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	opts, flags, err := parseArgs(args, cfg)
	if err != nil {
		return handleParseArgsError(err)
	}

	setupLogging(cfg.Stderr, flags.Debug())

	err = run(ctx, opts, cfg)
	if err != nil {
		return handleRunError(err)
	}

	return 0
}
