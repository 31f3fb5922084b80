// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package recording handles the artifacts of a PANDA execution recording.
//
// A recording consists of two files the emulator writes into its working
// directory: the "<name>-rr-snp" memory snapshot and the
// "<name>-rr-nondet.log" nondeterminism log. Their content is opaque to this
// package, it only locates, validates and bundles them.
package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	snapshotSuffix  = "-rr-snp"
	nondetLogSuffix = "-rr-nondet.log"
)

var (
	// ErrArtifactMissing is returned if a recording artifact file does not
	// exist.
	ErrArtifactMissing = errors.New("recording artifact missing")

	// ErrArtifactEmpty is returned if a recording artifact file exists but
	// has no content.
	ErrArtifactEmpty = errors.New("recording artifact empty")

	// ErrArchiveEntryInvalid is returned if a packed recording archive
	// contains an unexpected entry.
	ErrArchiveEntryInvalid = errors.New("unexpected archive entry")
)

// Recording locates the artifact pair of a named recording in a directory.
type Recording struct {
	Name string
	Dir  string
}

// New creates a [Recording] handle for the given directory and name. No
// artifact files are accessed.
func New(dir, name string) Recording {
	return Recording{Name: name, Dir: dir}
}

// SnapshotPath returns the path of the memory snapshot artifact.
func (r Recording) SnapshotPath() string {
	return filepath.Join(r.Dir, r.Name+snapshotSuffix)
}

// NondetLogPath returns the path of the nondeterminism log artifact.
func (r Recording) NondetLogPath() string {
	return filepath.Join(r.Dir, r.Name+nondetLogSuffix)
}

// Validate checks that both artifact files exist and are not empty.
func (r Recording) Validate() error {
	for _, path := range []string{r.SnapshotPath(), r.NondetLogPath()} {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
			}

			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.Size() == 0 {
			return fmt.Errorf("%w: %s", ErrArtifactEmpty, path)
		}
	}

	return nil
}

// Size returns the combined size of both artifact files in bytes.
func (r Recording) Size() (int64, error) {
	var total int64

	for _, path := range []string{r.SnapshotPath(), r.NondetLogPath()} {
		info, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}

		total += info.Size()
	}

	return total, nil
}
