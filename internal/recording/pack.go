// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package recording

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/zstd"
)

const artifactFileMode = 0o644

// Pack writes both artifact files of the recording into a zstd compressed
// cpio archive.
//
// The archive entries are named like the artifact files, without directory.
func (r Recording) Pack(w io.Writer) error {
	err := r.Validate()
	if err != nil {
		return err
	}

	compressor, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("new zstd writer: %w", err)
	}

	archive := cpio.NewWriter(compressor)

	for _, path := range []string{r.SnapshotPath(), r.NondetLogPath()} {
		err := packFile(archive, path)
		if err != nil {
			return err
		}
	}

	err = archive.Close()
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	err = compressor.Close()
	if err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}

	return nil
}

func packFile(archive *cpio.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	hdr := &cpio.Header{
		Name: filepath.Base(path),
		Mode: artifactFileMode,
		Size: info.Size(),
	}

	err = archive.WriteHeader(hdr)
	if err != nil {
		return fmt.Errorf("write header %s: %w", hdr.Name, err)
	}

	_, err = io.Copy(archive, file)
	if err != nil {
		return fmt.Errorf("write %s: %w", hdr.Name, err)
	}

	return nil
}

// Unpack reads a packed recording archive and writes its artifact files
// into the given directory.
//
// The recording name is derived from the snapshot entry of the archive.
func Unpack(r io.Reader, dir string) (Recording, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return Recording{}, fmt.Errorf("new zstd reader: %w", err)
	}
	defer decompressor.Close()

	archive := cpio.NewReader(decompressor)

	var name string

	for {
		hdr, err := archive.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return Recording{}, fmt.Errorf("read archive: %w", err)
		}

		err = unpackEntry(archive, dir, hdr.Name)
		if err != nil {
			return Recording{}, err
		}

		if strings.HasSuffix(hdr.Name, snapshotSuffix) {
			name = strings.TrimSuffix(hdr.Name, snapshotSuffix)
		}
	}

	if name == "" {
		return Recording{}, fmt.Errorf(
			"%w: no snapshot entry", ErrArchiveEntryInvalid,
		)
	}

	rec := New(dir, name)

	err = rec.Validate()
	if err != nil {
		return Recording{}, err
	}

	return rec, nil
}

func unpackEntry(archive *cpio.Reader, dir, name string) error {
	// Entry names must be plain file names, no path traversal.
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %s", ErrArchiveEntryInvalid, name)
	}

	if !strings.HasSuffix(name, snapshotSuffix) &&
		!strings.HasSuffix(name, nondetLogSuffix) {
		return fmt.Errorf("%w: %s", ErrArchiveEntryInvalid, name)
	}

	path := filepath.Join(dir, name)

	file, err := os.OpenFile(
		path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, artifactFileMode,
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	_, err = io.Copy(file, archive) //nolint:gosec
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
