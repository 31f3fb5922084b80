// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
)

const localConfigFile = ".panrec-args"

// EnvArgs returns panrec arguments from the environment.
func EnvArgs() []string {
	return strings.Fields(os.Getenv("PANREC_ARGS"))
}

// LocalConfigArgs returns panrec arguments from a local config file.
//
// The file's format is one argument per line. Environment variables may be used
// and are expanded with [os.ExpandEnv].
func LocalConfigArgs(fsys fs.FS, file string) ([]string, error) {
	conf, err := fs.ReadFile(fsys, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read file: %w", err)
	}

	args := []string{}

	expandedConf := os.ExpandEnv(string(conf))
	for line := range strings.SplitSeq(expandedConf, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			args = append(args, line)
		}
	}

	return args, nil
}

// MergedArgs merges the given command line arguments with arguments from the
// environment and the local config file. Command line arguments come last, so
// they take precedence over the other sources.
func MergedArgs(cliArgs []string, fsys fs.FS, file string) ([]string, error) {
	fileArgs, err := LocalConfigArgs(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("local config args: %w", err)
	}

	return slices.Concat(EnvArgs(), fileArgs, cliArgs), nil
}
