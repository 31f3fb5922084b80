// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package script_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panrec/panrec/internal/recording"
	"github.com/panrec/panrec/internal/script"
)

type fakeDriver struct {
	calls     []string
	revertErr error
}

func (f *fakeDriver) RevertSync(_ context.Context, name string) error {
	f.calls = append(f.calls, "revert_sync "+name)
	return f.revertErr
}

func (f *fakeDriver) RunSerialCmd(
	_ context.Context,
	command string,
) (string, error) {
	f.calls = append(f.calls, "run_serial_cmd "+command)
	return "output of " + command, nil
}

func (f *fakeDriver) RecordCmd(
	_ context.Context,
	command, name string,
) (recording.Recording, error) {
	f.calls = append(f.calls, "record_cmd "+command+" as "+name)
	return recording.New("", name), nil
}

func (f *fakeDriver) EndAnalysis(context.Context) error {
	f.calls = append(f.calls, "end_analysis")
	return nil
}

func loadScript(t *testing.T, content string) *script.Script {
	t.Helper()

	path := filepath.Join(t.TempDir(), "driver.star")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := script.Load(path)
	require.NoError(t, err)

	return s
}

func TestOriginalDriverScript(t *testing.T) {
	s := loadScript(t, `
def run_cmd():
    revert_sync("root")
    record_cmd("sudo dhclient -v -4", recording_name="test")
    end_analysis()

queue_async(run_cmd)
`)

	driver := &fakeDriver{}

	tasks := s.Tasks(driver)
	require.Len(t, tasks, 1)

	require.NoError(t, tasks[0](t.Context()))

	assert.Equal(t, []string{
		"revert_sync root",
		"record_cmd sudo dhclient -v -4 as test",
		"end_analysis",
	}, driver.calls)
}

func TestBuiltinDefaults(t *testing.T) {
	s := loadScript(t, `
def run_cmd():
    revert_sync()
    record_cmd("echo test")

queue_async(run_cmd)
`)

	driver := &fakeDriver{}

	tasks := s.Tasks(driver)
	require.Len(t, tasks, 1)
	require.NoError(t, tasks[0](t.Context()))

	assert.Equal(t, []string{
		"revert_sync root",
		"record_cmd echo test as test",
	}, driver.calls)
}

func TestRunSerialCmdReturnsOutput(t *testing.T) {
	s := loadScript(t, `
def run_cmd():
    output = run_serial_cmd("uname")
    if output != "output of uname":
        fail("unexpected output: " + output)

queue_async(run_cmd)
`)

	driver := &fakeDriver{}

	tasks := s.Tasks(driver)
	require.Len(t, tasks, 1)
	require.NoError(t, tasks[0](t.Context()))
}

func TestMultipleTasksKeepOrder(t *testing.T) {
	s := loadScript(t, `
def first():
    revert_sync("root")

def second():
    end_analysis()

queue_async(first)
queue_async(second)
`)

	driver := &fakeDriver{}

	tasks := s.Tasks(driver)
	require.Len(t, tasks, 2)

	for _, task := range tasks {
		require.NoError(t, task(t.Context()))
	}

	assert.Equal(t, []string{"revert_sync root", "end_analysis"}, driver.calls)
}

func TestGuestBuiltinAtTopLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.star")
	require.NoError(t, os.WriteFile(
		path, []byte(`revert_sync("root")`), 0o644,
	))

	_, err := script.Load(path)

	require.ErrorContains(t, err, script.ErrNotInTask.Error())
}

func TestDriverErrorPropagates(t *testing.T) {
	s := loadScript(t, `
def run_cmd():
    revert_sync("missing")

queue_async(run_cmd)
`)

	revertErr := errors.New("snapshot revert failed")
	driver := &fakeDriver{revertErr: revertErr}

	tasks := s.Tasks(driver)
	require.Len(t, tasks, 1)

	err := tasks[0](t.Context())

	require.ErrorContains(t, err, revertErr.Error())
}

func TestLoadSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.star")
	require.NoError(t, os.WriteFile(
		path, []byte("def broken(:\n"), 0o644,
	))

	_, err := script.Load(path)

	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := script.Load(filepath.Join(t.TempDir(), "missing.star"))

	require.Error(t, err)
}
