// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package panrec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panrec/panrec/internal/panrec"
)

func TestGeneric(t *testing.T) {
	tests := []struct {
		arch        string
		executable  string
		expectedErr error
	}{
		{arch: "x86_64", executable: "panda-system-x86_64"},
		{arch: "i386", executable: "panda-system-i386"},
		{arch: "arm", executable: "panda-system-arm"},
		{arch: "aarch64", executable: "panda-system-aarch64"},
		{arch: "mips", executable: "panda-system-mips"},
		{arch: "mipsel", executable: "panda-system-mipsel"},
		{arch: "sparc", expectedErr: panrec.ErrArchNotSupported},
		{arch: "", expectedErr: panrec.ErrArchNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			profile, err := panrec.Generic(tt.arch)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.arch, profile.Arch)
			assert.Equal(t, tt.executable, profile.Executable)
			assert.NotNil(t, profile.Prompt)
			assert.NotZero(t, profile.Memory)
		})
	}
}

func TestArches(t *testing.T) {
	arches := panrec.Arches()

	assert.Equal(
		t,
		[]string{"aarch64", "arm", "i386", "mips", "mipsel", "x86_64"},
		arches,
	)
}

func TestCommandSpec(t *testing.T) {
	t.Run("disk image profile", func(t *testing.T) {
		profile, err := panrec.Generic("x86_64")
		require.NoError(t, err)

		spec := profile.CommandSpec(
			"/images", "/work", "/run/mon.sock", "/run/ser.sock",
		)

		assert.Equal(
			t,
			"/images/bionic-server-cloudimg-amd64-noaslr-nokaslr.qcow2",
			spec.Image,
		)
		assert.Empty(t, spec.Kernel)
		assert.Equal(t, "/work", spec.WorkDir)
		assert.Equal(t, "/run/mon.sock", spec.MonitorSocket)
		assert.Equal(t, "/run/ser.sock", spec.SerialSocket)

		require.NoError(t, spec.Validate())
	})

	t.Run("kernel boot profile", func(t *testing.T) {
		profile, err := panrec.Generic("arm")
		require.NoError(t, err)

		spec := profile.CommandSpec(
			"/images", "/work", "/run/mon.sock", "/run/ser.sock",
		)

		assert.Equal(t, "/images/arm_wheezy.qcow2", spec.Image)
		assert.Equal(t, "/images/vmlinuz-3.2.0-4-versatile", spec.Kernel)
		assert.Equal(
			t, "/images/initrd.img-3.2.0-4-versatile", spec.Initrd,
		)
		assert.Equal(t, []string{"root=/dev/sda1"}, spec.KernelArgs)
		assert.Equal(t, "versatilepb", spec.Machine)

		require.NoError(t, spec.Validate())
	})
}
