// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package panrec

import (
	"path/filepath"
	"regexp"
	"slices"

	"github.com/panrec/panrec/internal/qemu"
)

// DefaultSnapshot is the snapshot name the generic guest images ship: the
// machine booted to a root shell on the serial console.
const DefaultSnapshot = "root"

// Profile describes a generic guest system: which emulator binary to use,
// which image to boot and how the guest shell announces itself.
//
// Image, Kernel and Initrd are file names that are resolved against the
// image directory by [Profile.CommandSpec].
type Profile struct {
	// Arch is the generic guest architecture identifier, like "x86_64".
	Arch string

	// Executable is the name of the panda-system binary.
	Executable string

	// Image is the guest disk image file name.
	Image string

	// Kernel and Initrd are set for boards that boot a kernel directly.
	Kernel string
	Initrd string

	// KernelArgs is the kernel command line for direct kernel boot.
	KernelArgs []string

	// Machine is the QEMU machine type. Empty selects the binary default.
	Machine string

	// CPU is the CPU type. Empty selects the machine default.
	CPU string

	// Memory for the machine in MB.
	Memory uint64

	// Prompt matches the guest root shell prompt on the serial console.
	Prompt *regexp.Regexp
}

// The generic profiles match the qcow images the PANDA project publishes
// for them, including the "root" snapshot taken at a root serial shell.
var genericProfiles = map[string]Profile{
	"x86_64": {
		Arch:       "x86_64",
		Executable: "panda-system-x86_64",
		Image:      "bionic-server-cloudimg-amd64-noaslr-nokaslr.qcow2",
		Memory:     1024,
		Prompt:     regexp.MustCompile(`root@ubuntu:[^#]*# `),
	},
	"i386": {
		Arch:       "i386",
		Executable: "panda-system-i386",
		Image:      "ubuntu_1604_mini.qcow2",
		Memory:     1024,
		Prompt:     regexp.MustCompile(`root@instance-1:[^#]*# `),
	},
	"arm": {
		Arch:       "arm",
		Executable: "panda-system-arm",
		Image:      "arm_wheezy.qcow2",
		Kernel:     "vmlinuz-3.2.0-4-versatile",
		Initrd:     "initrd.img-3.2.0-4-versatile",
		KernelArgs: []string{"root=/dev/sda1"},
		Machine:    "versatilepb",
		Memory:     256,
		Prompt:     regexp.MustCompile(`root@debian-armel:[^#]*# `),
	},
	"aarch64": {
		Arch:       "aarch64",
		Executable: "panda-system-aarch64",
		Image:      "aarch64_focal.qcow2",
		Machine:    "virt",
		CPU:        "cortex-a57",
		Memory:     1024,
		Prompt:     regexp.MustCompile(`root@ubuntu:[^#]*# `),
	},
	"mips": {
		Arch:       "mips",
		Executable: "panda-system-mips",
		Image:      "debian_wheezy_mips_standard.qcow2",
		Kernel:     "vmlinux-2.6.32-5-4kc-malta",
		KernelArgs: []string{"root=/dev/sda1"},
		Machine:    "malta",
		Memory:     256,
		Prompt:     regexp.MustCompile(`root@debian-mips:[^#]*# `),
	},
	"mipsel": {
		Arch:       "mipsel",
		Executable: "panda-system-mipsel",
		Image:      "debian_wheezy_mipsel_standard.qcow2",
		Kernel:     "vmlinux-2.6.32-5-4kc-malta",
		KernelArgs: []string{"root=/dev/sda1"},
		Machine:    "malta",
		Memory:     256,
		Prompt:     regexp.MustCompile(`root@debian-mipsel:[^#]*# `),
	},
}

// Generic returns the built-in [Profile] for the given guest architecture
// identifier.
func Generic(arch string) (Profile, error) {
	profile, exists := genericProfiles[arch]
	if !exists {
		return Profile{}, ErrArchNotSupported
	}

	return profile, nil
}

// Arches returns the sorted list of supported generic architecture
// identifiers.
func Arches() []string {
	arches := make([]string, 0, len(genericProfiles))
	for arch := range genericProfiles {
		arches = append(arches, arch)
	}

	slices.Sort(arches)

	return arches
}

// CommandSpec builds the emulator command spec for the profile.
//
// Image file names are resolved against imageDir. Individual fields can
// still be overridden before building the [qemu.Command].
func (p Profile) CommandSpec(
	imageDir, workDir, monitorSocket, serialSocket string,
) qemu.CommandSpec {
	spec := qemu.CommandSpec{
		Executable:    p.Executable,
		Machine:       p.Machine,
		CPU:           p.CPU,
		Memory:        p.Memory,
		KernelArgs:    p.KernelArgs,
		MonitorSocket: monitorSocket,
		SerialSocket:  serialSocket,
		WorkDir:       workDir,
	}

	if p.Image != "" {
		spec.Image = filepath.Join(imageDir, p.Image)
	}

	if p.Kernel != "" {
		spec.Kernel = filepath.Join(imageDir, p.Kernel)
	}

	if p.Initrd != "" {
		spec.Initrd = filepath.Join(imageDir, p.Initrd)
	}

	return spec
}
