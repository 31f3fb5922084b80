// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"strconv"
	"strings"
)

// CommandSpec defines the parameters for a [Command].
type CommandSpec struct {
	// Path to the panda-system binary.
	Executable string

	// Path to the guest disk image. Required unless Kernel is set for
	// boards that boot a kernel directly.
	Image string

	// Path to a kernel image for boards booted without a disk BIOS, like
	// the generic arm profile. Optional.
	Kernel string

	// Path to an initrd to boot with. Only used together with Kernel.
	Initrd string

	// Kernel command line passed via -append. Only used together with
	// Kernel.
	KernelArgs []string

	// QEMU machine type to use. Depends on the emulator binary used.
	Machine string

	// CPU type to use. Depends on machine type and emulator binary used.
	CPU string

	// Number of CPUs for the guest.
	SMP uint64

	// Memory for the machine in MB.
	Memory uint64

	// Path of the unix socket the human monitor is served on.
	MonitorSocket string

	// Path of the unix socket the first serial console is served on.
	SerialSocket string

	// How the guest NIC is backed. Empty means [NetworkModeUser].
	NetworkMode NetworkMode

	// Host tap device name for [NetworkModeTap].
	TapDevice string

	// Working directory of the emulator process. Recording artifacts are
	// written here.
	WorkDir string

	// ExtraArgs are extra arguments that are passed to the emulator
	// command. They must not interfere with the essential arguments set by
	// the command itself or an error will be returned on [Command.Run].
	ExtraArgs []Argument
}

// Validate checks for known incompatibilities.
func (s *CommandSpec) Validate() error {
	if s.Image == "" && s.Kernel == "" {
		return ErrImageMissing
	}

	if s.NetworkMode != "" && !s.NetworkMode.isKnown() {
		return &ArgumentError{
			"unknown network mode: " + string(s.NetworkMode),
		}
	}

	if s.NetworkMode == NetworkModeTap && s.TapDevice == "" {
		return &ArgumentError{"tap network mode requires a tap device"}
	}

	if s.MonitorSocket == "" || s.SerialSocket == "" {
		return &ArgumentError{"monitor and serial socket paths required"}
	}

	return nil
}

// arguments compiles the argument list for the emulator command.
func (s *CommandSpec) arguments() []Argument {
	args := []Argument{}

	if s.Machine != "" {
		args = append(args, UniqueArg("M", s.Machine))
	}

	if s.CPU != "" {
		args = append(args, UniqueArg("cpu", s.CPU))
	}

	if s.SMP != 0 {
		args = append(args, UniqueArg("smp", strconv.FormatUint(s.SMP, 10)))
	}

	if s.Memory != 0 {
		args = append(args, UniqueArg("m", strconv.FormatUint(s.Memory, 10)))
	}

	if s.Image != "" {
		args = append(args, UniqueArg("hda", s.Image))
	}

	if s.Kernel != "" {
		args = append(args, UniqueArg("kernel", s.Kernel))

		if s.Initrd != "" {
			args = append(args, UniqueArg("initrd", s.Initrd))
		}

		if len(s.KernelArgs) > 0 {
			kernelCmdline := strings.Join(s.KernelArgs, " ")
			args = append(args, RepeatableArg("append", kernelCmdline))
		}
	}

	// Monitor and serial console are served on unix sockets so the host
	// side can attach once the process is up.
	args = append(args,
		UniqueArg("monitor", unixSocketBackend(s.MonitorSocket)),
		RepeatableArg("serial", unixSocketBackend(s.SerialSocket)),
	)

	args = append(args, s.networkArgs()...)

	args = append(args,
		// Headless operation.
		UniqueArg("display", "none"),
		// Guest must not reboot, e.g. after a panic.
		UniqueArg("no-reboot"),
	)

	args = append(args, s.ExtraArgs...)

	return args
}

func (s *CommandSpec) networkArgs() []Argument {
	switch s.NetworkMode {
	case NetworkModeNone:
		return []Argument{RepeatableArg("net", "none")}
	case NetworkModeTap:
		tap := "tap,ifname=" + s.TapDevice + ",script=no,downscript=no"

		return []Argument{
			RepeatableArg("net", "nic"),
			RepeatableArg("net", tap),
		}
	default:
		// The generic profiles rely on user mode networking, like the
		// snapshots they ship were taken with.
		return []Argument{
			RepeatableArg("net", "nic"),
			RepeatableArg("net", "user"),
		}
	}
}

func unixSocketBackend(path string) string {
	return "unix:" + path + ",server,nowait"
}
