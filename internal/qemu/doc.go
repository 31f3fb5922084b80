// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu composes and runs PANDA system emulation commands. It expects
// the required panda-system binary to be present on the system.
//
// The guest system is driven through two unix socket chardevs: the QEMU
// human monitor and the first serial console. Both sockets are created by
// the emulator process in server mode, so clients connect after the process
// has started.
//
// Recordings are written by the emulator into its working directory, which
// is configurable via [CommandSpec.WorkDir]. The emulator always runs with
// TCG. KVM acceleration is not offered since record and replay require
// deterministic whole-system emulation.
package qemu
