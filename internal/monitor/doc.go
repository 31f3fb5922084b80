// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package monitor implements a client for the QEMU human monitor protocol
// (HMP) served on a unix socket chardev.
//
// PANDA exposes its record and replay control as regular monitor commands
// (begin_record, end_record), next to the stock QEMU commands used here
// (loadvm, quit). The protocol is line based: the monitor prints a banner,
// then a "(qemu) " prompt, echoes each command and prints any output before
// the next prompt.
package monitor
