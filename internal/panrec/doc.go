// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package panrec drives a PANDA whole system emulator session.
//
// A [Session] is created from a generic guest [Profile], tasks are queued
// with [Session.QueueAsync] and executed by [Session.Run] once the machine
// is active. Tasks are run one after another and block emulator interaction
// for each other, mirroring the serialized task scheduling of the PANDA
// scripting interface.
//
// The typical task reverts to a named snapshot, types a shell command into
// the guest via the emulated serial console, captures a recording of the
// execution, and ends the analysis.
package panrec
