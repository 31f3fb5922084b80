// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package console provides expect style interaction with a guest serial
// console served on a unix socket chardev.
//
// The guest shell echoes typed input and terminates its output with a
// prompt, so the two primitives are typing raw input and reading until a
// prompt pattern matches.
package console
