// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import "slices"

const (
	// NetworkModeNone gives the guest no network device at all.
	NetworkModeNone NetworkMode = "none"
	// NetworkModeUser is QEMU user mode networking. The guest sees a DHCP
	// server and NAT, no host configuration is required.
	NetworkModeUser NetworkMode = "user"
	// NetworkModeTap attaches the guest NIC to a host tap device. The tap
	// device must exist and be up, see the network package.
	NetworkModeTap NetworkMode = "tap"
)

// NetworkMode represents the way the guest NIC is backed on the host.
type NetworkMode string

func (m *NetworkMode) isKnown() bool {
	knownNetworkModes := []NetworkMode{
		NetworkModeNone,
		NetworkModeUser,
		NetworkModeTap,
	}

	return slices.Contains(knownNetworkModes, *m)
}

// String implements [fmt.Stringer].
func (m *NetworkMode) String() string {
	if !m.isKnown() {
		return ""
	}

	return string(*m)
}

// MarshalText implements [encoding.TextMarshaler].
func (m NetworkMode) MarshalText() ([]byte, error) {
	s := m.String()
	if s == "" {
		return nil, ErrNetworkModeInvalid
	}

	return []byte(s), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (m *NetworkMode) UnmarshalText(text []byte) error {
	mode := NetworkMode(text)

	if !mode.isKnown() {
		return ErrNetworkModeInvalid
	}

	*m = mode

	return nil
}
