// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package network prepares host side networking for the guest.
//
// The default guest command is a DHCP client, so besides QEMU user mode
// networking the guest NIC can be attached to a host tap device. Creating
// and configuring the tap device requires CAP_NET_ADMIN.
package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

var (
	// ErrTapNameInvalid is returned if a tap device name is not a valid
	// Linux interface name.
	ErrTapNameInvalid = errors.New("invalid tap device name")

	// ErrNotTap is returned if a link with the requested name exists but
	// is not a tuntap device.
	ErrNotTap = errors.New("existing link is not a tap device")
)

// ValidateTapName checks that the given name is usable as a Linux network
// interface name.
func ValidateTapName(name string) error {
	if name == "" || len(name) >= unix.IFNAMSIZ {
		return fmt.Errorf("%w: %q", ErrTapNameInvalid, name)
	}

	if strings.ContainsAny(name, "/ \t\n") {
		return fmt.Errorf("%w: %q", ErrTapNameInvalid, name)
	}

	return nil
}

// EnsureTap makes sure a tap device with the given name exists and is up.
//
// An existing tap device is reused, anything else with the same name is an
// error. It reports whether the device was created, so callers can remove
// devices they own with [RemoveTap] once they are done.
func EnsureTap(name string) (bool, error) {
	err := ValidateTapName(name)
	if err != nil {
		return false, err
	}

	created := false

	link, err := netlink.LinkByName(name)

	var notFound netlink.LinkNotFoundError
	if errors.As(err, &notFound) {
		link, err = addTap(name)
		created = err == nil
	}

	if err != nil {
		return created, fmt.Errorf("tap %s: %w", name, err)
	}

	if link.Type() != "tuntap" {
		return created, fmt.Errorf("%w: %s is %s", ErrNotTap, name, link.Type())
	}

	err = netlink.LinkSetUp(link)
	if err != nil {
		return created, fmt.Errorf("tap %s up: %w", name, err)
	}

	return created, nil
}

// RemoveTap deletes the tap device with the given name. A missing device is
// not an error.
func RemoveTap(name string) error {
	link, err := netlink.LinkByName(name)

	var notFound netlink.LinkNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("tap %s: %w", name, err)
	}

	err = netlink.LinkDel(link)
	if err != nil {
		return fmt.Errorf("tap %s delete: %w", name, err)
	}

	return nil
}

func addTap(name string) (netlink.Link, error) {
	tap := &netlink.Tuntap{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		Mode:      netlink.TUNTAP_MODE_TAP,
		Flags:     netlink.TUNTAP_DEFAULTS,
	}

	err := netlink.LinkAdd(tap)
	if err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}

	return netlink.LinkByName(name)
}
