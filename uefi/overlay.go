// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"
	"slices"
	"unsafe"
)

// Overlay represents a live view over a protocol interface resident in
// firmware memory, it must be embedded by every protocol overlay type.
//
// An Overlay is only valid between a successful Acquire and its Close (or the
// Close of the owning Session), field access after release panics.
type Overlay struct {
	handle Handle
	guid   GUID
	addr   uint64

	buf     []byte
	entries []uintptr
	release func()
	session *Session
}

func (o *Overlay) overlay() *Overlay {
	return o
}

// Handle returns the handle on which the protocol has been acquired.
func (o *Overlay) Handle() Handle {
	return o.handle
}

// Address returns the protocol interface address.
func (o *Overlay) Address() uint64 {
	return o.addr
}

// Released reports whether the overlay is no longer accessible.
func (o *Overlay) Released() bool {
	return o.buf == nil
}

// Close releases the protocol acquisition, see [Session.Release].
func (o *Overlay) Close() error {
	if o.session == nil {
		return ErrReleased
	}

	return o.session.Release(o)
}

// Call invokes the firmware entry point stored at offset off within the
// protocol interface of o, with the firmware native calling convention. It is
// meant for overlay packages implementing member functions.
//
// Only offsets declared as entry points in the overlay Layout can be invoked,
// any other offset results in ErrInvalidEntryPoint. Invoking an entry point
// transfers control to firmware which might alter global firmware state. A
// NULL entry point results in ErrInvalidInterface, otherwise the EFI_STATUS is
// returned as error for the error class and nil for success and warnings.
func Call(o *Overlay, off uintptr, args ...uint64) (err error) {
	if o.session == nil || o.Released() {
		return ErrReleased
	}

	if !slices.Contains(o.entries, off) || off+8 > uintptr(len(o.buf)) {
		return fmt.Errorf("%w, offset %#x", ErrInvalidEntryPoint, off)
	}

	if binary.LittleEndian.Uint64(o.buf[off:]) == 0 {
		return fmt.Errorf("%w, NULL entry point at %#x", ErrInvalidInterface, o.addr+uint64(off))
	}

	return o.session.call(o.addr+uint64(off), args...)
}

// CallHandle is like Call but passes the acquisition handle as first
// argument.
func CallHandle(o *Overlay, off uintptr, args ...uint64) (err error) {
	return Call(o, off, append([]uint64{o.handle.value}, args...)...)
}

// CallThis is like Call but passes the protocol interface address as first
// argument, as required by most protocol member functions.
func CallThis(o *Overlay, off uintptr, args ...uint64) (err error) {
	return Call(o, off, append([]uint64{o.addr}, args...)...)
}

// View returns a copy of the firmware structure L overlaid on the protocol
// interface memory of o, read at the time of the call. It is the only gate to
// field access for overlay packages.
func View[L any](o *Overlay) L {
	l := LayoutOf[L]()

	if o.Released() {
		panic(ErrReleased)
	}

	if l.Size > uintptr(len(o.buf)) || o.addr%uint64(l.Align) != 0 {
		panic(fmt.Sprintf("invalid view, %d bytes at %#x", l.Size, o.addr))
	}

	return *(*L)(unsafe.Pointer(&o.buf[0]))
}
