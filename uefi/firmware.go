// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

// ProtocolDatabase represents the firmware handle/protocol database services.
//
// Both methods are synchronous, errors are expected to carry the firmware
// Status unchanged.
type ProtocolDatabase interface {
	// OpenProtocol resolves the protocol interface identified by guid on
	// the argument handle, returning its address.
	OpenProtocol(handle Handle, guid GUID) (addr uint64, err error)

	// CloseProtocol releases a protocol interface previously resolved with
	// OpenProtocol.
	CloseProtocol(handle Handle, guid GUID) (err error)
}

// Memory represents access to firmware owned memory.
type Memory interface {
	// Map returns a live view of size bytes of firmware memory at addr,
	// release must be called once the view is no longer used.
	Map(addr uint64, size int) (buf []byte, release func(), err error)
}

// Caller represents the ability to transfer control to firmware.
type Caller interface {
	// Call invokes, with the firmware native calling convention, the entry
	// point stored at address slot and returns its EFI_STATUS.
	Call(slot uint64, args ...uint64) Status
}

// Firmware represents the collaborator required by a Session.
type Firmware interface {
	ProtocolDatabase
	Memory
	Caller
}

// HandleLocator is implemented by firmware collaborators which can enumerate
// handles supporting a given protocol.
type HandleLocator interface {
	LocateHandles(guid GUID) (handles []Handle, err error)
}

// Exiter is implemented by firmware collaborators which can terminate boot
// services.
type Exiter interface {
	ExitBootServices() (err error)
}
