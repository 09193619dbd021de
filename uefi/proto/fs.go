// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proto

import (
	"github.com/usbarmory/go-efiproto/uefi"
)

const (
	EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID     = "964e5b22-6459-11d2-8e39-00a0c969723b"
	EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION = 0x00010000
)

var simpleFileSystemGUID = uefi.MustParseGUID(EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID)

// simpleFileSystem represents the EFI_SIMPLE_FILE_SYSTEM_PROTOCOL structure.
type simpleFileSystem struct {
	Revision   uint64
	OpenVolume uint64
}

// SimpleFileSystem represents an EFI Simple File System Protocol instance.
//
// Only the raw interface is exposed, volumes are not opened.
type SimpleFileSystem struct {
	uefi.Overlay
}

func (*SimpleFileSystem) GUID() uefi.GUID {
	return simpleFileSystemGUID
}

func (*SimpleFileSystem) Layout() uefi.Layout {
	return uefi.LayoutOf[simpleFileSystem]()
}

// Revision returns the protocol revision.
func (sfs *SimpleFileSystem) Revision() uint64 {
	return uefi.View[simpleFileSystem](&sfs.Overlay).Revision
}
