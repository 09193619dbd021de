// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package proto implements overlays for standard UEFI protocols, following
// the specifications at:
//
//	https://uefi.org/specs/UEFI/2.10/
//
// Each overlay mirrors the x64 memory layout of its protocol interface and
// reads firmware memory on every accessor invocation. Pointer fields are only
// exposed as opaque addresses and function pointer fields only through
// methods invoking them.
package proto

import (
	"github.com/usbarmory/go-efiproto/uefi"
)

var standard = uefi.MustNewNamespace(
	uefi.Bind[LoadedImage](),
	uefi.Bind[SimpleFileSystem](),
	uefi.Bind[GraphicsOutput](),
	uefi.Bind[SimpleNetwork](),
	uefi.Bind[SimpleTextOutput](),
)

// Namespace returns the namespace of all protocol overlays defined in this
// package.
func Namespace() *uefi.Namespace {
	return standard
}
