// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
)

// Handle represents an EFI_HANDLE, an opaque reference to an object tracked
// by firmware (e.g. an image, a device or a controller).
//
// Handles are never owned: their validity is controlled by firmware alone.
// The only meaningful relation between handles is equality.
type Handle struct {
	value uint64
}

// NewHandle returns the Handle for the argument firmware value, it is meant to
// be used by firmware collaborators only.
func NewHandle(value uint64) Handle {
	return Handle{value: value}
}

// IsNull reports whether the handle is NULL.
func (h Handle) IsNull() bool {
	return h.value == 0
}

// String returns the handle representation for diagnostic purposes.
func (h Handle) String() string {
	return fmt.Sprintf("%#x", h.value)
}

// Equal reports whether both handles reference the same firmware object.
func (h Handle) Equal(other Handle) bool {
	return h.value == other.value
}
