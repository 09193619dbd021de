// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proto

import (
	"unsafe"

	"github.com/usbarmory/go-efiproto/uefi"
)

const (
	EFI_LOADED_IMAGE_PROTOCOL_GUID     = "5b1b31a1-9562-11d2-8e3f-00a0c969723b"
	EFI_LOADED_IMAGE_PROTOCOL_REVISION = 0x00001000
)

var loadedImageGUID = uefi.MustParseGUID(EFI_LOADED_IMAGE_PROTOCOL_GUID)

// loadedImage represents the EFI_LOADED_IMAGE_PROTOCOL structure.
type loadedImage struct {
	Revision        uint32
	_               uint32
	ParentHandle    uint64
	SystemTable     uint64
	DeviceHandle    uint64
	FilePath        uint64
	Reserved        uint64
	LoadOptionsSize uint32
	_               uint32
	LoadOptions     uint64
	ImageBase       uint64
	ImageSize       uint64
	ImageCodeType   uefi.MemoryType
	ImageDataType   uefi.MemoryType
	Unload          uint64
}

// LoadedImage represents an EFI Loaded Image Protocol instance, describing an
// executable image loaded into memory.
type LoadedImage struct {
	uefi.Overlay
}

// GUID returns the EFI Loaded Image Protocol GUID.
func (*LoadedImage) GUID() uefi.GUID {
	return loadedImageGUID
}

// Layout returns the EFI Loaded Image Protocol layout.
func (*LoadedImage) Layout() uefi.Layout {
	return uefi.LayoutOf[loadedImage](
		unsafe.Offsetof(loadedImage{}.Unload),
	)
}

func (li *LoadedImage) view() loadedImage {
	return uefi.View[loadedImage](&li.Overlay)
}

// Revision returns the protocol revision.
func (li *LoadedImage) Revision() uint32 {
	return li.view().Revision
}

// Parent returns the handle of the image which loaded this one, a NULL handle
// is returned if the image was loaded by the firmware boot manager.
func (li *LoadedImage) Parent() uefi.Handle {
	return uefi.NewHandle(li.view().ParentHandle)
}

// Device returns the handle of the device the image was loaded from.
func (li *LoadedImage) Device() uefi.Handle {
	return uefi.NewHandle(li.view().DeviceHandle)
}

// FilePath returns the address of the image file path, relative to its
// device, as an EFI_DEVICE_PATH_PROTOCOL instance.
func (li *LoadedImage) FilePath() uint64 {
	return li.view().FilePath
}

// LoadOptionsSize returns the size in bytes of the image load options.
func (li *LoadedImage) LoadOptionsSize() uint32 {
	return li.view().LoadOptionsSize
}

// LoadOptions returns the address of the image load options.
func (li *LoadedImage) LoadOptions() uint64 {
	return li.view().LoadOptions
}

// ImageBase returns the base address where the image was loaded.
func (li *LoadedImage) ImageBase() uint64 {
	return li.view().ImageBase
}

// ImageSize returns the size in bytes of the loaded image.
func (li *LoadedImage) ImageSize() uint64 {
	return li.view().ImageSize
}

// ImageCodeType returns the memory type of the image code sections.
func (li *LoadedImage) ImageCodeType() uefi.MemoryType {
	return li.view().ImageCodeType
}

// ImageDataType returns the memory type of the image data sections.
func (li *LoadedImage) ImageDataType() uefi.MemoryType {
	return li.view().ImageDataType
}

// Unload calls EFI_LOADED_IMAGE_PROTOCOL.Unload(), which transfers control to
// firmware to unload the image from memory. EFI_UNSUPPORTED is returned if
// the image does not support unloading.
func (li *LoadedImage) Unload() error {
	if li.view().Unload == 0 {
		return uefi.EFI_UNSUPPORTED
	}

	return uefi.CallHandle(&li.Overlay, unsafe.Offsetof(loadedImage{}.Unload))
}
