// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proto

import (
	"unsafe"

	"github.com/usbarmory/go-efiproto/uefi"
)

const EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID = "9042a9de-23dc-4a38-96fb-7aded080516a"

var graphicsOutputGUID = uefi.MustParseGUID(EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID)

// graphicsOutput represents the EFI_GRAPHICS_OUTPUT_PROTOCOL structure.
type graphicsOutput struct {
	QueryMode uint64
	SetMode   uint64
	Blt       uint64
	Mode      uint64
}

// GraphicsOutput represents an EFI Graphics Output Protocol instance.
type GraphicsOutput struct {
	uefi.Overlay
}

func (*GraphicsOutput) GUID() uefi.GUID {
	return graphicsOutputGUID
}

func (*GraphicsOutput) Layout() uefi.Layout {
	return uefi.LayoutOf[graphicsOutput](
		unsafe.Offsetof(graphicsOutput{}.SetMode),
	)
}

// Mode returns the address of the EFI_GRAPHICS_OUTPUT_PROTOCOL_MODE instance.
func (gop *GraphicsOutput) Mode() uint64 {
	return uefi.View[graphicsOutput](&gop.Overlay).Mode
}

// SetMode calls EFI_GRAPHICS_OUTPUT_PROTOCOL.SetMode().
func (gop *GraphicsOutput) SetMode(mode uint32) error {
	return uefi.CallThis(&gop.Overlay, unsafe.Offsetof(graphicsOutput{}.SetMode), uint64(mode))
}
