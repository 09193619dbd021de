// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proto

import (
	"unsafe"

	"github.com/usbarmory/go-efiproto/uefi"
)

const EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL_GUID = "387477c2-69c7-11d2-8e39-00a0c969723b"

var simpleTextOutputGUID = uefi.MustParseGUID(EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL_GUID)

// simpleTextOutput represents the EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL structure.
type simpleTextOutput struct {
	Reset             uint64
	OutputString      uint64
	TestString        uint64
	QueryMode         uint64
	SetMode           uint64
	SetAttribute      uint64
	ClearScreen       uint64
	SetCursorPosition uint64
	EnableCursor      uint64
	Mode              uint64
}

// SimpleTextOutput represents an EFI Simple Text Output Protocol instance.
type SimpleTextOutput struct {
	uefi.Overlay
}

func (*SimpleTextOutput) GUID() uefi.GUID {
	return simpleTextOutputGUID
}

func (*SimpleTextOutput) Layout() uefi.Layout {
	return uefi.LayoutOf[simpleTextOutput](
		unsafe.Offsetof(simpleTextOutput{}.Reset),
		unsafe.Offsetof(simpleTextOutput{}.SetMode),
		unsafe.Offsetof(simpleTextOutput{}.SetAttribute),
		unsafe.Offsetof(simpleTextOutput{}.ClearScreen),
		unsafe.Offsetof(simpleTextOutput{}.SetCursorPosition),
		unsafe.Offsetof(simpleTextOutput{}.EnableCursor),
	)
}

// Mode returns the address of the SIMPLE_TEXT_OUTPUT_MODE instance.
func (c *SimpleTextOutput) Mode() uint64 {
	return uefi.View[simpleTextOutput](&c.Overlay).Mode
}

// Reset calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.Reset().
func (c *SimpleTextOutput) Reset(extendedVerification bool) error {
	return uefi.CallThis(&c.Overlay, unsafe.Offsetof(simpleTextOutput{}.Reset), boolArg(extendedVerification))
}

// SetMode calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetMode().
func (c *SimpleTextOutput) SetMode(mode uint64) error {
	return uefi.CallThis(&c.Overlay, unsafe.Offsetof(simpleTextOutput{}.SetMode), mode)
}

// SetAttribute calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetAttribute().
func (c *SimpleTextOutput) SetAttribute(attr uint64) error {
	return uefi.CallThis(&c.Overlay, unsafe.Offsetof(simpleTextOutput{}.SetAttribute), attr)
}

// ClearScreen calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen().
func (c *SimpleTextOutput) ClearScreen() error {
	return uefi.CallThis(&c.Overlay, unsafe.Offsetof(simpleTextOutput{}.ClearScreen))
}

// SetCursorPosition calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetCursorPosition().
func (c *SimpleTextOutput) SetCursorPosition(column uint64, row uint64) error {
	return uefi.CallThis(&c.Overlay, unsafe.Offsetof(simpleTextOutput{}.SetCursorPosition), column, row)
}

// EnableCursor calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.EnableCursor().
func (c *SimpleTextOutput) EnableCursor(visible bool) error {
	return uefi.CallThis(&c.Overlay, unsafe.Offsetof(simpleTextOutput{}.EnableCursor), boolArg(visible))
}

func boolArg(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}
