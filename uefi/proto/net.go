// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proto

import (
	"unsafe"

	"github.com/usbarmory/go-efiproto/uefi"
)

const (
	EFI_SIMPLE_NETWORK_PROTOCOL_GUID     = "a19832b9-ac25-11d3-9a2d-0090273fc14d"
	EFI_SIMPLE_NETWORK_PROTOCOL_REVISION = 0x00010000
)

var simpleNetworkGUID = uefi.MustParseGUID(EFI_SIMPLE_NETWORK_PROTOCOL_GUID)

// simpleNetwork represents the EFI_SIMPLE_NETWORK_PROTOCOL structure.
type simpleNetwork struct {
	Revision       uint64
	Start          uint64
	Stop           uint64
	Initialize     uint64
	Reset          uint64
	Shutdown       uint64
	ReceiveFilters uint64
	StationAddress uint64
	Statistics     uint64
	MCastIPtoMAC   uint64
	NvData         uint64
	GetStatus      uint64
	Transmit       uint64
	Receive        uint64
	WaitForPacket  uint64
	Mode           uint64
}

// SimpleNetwork represents an EFI Simple Network Protocol instance.
//
// Only the raw interface and its state transitions are exposed, packet
// transmission and reception are not.
type SimpleNetwork struct {
	uefi.Overlay
}

func (*SimpleNetwork) GUID() uefi.GUID {
	return simpleNetworkGUID
}

func (*SimpleNetwork) Layout() uefi.Layout {
	return uefi.LayoutOf[simpleNetwork](
		unsafe.Offsetof(simpleNetwork{}.Start),
		unsafe.Offsetof(simpleNetwork{}.Stop),
		unsafe.Offsetof(simpleNetwork{}.Initialize),
		unsafe.Offsetof(simpleNetwork{}.Shutdown),
	)
}

// Revision returns the protocol revision.
func (sn *SimpleNetwork) Revision() uint64 {
	return uefi.View[simpleNetwork](&sn.Overlay).Revision
}

// Mode returns the address of the EFI_SIMPLE_NETWORK_MODE instance.
func (sn *SimpleNetwork) Mode() uint64 {
	return uefi.View[simpleNetwork](&sn.Overlay).Mode
}

// WaitForPacket returns the event signaled on packet reception.
func (sn *SimpleNetwork) WaitForPacket() uint64 {
	return uefi.View[simpleNetwork](&sn.Overlay).WaitForPacket
}

// Start calls EFI_SIMPLE_NETWORK.Start()
func (sn *SimpleNetwork) Start() error {
	return uefi.CallThis(&sn.Overlay, unsafe.Offsetof(simpleNetwork{}.Start))
}

// Stop calls EFI_SIMPLE_NETWORK.Stop()
func (sn *SimpleNetwork) Stop() error {
	return uefi.CallThis(&sn.Overlay, unsafe.Offsetof(simpleNetwork{}.Stop))
}

// Initialize calls EFI_SIMPLE_NETWORK.Initialize()
func (sn *SimpleNetwork) Initialize(extraRxBufferSize uint64, extraTxBufferSize uint64) error {
	return uefi.CallThis(&sn.Overlay, unsafe.Offsetof(simpleNetwork{}.Initialize), extraRxBufferSize, extraTxBufferSize)
}

// Shutdown calls EFI_SIMPLE_NETWORK.Shutdown()
func (sn *SimpleNetwork) Shutdown() error {
	return uefi.CallThis(&sn.Overlay, unsafe.Offsetof(simpleNetwork{}.Shutdown))
}
