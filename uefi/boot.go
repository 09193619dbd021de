// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package uefi

import (
	"encoding/binary"

	"github.com/usbarmory/tamago/dma"
)

// EFI Boot Services offsets
const (
	getMemoryMap       = 0x038
	freePool           = 0x048
	exitBootServices   = 0x0e8
	openProtocol       = 0x118
	closeProtocol      = 0x120
	locateHandleBuffer = 0x138
)

// EFI_OPEN_PROTOCOL attributes
const (
	EFI_OPEN_PROTOCOL_BY_HANDLE_PROTOCOL = 0x00000001
	EFI_OPEN_PROTOCOL_GET_PROTOCOL       = 0x00000002
)

// EFI_LOCATE_SEARCH_TYPE
const byProtocol = 2

const (
	align = 8

	memoryDescriptorSize = 48
	maxEntries           = 1000
)

// dmaMemory implements [Memory] over physical memory through DMA regions.
type dmaMemory struct{}

func (dmaMemory) Map(addr uint64, size int) (buf []byte, release func(), err error) {
	n := alignUp(size, align)

	r, err := dma.NewRegion(uint(addr), n, true)

	if err != nil {
		return
	}

	ptr, buf := r.Reserve(size, 0)

	return buf, func() { r.Release(ptr) }, nil
}

// BootServices represents an EFI Boot Services instance, it implements
// [Firmware], [HandleLocator] and [Exiter].
type BootServices struct {
	dmaMemory

	base        uint64
	imageHandle Handle
}

// Call invokes the firmware entry point stored at address slot.
func (s *BootServices) Call(slot uint64, args ...uint64) Status {
	return Status(callService(slot, args))
}

// OpenProtocol calls EFI_BOOT_SERVICES.OpenProtocol(), the image handle is
// used as agent.
func (s *BootServices) OpenProtocol(handle Handle, guid GUID) (addr uint64, err error) {
	status := callService(s.base+openProtocol,
		[]uint64{
			handle.value,
			ptrval(&guid),
			ptrval(&addr),
			s.imageHandle.value,
			0,
			EFI_OPEN_PROTOCOL_BY_HANDLE_PROTOCOL,
		},
	)

	return addr, parseStatus(status)
}

// CloseProtocol calls EFI_BOOT_SERVICES.CloseProtocol().
func (s *BootServices) CloseProtocol(handle Handle, guid GUID) (err error) {
	status := callService(s.base+closeProtocol,
		[]uint64{
			handle.value,
			ptrval(&guid),
			s.imageHandle.value,
			0,
		},
	)

	return parseStatus(status)
}

// LocateHandles calls EFI_BOOT_SERVICES.LocateHandleBuffer() for all
// handles supporting the argument protocol.
func (s *BootServices) LocateHandles(guid GUID) (handles []Handle, err error) {
	var count uint64
	var addr uint64

	status := callService(s.base+locateHandleBuffer,
		[]uint64{
			byProtocol,
			ptrval(&guid),
			0,
			ptrval(&count),
			ptrval(&addr),
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	defer callService(s.base+freePool, []uint64{addr})

	buf, release, err := s.Map(addr, int(count)*8)

	if err != nil {
		return
	}

	defer release()

	for i := 0; i < int(count); i++ {
		handles = append(handles, NewHandle(binary.LittleEndian.Uint64(buf[i*8:])))
	}

	return
}

// mapKey calls EFI_BOOT_SERVICES.GetMemoryMap() to obtain the current memory
// map key.
func (s *BootServices) mapKey() (key uint64, err error) {
	var descriptorSize uint64
	var descriptorVersion uint32

	size := uint64(memoryDescriptorSize * maxEntries)
	buf := make([]byte, size)

	status := callService(s.base+getMemoryMap,
		[]uint64{
			ptrval(&size),
			ptrval(&buf[0]),
			ptrval(&key),
			ptrval(&descriptorSize),
			ptrval(&descriptorVersion),
		},
	)

	return key, parseStatus(status)
}

// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices().
func (s *BootServices) ExitBootServices() (err error) {
	key, err := s.mapKey()

	if err != nil {
		return
	}

	status := callService(s.base+exitBootServices,
		[]uint64{
			s.imageHandle.value,
			key,
		},
	)

	return parseStatus(status)
}
