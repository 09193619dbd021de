// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

// Advanced Configuration and Power Interface Specification (ACPI)
// Version 6.0 - Table 15-312 Address Range Types12
const AddressRangePersistentMemory = 7

// PageSize represents the EFI page size in bytes
const PageSize = 4096 // 4 KiB

// MemoryType represents an EFI_MEMORY_TYPE value.
//
// Values outside the defined set (e.g. OEM or OS loader ranges) are valid and
// preserved.
type MemoryType uint32

// EFI_MEMORY_TYPE
const (
	EfiReservedMemoryType MemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiUnacceptedMemoryType
	EfiMaxMemoryType
)

// EFI_MEMORY_TYPE reserved ranges
const (
	MemoryTypeOEMStart MemoryType = 0x70000000
	MemoryTypeOSStart  MemoryType = 0x80000000
)

var memoryTypeNames = [...]string{
	"EfiReservedMemoryType",
	"EfiLoaderCode",
	"EfiLoaderData",
	"EfiBootServicesCode",
	"EfiBootServicesData",
	"EfiRuntimeServicesCode",
	"EfiRuntimeServicesData",
	"EfiConventionalMemory",
	"EfiUnusableMemory",
	"EfiACPIReclaimMemory",
	"EfiACPIMemoryNVS",
	"EfiMemoryMappedIO",
	"EfiMemoryMappedIOPortSpace",
	"EfiPalCode",
	"EfiPersistentMemory",
	"EfiUnacceptedMemoryType",
}

// String returns the memory type name, unknown values are returned in numeric
// form.
func (t MemoryType) String() string {
	switch {
	case t < EfiMaxMemoryType:
		return memoryTypeNames[t]
	case t >= MemoryTypeOSStart:
		return fmt.Sprintf("OS(%#x)", uint32(t))
	case t >= MemoryTypeOEMStart:
		return fmt.Sprintf("OEM(%#x)", uint32(t))
	default:
		return fmt.Sprintf("MemoryType(%#x)", uint32(t))
	}
}

// E820 converts a memory range of this type to an x86 E820 entry suitable for
// use after exiting EFI Boot Services.
func (t MemoryType) E820(addr uint64, size uint64) (e bzimage.E820Entry) {
	e = bzimage.E820Entry{
		Addr: addr,
		Size: size,
	}

	// Unified Extensible Firmware Interface (UEFI) Specification
	// Version 2.10 - Table 7.10: Memory Type Usage after ExitBootServices()
	switch t {
	case EfiLoaderCode, EfiLoaderData, EfiBootServicesCode, EfiBootServicesData, EfiConventionalMemory:
		e.MemType = bzimage.RAM
	case EfiPersistentMemory:
		e.MemType = AddressRangePersistentMemory
	case EfiACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case EfiACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return
}

// alignUp rounds size up to a multiple of a, which must be a power of two.
func alignUp(size int, a int) int {
	return (size + a - 1) &^ (a - 1)
}
