// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package emu implements an emulated UEFI firmware, providing a protocol
// database, firmware owned memory and entry points to be used as Session
// collaborator on hosted targets.
//
// The emulated memory is a fixed size arena mapped at a virtual base address,
// every address handed out by the firmware (handles, protocol interfaces,
// entry points) is a virtual address within it.
package emu

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/usbarmory/go-efiproto/uefi"
)

const (
	// DefaultBase is the default arena virtual base address.
	DefaultBase = 0x7e000000
	// DefaultSize is the default arena size.
	DefaultSize = 64 * 1024

	align = 8

	// entry points live past the arena so that they are never mistaken
	// for data
	entryBase  = 0xffff0000
	entryAlign = 0x10
)

var log = logrus.WithField("service", "emu")

// Func represents an emulated firmware entry point, args are passed as
// received by the native calling convention.
type Func func(args ...uint64) uefi.Status

// Record represents a boot service or entry point invocation.
type Record struct {
	Service string
	Handle  uefi.Handle
	GUID    uefi.GUID
	Args    []uint64
	Status  uefi.Status
}

func (r Record) String() string {
	switch {
	case r.Args != nil:
		return fmt.Sprintf("%s(%#x) = %s", r.Service, r.Args, r.Status)
	case r.GUID.IsZero():
		return fmt.Sprintf("%s(%s) = %s", r.Service, r.Handle, r.Status)
	default:
		return fmt.Sprintf("%s(%s, %s) = %s", r.Service, r.Handle, r.GUID, r.Status)
	}
}

type protocol struct {
	addr uint64
	open int
}

type handle struct {
	addr      uint64
	name      string
	protocols map[uefi.GUID]*protocol
	order     []uefi.GUID
}

// Firmware represents an emulated UEFI firmware instance, it implements
// [uefi.Firmware], [uefi.HandleLocator] and [uefi.Exiter].
type Firmware struct {
	mu sync.Mutex

	base  uint64
	words []uint64
	next  uint64

	handles map[uefi.Handle]*handle
	order   []uefi.Handle

	funcs map[uint64]Func

	records []Record
	exited  bool
}

// New returns an emulated firmware instance with an arena of size bytes
// mapped at the argument virtual base address.
func New(base uint64, size int) (fw *Firmware, err error) {
	if base == 0 || base%align != 0 {
		return nil, fmt.Errorf("invalid base address %#x", base)
	}

	if size <= 0 || base+uint64(size) > entryBase {
		return nil, fmt.Errorf("invalid arena size %d", size)
	}

	fw = &Firmware{
		base:    base,
		words:   make([]uint64, (size+align-1)/align),
		handles: make(map[uefi.Handle]*handle),
		funcs:   make(map[uint64]Func),
	}

	return
}

// Default returns an emulated firmware instance with default arena
// parameters.
func Default() *Firmware {
	fw, _ := New(DefaultBase, DefaultSize)
	return fw
}

func (fw *Firmware) arena() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&fw.words[0])), len(fw.words)*align)
}

func (fw *Firmware) bytes(addr uint64, size int) ([]byte, error) {
	end := fw.base + uint64(len(fw.words)*align)

	if size < 0 || addr < fw.base || addr > end || uint64(size) > end-addr {
		return nil, fmt.Errorf("invalid memory range %#x-%#x", addr, addr+uint64(size))
	}

	off := addr - fw.base

	return fw.arena()[off : off+uint64(size) : off+uint64(size)], nil
}

func (fw *Firmware) record(r Record) {
	fw.records = append(fw.records, r)
	log.Debug(r)
}

// Base returns the arena virtual base address.
func (fw *Firmware) Base() uint64 {
	return fw.base
}

// Alloc reserves size bytes of zeroed firmware memory, aligned to 8 bytes.
func (fw *Firmware) Alloc(size int) (addr uint64, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.alloc(size)
}

func (fw *Firmware) alloc(size int) (addr uint64, err error) {
	n := uint64((size + align - 1) &^ (align - 1))

	if n == 0 {
		n = align
	}

	if fw.next+n > uint64(len(fw.words)*align) {
		return 0, uefi.EFI_OUT_OF_RESOURCES
	}

	addr = fw.base + fw.next
	fw.next += n

	return
}

// Bytes returns the firmware memory at the argument address, the returned
// slice aliases the arena and its accesses are not serialized with the
// firmware services.
func (fw *Firmware) Bytes(addr uint64, size int) ([]byte, error) {
	return fw.bytes(addr, size)
}

// Write stores the binary little-endian representation of data at the
// argument address.
func (fw *Firmware) Write(addr uint64, data any) (err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	n := binary.Size(data)

	if n < 0 {
		return fmt.Errorf("invalid data type %T", data)
	}

	buf, err := fw.bytes(addr, n)

	if err != nil {
		return
	}

	_, err = binary.Encode(buf, binary.LittleEndian, data)

	return
}

// PutUint64 stores a 64-bit word at the argument address.
func (fw *Firmware) PutUint64(addr uint64, val uint64) (err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	buf, err := fw.bytes(addr, 8)

	if err != nil {
		return
	}

	binary.LittleEndian.PutUint64(buf, val)

	return
}

// Uint64 loads a 64-bit word from the argument address.
func (fw *Firmware) Uint64(addr uint64) (val uint64, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.word(addr)
}

func (fw *Firmware) word(addr uint64) (val uint64, err error) {
	buf, err := fw.bytes(addr, 8)

	if err != nil {
		return
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// Func registers an entry point and returns its address, to be stored in a
// protocol interface function pointer.
func (fw *Firmware) Func(fn Func) uint64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	addr := uint64(entryBase + len(fw.funcs)*entryAlign)
	fw.funcs[addr] = fn

	return addr
}

// NewHandle creates a handle with no protocols installed, the optional name
// is used for diagnostic purposes only.
func (fw *Firmware) NewHandle(name string) (h uefi.Handle, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	addr, err := fw.alloc(align)

	if err != nil {
		return
	}

	h = uefi.NewHandle(addr)

	fw.handles[h] = &handle{
		addr:      addr,
		name:      name,
		protocols: make(map[uefi.GUID]*protocol),
	}

	fw.order = append(fw.order, h)

	return
}

// Value returns the firmware value of the argument handle.
func (fw *Firmware) Value(h uefi.Handle) uint64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if e, ok := fw.handles[h]; ok {
		return e.addr
	}

	return 0
}

// Lookup returns the handle with the argument name.
func (fw *Firmware) Lookup(name string) (uefi.Handle, bool) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, h := range fw.order {
		if fw.handles[h].name == name {
			return h, true
		}
	}

	return uefi.Handle{}, false
}

// Name returns the name of the argument handle.
func (fw *Firmware) Name(h uefi.Handle) string {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if e, ok := fw.handles[h]; ok {
		return e.name
	}

	return ""
}

// Handles returns all handles, in creation order.
func (fw *Firmware) Handles() []uefi.Handle {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return slices.Clone(fw.order)
}

// Protocols returns all protocols installed on the argument handle, in
// installation order.
func (fw *Firmware) Protocols(h uefi.Handle) []uefi.GUID {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if e, ok := fw.handles[h]; ok {
		return slices.Clone(e.order)
	}

	return nil
}

// Install installs the protocol interface at the argument address on a
// handle, the address is not validated to allow emulation of faulty
// firmware.
func (fw *Firmware) Install(h uefi.Handle, guid uefi.GUID, addr uint64) (err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	e, ok := fw.handles[h]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	if _, ok := e.protocols[guid]; ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	e.protocols[guid] = &protocol{addr: addr}
	e.order = append(e.order, guid)

	return
}

// Uninstall removes a protocol from a handle, protocols which are open
// cannot be removed.
func (fw *Firmware) Uninstall(h uefi.Handle, guid uefi.GUID) (err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	e, ok := fw.handles[h]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	p, ok := e.protocols[guid]

	switch {
	case !ok:
		return uefi.EFI_NOT_FOUND
	case p.open > 0:
		return uefi.EFI_ACCESS_DENIED
	}

	delete(e.protocols, guid)
	e.order = slices.DeleteFunc(e.order, func(g uefi.GUID) bool { return g == guid })

	return
}

// OpenCount returns the number of outstanding opens of a protocol on a
// handle.
func (fw *Firmware) OpenCount(h uefi.Handle, guid uefi.GUID) int {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if e, ok := fw.handles[h]; ok {
		if p, ok := e.protocols[guid]; ok {
			return p.open
		}
	}

	return 0
}

// Records returns all invocations performed on the firmware.
func (fw *Firmware) Records() []Record {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return slices.Clone(fw.records)
}

// Exited reports whether boot services have been terminated.
func (fw *Firmware) Exited() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.exited
}

// OpenProtocol implements [uefi.ProtocolDatabase].
func (fw *Firmware) OpenProtocol(h uefi.Handle, guid uefi.GUID) (addr uint64, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	status := uefi.EFI_SUCCESS

	defer func() {
		fw.record(Record{Service: "OpenProtocol", Handle: h, GUID: guid, Status: status})
	}()

	e, ok := fw.handles[h]

	switch {
	case fw.exited:
		status = uefi.EFI_UNSUPPORTED
	case !ok:
		status = uefi.EFI_INVALID_PARAMETER
	case e.protocols[guid] == nil:
		status = uefi.EFI_UNSUPPORTED
	default:
		p := e.protocols[guid]
		p.open++
		return p.addr, nil
	}

	return 0, status
}

// CloseProtocol implements [uefi.ProtocolDatabase].
func (fw *Firmware) CloseProtocol(h uefi.Handle, guid uefi.GUID) (err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	status := uefi.EFI_SUCCESS

	defer func() {
		fw.record(Record{Service: "CloseProtocol", Handle: h, GUID: guid, Status: status})
	}()

	e, ok := fw.handles[h]

	switch {
	case fw.exited:
		status = uefi.EFI_UNSUPPORTED
	case !ok:
		status = uefi.EFI_INVALID_PARAMETER
	case e.protocols[guid] == nil || e.protocols[guid].open == 0:
		status = uefi.EFI_NOT_FOUND
	default:
		e.protocols[guid].open--
		return
	}

	return status
}

// LocateHandles implements [uefi.HandleLocator].
func (fw *Firmware) LocateHandles(guid uefi.GUID) (handles []uefi.Handle, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	status := uefi.EFI_SUCCESS

	defer func() {
		fw.record(Record{Service: "LocateHandleBuffer", GUID: guid, Status: status})
	}()

	if fw.exited {
		status = uefi.EFI_UNSUPPORTED
		return nil, status
	}

	for _, h := range fw.order {
		if _, ok := fw.handles[h].protocols[guid]; ok {
			handles = append(handles, h)
		}
	}

	if len(handles) == 0 {
		status = uefi.EFI_NOT_FOUND
		return nil, status
	}

	return
}

// ExitBootServices implements [uefi.Exiter].
func (fw *Firmware) ExitBootServices() (err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	status := uefi.EFI_SUCCESS

	if fw.exited {
		status = uefi.EFI_INVALID_PARAMETER
	}

	fw.record(Record{Service: "ExitBootServices", Status: status})
	fw.exited = true

	return status.Err()
}

// Map implements [uefi.Memory], the returned buffer aliases the arena.
func (fw *Firmware) Map(addr uint64, size int) (buf []byte, release func(), err error) {
	if buf, err = fw.bytes(addr, size); err != nil {
		return
	}

	return buf, func() {}, nil
}

// Call implements [uefi.Caller], the entry point address is loaded from slot
// and dispatched to the matching registered Func.
func (fw *Firmware) Call(slot uint64, args ...uint64) (status uefi.Status) {
	fw.mu.Lock()

	entry, err := fw.word(slot)
	fn, ok := fw.funcs[entry]

	switch {
	case err != nil:
		status = uefi.EFI_INVALID_PARAMETER
	case !ok:
		status = uefi.EFI_UNSUPPORTED
	}

	if !ok || err != nil {
		fw.record(Record{Service: fmt.Sprintf("%#x", entry), Args: append([]uint64{}, args...), Status: status})
		fw.mu.Unlock()
		return
	}

	fw.mu.Unlock()

	// entry points might access the firmware themselves
	status = fn(args...)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.record(Record{Service: fmt.Sprintf("%#x", entry), Args: append([]uint64{}, args...), Status: status})

	return
}

// Reset clears the invocation records.
func (fw *Firmware) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.records = nil
}
