// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proto

import (
	"encoding/binary"
	"errors"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/go-efiproto/uefi"
	"github.com/usbarmory/go-efiproto/uefi/emu"
)

type testEnv struct {
	t  *testing.T
	fw *emu.Firmware
	s  *uefi.Session
}

func newTestEnv(t *testing.T) *testEnv {
	fw := emu.Default()

	return &testEnv{
		t:  t,
		fw: fw,
		s:  uefi.NewSession(fw, Namespace()),
	}
}

// install stores data in firmware memory and installs it as protocol
// interface on a new handle.
func (e *testEnv) install(guid uefi.GUID, data any) (h uefi.Handle, addr uint64) {
	e.t.Helper()

	h, err := e.fw.NewHandle("")

	if err != nil {
		e.t.Fatal(err)
	}

	if addr, err = e.fw.Alloc(binary.Size(data)); err != nil {
		e.t.Fatal(err)
	}

	if err = e.fw.Write(addr, data); err != nil {
		e.t.Fatal(err)
	}

	if err = e.fw.Install(h, guid, addr); err != nil {
		e.t.Fatal(err)
	}

	return
}

// recorder returns an entry point recording its arguments.
func (e *testEnv) recorder(status uefi.Status, args *[]uint64) uint64 {
	return e.fw.Func(func(a ...uint64) uefi.Status {
		*args = append([]uint64{}, a...)
		return status
	})
}

func TestLayouts(t *testing.T) {
	for _, tc := range []struct {
		name  string
		l     uefi.Layout
		size  uintptr
		bsize int
	}{
		{"LoadedImage", (*LoadedImage)(nil).Layout(), 96, binary.Size(loadedImage{})},
		{"SimpleFileSystem", (*SimpleFileSystem)(nil).Layout(), 16, binary.Size(simpleFileSystem{})},
		{"GraphicsOutput", (*GraphicsOutput)(nil).Layout(), 32, binary.Size(graphicsOutput{})},
		{"SimpleNetwork", (*SimpleNetwork)(nil).Layout(), 128, binary.Size(simpleNetwork{})},
		{"SimpleTextOutput", (*SimpleTextOutput)(nil).Layout(), 80, binary.Size(simpleTextOutput{})},
	} {
		if tc.l.Size != tc.size || tc.l.Align != 8 {
			t.Errorf("%s: unexpected layout %+v", tc.name, tc.l)
		}

		// the Go layout must not contain implicit padding
		if uintptr(tc.bsize) != tc.size {
			t.Errorf("%s: implicit padding (%d != %d)", tc.name, tc.bsize, tc.size)
		}
	}
}

func TestLoadedImageOffsets(t *testing.T) {
	var li loadedImage

	for _, tc := range []struct {
		name string
		off  uintptr
		want uintptr
	}{
		{"ParentHandle", unsafe.Offsetof(li.ParentHandle), 8},
		{"LoadOptionsSize", unsafe.Offsetof(li.LoadOptionsSize), 48},
		{"ImageBase", unsafe.Offsetof(li.ImageBase), 64},
		{"ImageCodeType", unsafe.Offsetof(li.ImageCodeType), 80},
		{"ImageDataType", unsafe.Offsetof(li.ImageDataType), 84},
		{"Unload", unsafe.Offsetof(li.Unload), 88},
	} {
		if tc.off != tc.want {
			t.Errorf("%s: offset %d, expected %d", tc.name, tc.off, tc.want)
		}
	}
}

func TestNamespace(t *testing.T) {
	var names []string

	for _, b := range Namespace().Bindings() {
		names = append(names, b.Name)
	}

	expected := []string{
		"proto.GraphicsOutput",
		"proto.LoadedImage",
		"proto.SimpleFileSystem",
		"proto.SimpleNetwork",
		"proto.SimpleTextOutput",
	}

	if diff := cmp.Diff(expected, names); diff != "" {
		t.Fatalf("unexpected bindings (-want +got):\n%s", diff)
	}
}

func TestLoadedImage(t *testing.T) {
	e := newTestEnv(t)

	parent, err := e.fw.NewHandle("parent")

	if err != nil {
		t.Fatal(err)
	}

	h, addr := e.install(loadedImageGUID, &loadedImage{
		Revision:        EFI_LOADED_IMAGE_PROTOCOL_REVISION,
		DeviceHandle:    0,
		FilePath:        0x7e001000,
		LoadOptionsSize: 16,
		LoadOptions:     0x7e002000,
		ImageBase:       0x100000,
		ImageSize:       0x2000,
		ImageCodeType:   uefi.EfiLoaderCode,
		ImageDataType:   uefi.EfiLoaderData,
	})

	// patch the parent handle with its firmware value
	if err = e.fw.PutUint64(addr+8, e.fw.Value(parent)); err != nil {
		t.Fatal(err)
	}

	li, err := uefi.Acquire[LoadedImage](e.s, h)

	if err != nil {
		t.Fatal(err)
	}

	defer li.Close()

	if li.Address() != addr {
		t.Fatalf("unexpected interface address %#x", li.Address())
	}

	if li.Revision() != EFI_LOADED_IMAGE_PROTOCOL_REVISION {
		t.Errorf("unexpected revision %#x", li.Revision())
	}

	if !li.Parent().Equal(parent) {
		t.Errorf("unexpected parent %s", li.Parent())
	}

	if !li.Device().IsNull() {
		t.Errorf("unexpected device %s", li.Device())
	}

	if li.FilePath() != 0x7e001000 {
		t.Errorf("unexpected file path %#x", li.FilePath())
	}

	if li.LoadOptions() != 0x7e002000 || li.LoadOptionsSize() != 16 {
		t.Errorf("unexpected load options %#x (%d)", li.LoadOptions(), li.LoadOptionsSize())
	}

	if li.ImageBase() != 0x100000 || li.ImageSize() != 0x2000 {
		t.Errorf("unexpected image %#x (%d)", li.ImageBase(), li.ImageSize())
	}

	if li.ImageCodeType() != uefi.EfiLoaderCode || li.ImageDataType() != uefi.EfiLoaderData {
		t.Errorf("unexpected memory types %s %s", li.ImageCodeType(), li.ImageDataType())
	}
}

func TestLoadedImageBytePattern(t *testing.T) {
	e := newTestEnv(t)

	h, addr := e.install(loadedImageGUID, &loadedImage{})

	buf, err := e.fw.Bytes(addr, 96)

	if err != nil {
		t.Fatal(err)
	}

	for i := range buf {
		buf[i] = byte(i)
	}

	li, err := uefi.Acquire[LoadedImage](e.s, h)

	if err != nil {
		t.Fatal(err)
	}

	defer li.Close()

	if v := li.ImageBase(); v != binary.LittleEndian.Uint64(buf[64:]) {
		t.Errorf("unexpected ImageBase %#x", v)
	}

	if v := li.ImageCodeType(); uint32(v) != binary.LittleEndian.Uint32(buf[80:]) {
		t.Errorf("unexpected ImageCodeType %#x", uint32(v))
	}

	if v := li.ImageDataType(); uint32(v) != binary.LittleEndian.Uint32(buf[84:]) {
		t.Errorf("unexpected ImageDataType %#x", uint32(v))
	}

	if v := li.LoadOptionsSize(); v != binary.LittleEndian.Uint32(buf[48:]) {
		t.Errorf("unexpected LoadOptionsSize %#x", v)
	}

	// mutation after acquisition is observed
	binary.LittleEndian.PutUint64(buf[72:], 0xcafe)

	if li.ImageSize() != 0xcafe {
		t.Errorf("unexpected ImageSize %#x", li.ImageSize())
	}
}

func TestLoadedImageUnload(t *testing.T) {
	e := newTestEnv(t)

	var args []uint64

	h, _ := e.install(loadedImageGUID, &loadedImage{
		Unload: e.recorder(uefi.EFI_SUCCESS, &args),
	})

	err := uefi.With(e.s, h, func(li *LoadedImage) error {
		return li.Unload()
	})

	if err != nil {
		t.Fatal(err)
	}

	if len(args) != 1 || !uefi.NewHandle(args[0]).Equal(h) {
		t.Fatalf("unexpected arguments %#x", args)
	}
}

func TestSimpleFileSystem(t *testing.T) {
	e := newTestEnv(t)

	h, _ := e.install(simpleFileSystemGUID, &simpleFileSystem{
		Revision: EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION,
	})

	sfs, err := uefi.Acquire[SimpleFileSystem](e.s, h)

	if err != nil {
		t.Fatal(err)
	}

	defer sfs.Close()

	if sfs.Revision() != EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION {
		t.Fatalf("unexpected revision %#x", sfs.Revision())
	}
}

func TestGraphicsOutput(t *testing.T) {
	e := newTestEnv(t)

	var args []uint64

	h, addr := e.install(graphicsOutputGUID, &graphicsOutput{
		SetMode: e.recorder(uefi.EFI_UNSUPPORTED, &args),
		Mode:    0x7e003000,
	})

	gop, err := uefi.Acquire[GraphicsOutput](e.s, h)

	if err != nil {
		t.Fatal(err)
	}

	defer gop.Close()

	if gop.Mode() != 0x7e003000 {
		t.Fatalf("unexpected mode address %#x", gop.Mode())
	}

	if err = gop.SetMode(2); !errors.Is(err, uefi.EFI_UNSUPPORTED) {
		t.Fatalf("expected EFI_UNSUPPORTED, got %v", err)
	}

	if diff := cmp.Diff([]uint64{addr, 2}, args); diff != "" {
		t.Fatalf("unexpected arguments (-want +got):\n%s", diff)
	}
}

func TestSimpleNetwork(t *testing.T) {
	e := newTestEnv(t)

	var start, initialize, stop, shutdown []uint64

	h, addr := e.install(simpleNetworkGUID, &simpleNetwork{
		Revision:      EFI_SIMPLE_NETWORK_PROTOCOL_REVISION,
		Start:         e.recorder(uefi.EFI_SUCCESS, &start),
		Stop:          e.recorder(uefi.EFI_SUCCESS, &stop),
		Initialize:    e.recorder(uefi.EFI_SUCCESS, &initialize),
		Shutdown:      e.recorder(uefi.EFI_NOT_STARTED, &shutdown),
		WaitForPacket: 0x1234,
		Mode:          0x7e004000,
	})

	sn, err := uefi.Acquire[SimpleNetwork](e.s, h)

	if err != nil {
		t.Fatal(err)
	}

	defer sn.Close()

	if sn.Revision() != EFI_SIMPLE_NETWORK_PROTOCOL_REVISION || sn.Mode() != 0x7e004000 || sn.WaitForPacket() != 0x1234 {
		t.Fatalf("unexpected fields %#x %#x %#x", sn.Revision(), sn.Mode(), sn.WaitForPacket())
	}

	if err = sn.Start(); err != nil {
		t.Fatal(err)
	}

	if err = sn.Initialize(0x100, 0x200); err != nil {
		t.Fatal(err)
	}

	if err = sn.Stop(); err != nil {
		t.Fatal(err)
	}

	if err = sn.Shutdown(); !errors.Is(err, uefi.EFI_NOT_STARTED) {
		t.Fatalf("expected EFI_NOT_STARTED, got %v", err)
	}

	for _, tc := range []struct {
		name string
		got  []uint64
		want []uint64
	}{
		{"Start", start, []uint64{addr}},
		{"Initialize", initialize, []uint64{addr, 0x100, 0x200}},
		{"Stop", stop, []uint64{addr}},
		{"Shutdown", shutdown, []uint64{addr}},
	} {
		if diff := cmp.Diff(tc.want, tc.got); diff != "" {
			t.Errorf("%s: unexpected arguments (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestSimpleTextOutput(t *testing.T) {
	e := newTestEnv(t)

	var reset, mode, attr, cls, pos, cursor []uint64

	h, addr := e.install(simpleTextOutputGUID, &simpleTextOutput{
		Reset:             e.recorder(uefi.EFI_SUCCESS, &reset),
		SetMode:           e.recorder(uefi.EFI_SUCCESS, &mode),
		SetAttribute:      e.recorder(uefi.EFI_SUCCESS, &attr),
		ClearScreen:       e.recorder(uefi.EFI_SUCCESS, &cls),
		SetCursorPosition: e.recorder(uefi.EFI_SUCCESS, &pos),
		EnableCursor:      e.recorder(uefi.EFI_UNSUPPORTED, &cursor),
		Mode:              0x7e005000,
	})

	err := uefi.With(e.s, h, func(c *SimpleTextOutput) (err error) {
		if c.Mode() != 0x7e005000 {
			t.Errorf("unexpected mode address %#x", c.Mode())
		}

		if err = c.Reset(false); err != nil {
			return
		}

		if err = c.SetMode(1); err != nil {
			return
		}

		if err = c.SetAttribute(0x0f); err != nil {
			return
		}

		if err = c.ClearScreen(); err != nil {
			return
		}

		if err = c.SetCursorPosition(10, 20); err != nil {
			return
		}

		return c.EnableCursor(true)
	})

	if !errors.Is(err, uefi.EFI_UNSUPPORTED) {
		t.Fatalf("expected EFI_UNSUPPORTED, got %v", err)
	}

	for _, tc := range []struct {
		name string
		got  []uint64
		want []uint64
	}{
		{"Reset", reset, []uint64{addr, 0}},
		{"SetMode", mode, []uint64{addr, 1}},
		{"SetAttribute", attr, []uint64{addr, 0x0f}},
		{"ClearScreen", cls, []uint64{addr}},
		{"SetCursorPosition", pos, []uint64{addr, 10, 20}},
		{"EnableCursor", cursor, []uint64{addr, 1}},
	} {
		if diff := cmp.Diff(tc.want, tc.got); diff != "" {
			t.Errorf("%s: unexpected arguments (-want +got):\n%s", tc.name, diff)
		}
	}

	if n := e.fw.OpenCount(h, simpleTextOutputGUID); n != 0 {
		t.Fatalf("protocol left open (%d)", n)
	}
}
