// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/usbarmory/go-efiproto/shell"
	"github.com/usbarmory/go-efiproto/uefi"
	"github.com/usbarmory/go-efiproto/uefi/emu"
	"github.com/usbarmory/go-efiproto/uefi/proto"
)

const testFirmware = `
[[handle]]
name = "root"

[[handle]]
name = "image"

  [[handle.protocol]]
  guid = "5b1b31a1-9562-11d2-8e3f-00a0c969723b"
  words = [0x1000, 0, 0, 0, 0, 0, 0, 0, 0x100000, 0x2000, 0x200000001, 0]
  handles = { 1 = "root" }
  entries = { 11 = "EFI_SUCCESS" }

[[handle]]
name = "nic"

  [[handle.protocol]]
  guid = "a19832b9-ac25-11d3-9a2d-0090273fc14d"
  words = [0x10000, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
  entries = { 1 = "EFI_SUCCESS", 2 = "EFI_NOT_STARTED", 3 = "EFI_SUCCESS", 5 = "EFI_SUCCESS" }

[[handle]]
name = "gop"

  [[handle.protocol]]
  guid = "9042a9de-23dc-4a38-96fb-7aded080516a"
  words = [0, 0, 0, 0x7e00f000]
  entries = { 1 = "EFI_UNSUPPORTED" }

  [[handle.protocol]]
  guid = "387477c2-69c7-11d2-8e39-00a0c969723b"
  words = [0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
  entries = { 6 = "EFI_SUCCESS" }

[[handle]]
name = "disk"

  [[handle.protocol]]
  guid = "964e5b22-6459-11d2-8e39-00a0c969723b"
  words = [0x10000, 0]
`

func testInterface(t *testing.T) (*shell.Interface, *emu.Firmware) {
	t.Helper()

	cfg, err := emu.ParseConfig(testFirmware)

	if err != nil {
		t.Fatal(err)
	}

	fw, err := cfg.Build()

	if err != nil {
		t.Fatal(err)
	}

	return &shell.Interface{
		Session: uefi.NewSession(fw, proto.Namespace()),
	}, fw
}

func handle(t *testing.T, fw *emu.Firmware, name string) string {
	t.Helper()

	return mustLookup(t, fw, name).String()
}

func exec(t *testing.T, iface *shell.Interface, line string) string {
	t.Helper()

	res, err := iface.Exec(line)

	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}

	return res
}

func contains(t *testing.T, res string, substrs ...string) {
	t.Helper()

	for _, s := range substrs {
		if !strings.Contains(res, s) {
			t.Errorf("missing %q in:\n%s", s, res)
		}
	}
}

func TestProtocolsCmd(t *testing.T) {
	res := exec(t, &shell.Interface{}, "protocols")

	contains(t, res,
		"proto.LoadedImage",
		"5b1b31a1-9562-11d2-8e3f-00a0c969723b",
		"proto.SimpleNetwork",
		"128",
	)
}

func TestGUIDCmd(t *testing.T) {
	res := exec(t, &shell.Interface{}, "guid 5b1b31a1-9562-11d2-8e3f-00a0c969723b")

	contains(t, res,
		"Data1 ......: 0x5b1b31a1",
		"Data4 ......: 8e 3f 00 a0 c9 69 72 3b",
		"Bytes ......: a1 31 1b 5b 62 95 d2 11",
		"Protocol ...: proto.LoadedImage",
	)
}

func TestStatusCmd(t *testing.T) {
	res := exec(t, &shell.Interface{}, "status 0x800000000000000e")
	contains(t, res, "EFI_NOT_FOUND", "Class ......: error", "Code .......: 14")

	res = exec(t, &shell.Interface{}, "status EFI_WARN_STALE_DATA")
	contains(t, res, "Class ......: warning", "0x0000000000000005")
}

func TestHandlesCmd(t *testing.T) {
	iface, fw := testInterface(t)

	res := exec(t, iface, "handles")

	contains(t, res,
		handle(t, fw, "image")+" proto.LoadedImage",
		handle(t, fw, "nic")+" proto.SimpleNetwork",
		handle(t, fw, "gop")+" proto.GraphicsOutput",
		handle(t, fw, "gop")+" proto.SimpleTextOutput",
	)

	res = exec(t, iface, "handles SimpleFileSystem")

	if strings.TrimSpace(res) != handle(t, fw, "disk")+" proto.SimpleFileSystem" {
		t.Fatalf("unexpected result %q", res)
	}

	if _, err := iface.Exec("handles Unknown"); err == nil {
		t.Fatal("expected error")
	}

	if _, err := (&shell.Interface{}).Exec("handles"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestImageCmd(t *testing.T) {
	iface, fw := testInterface(t)

	res := exec(t, iface, "image "+handle(t, fw, "image"))

	contains(t, res,
		"Parent ..........: "+handle(t, fw, "root"),
		"Image ...........: 0x100000-0x102000 (8192 bytes)",
		"Code Type .......: EfiLoaderCode",
		"Data Type .......: EfiLoaderData",
		"E820 ............: 0x100000-0x102000 type 1",
	)

	if n := iface.Session.Len(); n != 0 {
		t.Fatalf("unexpected outstanding acquisitions %d", n)
	}

	_, err := iface.Exec("image " + handle(t, fw, "nic"))

	if !errors.Is(err, uefi.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnloadCmd(t *testing.T) {
	iface, fw := testInterface(t)
	exec(t, iface, "unload "+handle(t, fw, "image"))

	r := fw.Records()

	if len(r) < 2 || r[len(r)-2].Args[0] != fw.Value(mustLookup(t, fw, "image")) {
		t.Fatalf("unexpected records %v", r)
	}
}

func mustLookup(t *testing.T, fw *emu.Firmware, name string) uefi.Handle {
	t.Helper()

	h, ok := fw.Lookup(name)

	if !ok {
		t.Fatalf("missing handle %s", name)
	}

	return h
}

func TestNetCmd(t *testing.T) {
	iface, fw := testInterface(t)
	nic := handle(t, fw, "nic")

	for _, op := range []string{"start", "init", "shutdown"} {
		exec(t, iface, fmt.Sprintf("net %s %s", nic, op))
	}

	if _, err := iface.Exec(fmt.Sprintf("net %s stop", nic)); !errors.Is(err, uefi.EFI_NOT_STARTED) {
		t.Fatalf("expected EFI_NOT_STARTED, got %v", err)
	}
}

func TestGraphicsCmds(t *testing.T) {
	iface, fw := testInterface(t)
	gop := handle(t, fw, "gop")

	contains(t, exec(t, iface, "gop "+gop), "0x7e00f000")

	if _, err := iface.Exec("gop " + gop + " 1"); !errors.Is(err, uefi.EFI_UNSUPPORTED) {
		t.Fatalf("expected EFI_UNSUPPORTED, got %v", err)
	}

	exec(t, iface, "cls "+gop)

	contains(t, exec(t, iface, "fs "+handle(t, fw, "disk")), "0x10000")
}

func TestExitCmds(t *testing.T) {
	iface, fw := testInterface(t)

	if _, err := uefi.Acquire[proto.LoadedImage](iface.Session, mustLookup(t, fw, "image")); err != nil {
		t.Fatal(err)
	}

	contains(t, exec(t, iface, "session"), "1 outstanding")

	exec(t, iface, "exitbs")

	if !fw.Exited() || iface.Session.Len() != 0 {
		t.Fatal("boot services not terminated")
	}

	if _, err := iface.Exec("image " + handle(t, fw, "image")); !errors.Is(err, uefi.ErrExited) {
		t.Fatalf("expected ErrExited, got %v", err)
	}

	if _, err := iface.Exec("quit"); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestCommonCmds(t *testing.T) {
	iface := &shell.Interface{}

	for _, cmd := range []string{"date", "uptime", "stack", "help"} {
		if res := exec(t, iface, cmd); len(res) == 0 {
			t.Errorf("%s: empty result", cmd)
		}
	}
}
