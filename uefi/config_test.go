// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/go-efiproto/uefi"
	"github.com/usbarmory/go-efiproto/uefi/emu"
)

// ACPI 2.0 and SMBIOS 3.0 table GUIDs
var (
	acpiTableGUID    = uefi.MustParseGUID("8868e871-e4f1-11d3-bc22-0080c73c8881")
	smbios3TableGUID = uefi.MustParseGUID("f2fd1544-9794-4a2c-992e-e5bbcf20e394")
)

func TestConfigurationTables(t *testing.T) {
	fw := emu.Default()

	expected := []uefi.ConfigurationTable{
		{GUID: acpiTableGUID, VendorTable: 0x7f000000},
		{GUID: smbios3TableGUID, VendorTable: 0x7f100000},
	}

	addr, err := fw.Alloc(24 * len(expected))

	if err != nil {
		t.Fatal(err)
	}

	if err = fw.Write(addr, expected); err != nil {
		t.Fatal(err)
	}

	tables, err := uefi.ConfigurationTables(fw, addr, len(expected))

	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(expected, tables); diff != "" {
		t.Fatalf("unexpected tables (-want +got):\n%s", diff)
	}

	vendor, err := uefi.LocateConfiguration(tables, smbios3TableGUID)

	if err != nil {
		t.Fatal(err)
	}

	if vendor != 0x7f100000 {
		t.Fatalf("unexpected vendor table %#x", vendor)
	}

	if _, err = uefi.LocateConfiguration(tables, uefi.GUID{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigurationTablesInvalid(t *testing.T) {
	fw := emu.Default()

	if _, err := uefi.ConfigurationTables(fw, 0, 1); err == nil {
		t.Fatal("expected error for NULL table")
	}

	if _, err := uefi.ConfigurationTables(fw, fw.Base(), 0); err == nil {
		t.Fatal("expected error for empty table")
	}

	if _, err := uefi.ConfigurationTables(fw, fw.Base()+emu.DefaultSize-8, 1); err == nil {
		t.Fatal("expected error for unmapped table")
	}
}
