// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ConfigurationTable represents an EFI Configuration Table entry.
type ConfigurationTable struct {
	GUID        GUID
	VendorTable uint64
}

// ConfigurationTables returns count EFI Configuration Table entries read from
// firmware memory at addr.
func ConfigurationTables(mem Memory, addr uint64, count int) (c []ConfigurationTable, err error) {
	var t ConfigurationTable

	if count <= 0 || addr == 0 {
		return nil, errors.New("EFI Configuration Table is invalid")
	}

	entrySize := binary.Size(t)
	tableSize := entrySize * count

	buf, release, err := mem.Map(addr, tableSize)

	if err != nil {
		return
	}

	defer release()

	if len(buf) < tableSize {
		return nil, fmt.Errorf("short mapping (%d < %d)", len(buf), tableSize)
	}

	for i := 0; i < tableSize; i += entrySize {
		if _, err = binary.Decode(buf[i:i+entrySize], binary.LittleEndian, &t); err != nil {
			return
		}

		c = append(c, t)
	}

	return
}

// LocateConfiguration returns the vendor table address of the EFI
// Configuration Table matching the argument GUID.
func LocateConfiguration(tables []ConfigurationTable, guid GUID) (addr uint64, err error) {
	for _, t := range tables {
		if t.GUID == guid {
			return t.VendorTable, nil
		}
	}

	return 0, fmt.Errorf("could not find configuration table %s", guid)
}
