// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
)

var guidPattern = regexp.MustCompile(`^([[:xdigit:]]{8})-([[:xdigit:]]{4})-([[:xdigit:]]{4})-([[:xdigit:]]{4})-([[:xdigit:]]{12})$`)

// GUID represents an EFI GUID (Globally Unique Identifier) as a 16-byte array
// with the native EFI byte order.
//
// Note: The registry string format (xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx)
// reorders the first three fields as little-endian. Internally, we keep the
// native EFI layout (as used in memory), i.e. 16 bytes where the first three
// fields are little-endian values.
type GUID [16]byte

// NewGUID returns the GUID with the argument EFI_GUID fields (Data1, Data2,
// Data3, Data4).
func NewGUID(d1 uint32, d2 uint16, d3 uint16, d4 [8]byte) (g GUID) {
	binary.LittleEndian.PutUint32(g[0:4], d1)
	binary.LittleEndian.PutUint16(g[4:6], d2)
	binary.LittleEndian.PutUint16(g[6:8], d3)
	copy(g[8:], d4[:])

	return
}

// ParseGUID parses a GUID in registry string format into a native EFI GUID.
func ParseGUID(s string) (out GUID, err error) {
	var off int
	var buf []byte

	m := guidPattern.FindStringSubmatch(s)

	if len(m) != 6 {
		return GUID{}, fmt.Errorf("invalid GUID format: %q", s)
	}

	m = m[1:]

	for i, b := range m {
		if buf, err = hex.DecodeString(b); err != nil {
			return GUID{}, err
		}

		switch i {
		case 0:
			out[off+0] = buf[3]
			out[off+1] = buf[2]
			out[off+2] = buf[1]
			out[off+3] = buf[0]
			off += 4
		case 1, 2:
			out[off+0] = buf[1]
			out[off+1] = buf[0]
			off += 2
		default:
			copy(out[off:], buf)
			off += len(buf)
		}
	}

	return out, nil
}

// MustParseGUID is like ParseGUID but panics on error. It is intended for package
// level GUID declarations.
func MustParseGUID(s string) (g GUID) {
	var err error

	if g, err = ParseGUID(s); err != nil {
		panic(err)
	}

	return
}

// Data1 returns the first GUID field.
func (g GUID) Data1() uint32 {
	return binary.LittleEndian.Uint32(g[0:4])
}

// Data2 returns the second GUID field.
func (g GUID) Data2() uint16 {
	return binary.LittleEndian.Uint16(g[4:6])
}

// Data3 returns the third GUID field.
func (g GUID) Data3() uint16 {
	return binary.LittleEndian.Uint16(g[6:8])
}

// Data4 returns the fourth GUID field.
func (g GUID) Data4() (d4 [8]byte) {
	copy(d4[:], g[8:])
	return
}

// IsZero reports whether the GUID is all zeroes.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// String returns the registry format string representation of the GUID.
// https://uefi.org/specs/UEFI/2.10/Apx_A_GUID_and_Time_Formats.html
func (g GUID) String() string {
	// First three fields are little-endian 32/16/16
	return fmt.Sprintf("%08x-%04x-%04x-%x-%x",
		g.Data1(),
		g.Data2(),
		g.Data3(),
		g[8:10],
		g[10:])
}
