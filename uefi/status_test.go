// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusClass(t *testing.T) {
	for _, tc := range []struct {
		status Status
		class  StatusClass
	}{
		{EFI_SUCCESS, Success},
		{EFI_WARN_UNKNOWN_GLYPH, Warning},
		{EFI_WARN_RESET_REQUIRED, Warning},
		{EFI_NOT_FOUND, Error},
		{EFI_UNSUPPORTED, Error},
		{EFI_HTTP_ERROR, Error},
		// unknown codes are classified by their high bits
		{0x8000000000000fff, Error},
		{0xc000000000000001, Error},
		{0x4000000000000001, Warning},
		{0xfff, Warning},
	} {
		if c := tc.status.Class(); c != tc.class {
			t.Errorf("%s: got class %s, expected %s", tc.status, c, tc.class)
		}
	}
}

func TestStatusErr(t *testing.T) {
	if err := EFI_SUCCESS.Err(); err != nil {
		t.Fatalf("success reported as error, %v", err)
	}

	if err := EFI_WARN_STALE_DATA.Err(); err != nil {
		t.Fatalf("warning reported as error, %v", err)
	}

	err := fmt.Errorf("wrapped, %w", EFI_NOT_FOUND.Err())

	if !errors.Is(err, EFI_NOT_FOUND) {
		t.Fatal("status not matched through wrapping")
	}

	if errors.Is(err, EFI_UNSUPPORTED) {
		t.Fatal("status matched against a different code")
	}

	var s Status

	if !errors.As(err, &s) || s != EFI_NOT_FOUND {
		t.Fatalf("unexpected status %v", s)
	}
}

func TestStatusString(t *testing.T) {
	for _, tc := range []struct {
		status Status
		str    string
	}{
		{EFI_SUCCESS, "EFI_SUCCESS"},
		{EFI_NOT_FOUND, "EFI_NOT_FOUND"},
		{EFI_WARN_BUFFER_TOO_SMALL, "EFI_WARN_BUFFER_TOO_SMALL"},
		{0x8000000000000fff, "EFI_STATUS error 0x8000000000000fff (4095)"},
		{0x1234, "EFI_STATUS warning 0x1234 (4660)"},
	} {
		if s := tc.status.String(); s != tc.str {
			t.Errorf("got %q, expected %q", s, tc.str)
		}
	}
}

func TestStatusCode(t *testing.T) {
	s := Status(0xc000000000000005)

	if !s.IsOEM() || !s.IsError() || s.Code() != 5 {
		t.Fatalf("unexpected OEM status decoding %s", s)
	}

	if EFI_NOT_FOUND.IsOEM() || EFI_NOT_FOUND.Code() != 14 {
		t.Fatalf("unexpected status decoding %s", EFI_NOT_FOUND)
	}
}

func TestStatusByName(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status Status
	}{
		{"EFI_SUCCESS", EFI_SUCCESS},
		{"EFI_NOT_FOUND", EFI_NOT_FOUND},
		{"0x800000000000000e", EFI_NOT_FOUND},
		{"3", EFI_WARN_WRITE_FAILURE},
	} {
		s, err := StatusByName(tc.name)

		if err != nil {
			t.Fatal(err)
		}

		if s != tc.status {
			t.Errorf("%s: got %s, expected %s", tc.name, s, tc.status)
		}
	}

	if _, err := StatusByName("EFI_INVALID_STATUS_NAME"); err == nil {
		t.Fatal("expected error")
	}
}
