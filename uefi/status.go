// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
	"strconv"
)

// Status represents an EFI_STATUS value as returned by firmware services.
//
// Any value is valid, values without a symbolic name (e.g. vendor codes) are
// preserved as is.
type Status uint64

// StatusClass represents the class of an EFI_STATUS value.
type StatusClass int

// EFI_STATUS classes
const (
	Success StatusClass = iota
	Warning
	Error
)

// EFI_STATUS high bits
const (
	errorBit Status = 1 << 63
	oemBit   Status = 1 << 62
)

// Unified Extensible Firmware Interface (UEFI) Specification
// Version 2.10 - Appendix D - Status Codes
const (
	EFI_SUCCESS Status = 0

	EFI_LOAD_ERROR           = errorBit | 1
	EFI_INVALID_PARAMETER    = errorBit | 2
	EFI_UNSUPPORTED          = errorBit | 3
	EFI_BAD_BUFFER_SIZE      = errorBit | 4
	EFI_BUFFER_TOO_SMALL     = errorBit | 5
	EFI_NOT_READY            = errorBit | 6
	EFI_DEVICE_ERROR         = errorBit | 7
	EFI_WRITE_PROTECTED      = errorBit | 8
	EFI_OUT_OF_RESOURCES     = errorBit | 9
	EFI_VOLUME_CORRUPTED     = errorBit | 10
	EFI_VOLUME_FULL          = errorBit | 11
	EFI_NO_MEDIA             = errorBit | 12
	EFI_MEDIA_CHANGED        = errorBit | 13
	EFI_NOT_FOUND            = errorBit | 14
	EFI_ACCESS_DENIED        = errorBit | 15
	EFI_NO_RESPONSE          = errorBit | 16
	EFI_NO_MAPPING           = errorBit | 17
	EFI_TIMEOUT              = errorBit | 18
	EFI_NOT_STARTED          = errorBit | 19
	EFI_ALREADY_STARTED      = errorBit | 20
	EFI_ABORTED              = errorBit | 21
	EFI_ICMP_ERROR           = errorBit | 22
	EFI_TFTP_ERROR           = errorBit | 23
	EFI_PROTOCOL_ERROR       = errorBit | 24
	EFI_INCOMPATIBLE_VERSION = errorBit | 25
	EFI_SECURITY_VIOLATION   = errorBit | 26
	EFI_CRC_ERROR            = errorBit | 27
	EFI_END_OF_MEDIA         = errorBit | 28
	EFI_END_OF_FILE          = errorBit | 31
	EFI_INVALID_LANGUAGE     = errorBit | 32
	EFI_COMPROMISED_DATA     = errorBit | 33
	EFI_IP_ADDRESS_CONFLICT  = errorBit | 34
	EFI_HTTP_ERROR           = errorBit | 35

	EFI_WARN_UNKNOWN_GLYPH    Status = 1
	EFI_WARN_DELETE_FAILURE   Status = 2
	EFI_WARN_WRITE_FAILURE    Status = 3
	EFI_WARN_BUFFER_TOO_SMALL Status = 4
	EFI_WARN_STALE_DATA       Status = 5
	EFI_WARN_FILE_SYSTEM      Status = 6
	EFI_WARN_RESET_REQUIRED   Status = 7
)

var statusNames = map[Status]string{
	EFI_SUCCESS:               "EFI_SUCCESS",
	EFI_LOAD_ERROR:            "EFI_LOAD_ERROR",
	EFI_INVALID_PARAMETER:     "EFI_INVALID_PARAMETER",
	EFI_UNSUPPORTED:           "EFI_UNSUPPORTED",
	EFI_BAD_BUFFER_SIZE:       "EFI_BAD_BUFFER_SIZE",
	EFI_BUFFER_TOO_SMALL:      "EFI_BUFFER_TOO_SMALL",
	EFI_NOT_READY:             "EFI_NOT_READY",
	EFI_DEVICE_ERROR:          "EFI_DEVICE_ERROR",
	EFI_WRITE_PROTECTED:       "EFI_WRITE_PROTECTED",
	EFI_OUT_OF_RESOURCES:      "EFI_OUT_OF_RESOURCES",
	EFI_VOLUME_CORRUPTED:      "EFI_VOLUME_CORRUPTED",
	EFI_VOLUME_FULL:           "EFI_VOLUME_FULL",
	EFI_NO_MEDIA:              "EFI_NO_MEDIA",
	EFI_MEDIA_CHANGED:         "EFI_MEDIA_CHANGED",
	EFI_NOT_FOUND:             "EFI_NOT_FOUND",
	EFI_ACCESS_DENIED:         "EFI_ACCESS_DENIED",
	EFI_NO_RESPONSE:           "EFI_NO_RESPONSE",
	EFI_NO_MAPPING:            "EFI_NO_MAPPING",
	EFI_TIMEOUT:               "EFI_TIMEOUT",
	EFI_NOT_STARTED:           "EFI_NOT_STARTED",
	EFI_ALREADY_STARTED:       "EFI_ALREADY_STARTED",
	EFI_ABORTED:               "EFI_ABORTED",
	EFI_ICMP_ERROR:            "EFI_ICMP_ERROR",
	EFI_TFTP_ERROR:            "EFI_TFTP_ERROR",
	EFI_PROTOCOL_ERROR:        "EFI_PROTOCOL_ERROR",
	EFI_INCOMPATIBLE_VERSION:  "EFI_INCOMPATIBLE_VERSION",
	EFI_SECURITY_VIOLATION:    "EFI_SECURITY_VIOLATION",
	EFI_CRC_ERROR:             "EFI_CRC_ERROR",
	EFI_END_OF_MEDIA:          "EFI_END_OF_MEDIA",
	EFI_END_OF_FILE:           "EFI_END_OF_FILE",
	EFI_INVALID_LANGUAGE:      "EFI_INVALID_LANGUAGE",
	EFI_COMPROMISED_DATA:      "EFI_COMPROMISED_DATA",
	EFI_IP_ADDRESS_CONFLICT:   "EFI_IP_ADDRESS_CONFLICT",
	EFI_HTTP_ERROR:            "EFI_HTTP_ERROR",
	EFI_WARN_UNKNOWN_GLYPH:    "EFI_WARN_UNKNOWN_GLYPH",
	EFI_WARN_DELETE_FAILURE:   "EFI_WARN_DELETE_FAILURE",
	EFI_WARN_WRITE_FAILURE:    "EFI_WARN_WRITE_FAILURE",
	EFI_WARN_BUFFER_TOO_SMALL: "EFI_WARN_BUFFER_TOO_SMALL",
	EFI_WARN_STALE_DATA:       "EFI_WARN_STALE_DATA",
	EFI_WARN_FILE_SYSTEM:      "EFI_WARN_FILE_SYSTEM",
	EFI_WARN_RESET_REQUIRED:   "EFI_WARN_RESET_REQUIRED",
}

// Class returns the status class, determined exclusively by the EFI_STATUS
// high bit convention so that unknown codes are classified as well.
func (s Status) Class() StatusClass {
	switch {
	case s&errorBit != 0:
		return Error
	case s == EFI_SUCCESS:
		return Success
	default:
		return Warning
	}
}

// IsError reports whether the status belongs to the error class.
func (s Status) IsError() bool {
	return s.Class() == Error
}

// IsWarning reports whether the status belongs to the warning class.
func (s Status) IsWarning() bool {
	return s.Class() == Warning
}

// IsOEM reports whether the status is an OEM defined error or warning.
func (s Status) IsOEM() bool {
	return s&oemBit != 0
}

// Code returns the status code without the class bits.
func (s Status) Code() uint64 {
	return uint64(s &^ (errorBit | oemBit))
}

// String returns the symbolic status name, if known, or its numeric value.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	switch s.Class() {
	case Error:
		return fmt.Sprintf("EFI_STATUS error %#x (%d)", uint64(s), s.Code())
	default:
		return fmt.Sprintf("EFI_STATUS warning %#x (%d)", uint64(s), s.Code())
	}
}

// Error implements the error interface.
func (s Status) Error() string {
	return s.String()
}

// Err returns the status as error for the error class, nil otherwise.
func (s Status) Err() error {
	if s.IsError() {
		return s
	}

	return nil
}

// String returns the class name.
func (c StatusClass) String() string {
	switch c {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("StatusClass(%d)", int(c))
	}
}

func parseStatus(status uint64) (err error) {
	return Status(status).Err()
}

// StatusByName returns the status matching the argument symbolic name (e.g.
// EFI_NOT_FOUND) or numeric value.
func StatusByName(name string) (s Status, err error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}

	v, err := strconv.ParseUint(name, 0, 64)

	if err != nil {
		return 0, fmt.Errorf("invalid status %q", name)
	}

	return Status(v), nil
}
