// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uefi implements safely typed bindings to Unified Extensible
// Firmware Interface (UEFI) protocols following the specifications at:
//
//	https://uefi.org/specs/UEFI/2.10/
//
// Protocol interfaces are fixed layout structures living in firmware owned
// memory, identified by a GUID and reachable from a Handle. This package
// binds overlay types to GUIDs through a Namespace and acquires them, as live
// views over firmware memory, within a Session which releases every protocol
// it opened.
//
// The firmware collaborator for the `GOOS=tamago` target, as supported by
// the TamaGo framework for bare metal Go, is provided by [Services], see
// https://github.com/usbarmory/tamago.
package uefi
