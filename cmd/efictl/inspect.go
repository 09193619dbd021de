// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"

	"github.com/usbarmory/go-efiproto/uefi"
	"github.com/usbarmory/go-efiproto/uefi/emu"
)

func inspect(fw *emu.Firmware, ns *uefi.Namespace) string {
	var buf bytes.Buffer

	for _, h := range fw.Handles() {
		fmt.Fprintf(&buf, "%s %s\n", h, fw.Name(h))

		for _, guid := range fw.Protocols(h) {
			fmt.Fprintf(&buf, "  %s %s\n", guid, ns.Name(guid))
		}
	}

	return buf.String()
}
