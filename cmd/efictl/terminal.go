// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/usbarmory/go-efiproto/shell"
)

type console struct {
	io.Reader
	io.Writer
}

func startTerminal(i *shell.Interface) error {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)

		if err != nil {
			return err
		}

		defer term.Restore(fd, state)
	}

	i.ReadWriter = console{os.Stdin, os.Stdout}
	i.Start()

	return nil
}
