// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package shell implements a terminal console handler for user defined
// commands.
package shell

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/term"

	"github.com/usbarmory/go-efiproto/uefi"
)

// ErrUnknownCommand is returned for input lines not matching any command.
var ErrUnknownCommand = errors.New("unknown command, type `help`")

func init() {
	Add(Cmd{
		Name: "help",
		Help: "this help",
		Fn:   Help,
	})
}

// Interface represents a terminal interface.
type Interface struct {
	// Banner represents the welcome message
	Banner string

	// Log represents the interface log file
	Log io.Writer

	// ReadWriter represents the terminal connection
	ReadWriter io.ReadWriter

	// Session represents the protocol session exposed to commands
	Session *uefi.Session

	VT100 bool
}

// Exec executes the command matching the argument input line.
func (iface *Interface) Exec(line string) (res string, err error) {
	var match *Cmd
	var arg []string

	line = strings.TrimSpace(line)

	for _, cmd := range commands() {
		if cmd.Pattern == nil {
			if cmd.Name == line {
				match = cmd
				break
			}
		} else if m := cmd.Pattern.FindStringSubmatch(line); len(m) > 0 && (len(m)-1 == cmd.Args) {
			match = cmd
			arg = m[1:]
			break
		}
	}

	if match == nil {
		return "", ErrUnknownCommand
	}

	return match.Fn(iface, arg)
}

func (iface *Interface) handleLine(line string, w io.Writer) (err error) {
	if len(strings.TrimSpace(line)) == 0 {
		return
	}

	if iface.Log != nil {
		fmt.Fprintf(iface.Log, "> %s\n", line)
	}

	res, err := iface.Exec(line)

	if len(res) > 0 {
		fmt.Fprintln(w, res)
	}

	return
}

func (iface *Interface) readLine(t *term.Terminal, w io.Writer) error {
	s, err := t.ReadLine()

	if err == io.EOF {
		return err
	}

	if err != nil {
		log.Printf("readline error, %v", err)
		return nil
	}

	if err = iface.handleLine(s, w); err != nil {
		if err == io.EOF {
			return err
		}

		fmt.Fprintf(w, "command error, %v\n", err)
		return nil
	}

	return nil
}

// Start handles registered commands over the interface ReadWriter.
func (iface *Interface) Start() {
	var w io.Writer

	t := term.NewTerminal(iface.ReadWriter, "")
	w = iface.ReadWriter

	if iface.VT100 {
		t.SetPrompt(string(t.Escape.Red) + "> " + string(t.Escape.Reset))
		w = t
	}

	help, _ := Help(iface, nil)

	fmt.Fprintf(t, "\n%s\n\n", iface.Banner)
	fmt.Fprintf(t, "%s\n", help)

	for {
		if err := iface.readLine(t, w); err != nil {
			return
		}
	}
}
