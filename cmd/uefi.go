// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/usbarmory/go-efiproto/shell"
	"github.com/usbarmory/go-efiproto/uefi"
	"github.com/usbarmory/go-efiproto/uefi/proto"
)

const guidPattern = `[[:xdigit:]]{8}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{12}`

// ErrNoSession is returned by commands requiring a protocol session when
// none is attached to the shell interface.
var ErrNoSession = errors.New("no protocol session")

func init() {
	shell.Add(shell.Cmd{
		Name: "protocols",
		Help: "list bound protocol overlays",
		Fn:   protocolsCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "guid",
		Args:    1,
		Pattern: regexp.MustCompile(`^guid (` + guidPattern + `)$`),
		Syntax:  "<registry format GUID>",
		Help:    "decode GUID",
		Fn:      guidCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "status",
		Args:    1,
		Pattern: regexp.MustCompile(`^status (0x[[:xdigit:]]+|\d+|EFI_[A-Z_]+)$`),
		Syntax:  "<EFI_STATUS>",
		Help:    "decode EFI_STATUS",
		Fn:      statusCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "handles",
		Args:    1,
		Pattern: regexp.MustCompile(`^handles(?: (\S+))?$`),
		Syntax:  "(protocol)?",
		Help:    "EFI_BOOT_SERVICES.LocateHandleBuffer()",
		Fn:      handlesCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "image",
		Args:    1,
		Pattern: regexp.MustCompile(`^image (0x[[:xdigit:]]+)$`),
		Syntax:  "<handle>",
		Help:    "EFI_LOADED_IMAGE_PROTOCOL information",
		Fn:      imageCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "unload",
		Args:    1,
		Pattern: regexp.MustCompile(`^unload (0x[[:xdigit:]]+)$`),
		Syntax:  "<handle>",
		Help:    "EFI_LOADED_IMAGE_PROTOCOL.Unload()",
		Fn:      unloadCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "net",
		Args:    2,
		Pattern: regexp.MustCompile(`^net (0x[[:xdigit:]]+) (start|stop|init|shutdown)$`),
		Syntax:  "<handle> (start|stop|init|shutdown)",
		Help:    "EFI_SIMPLE_NETWORK_PROTOCOL state transitions",
		Fn:      netCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "gop",
		Args:    2,
		Pattern: regexp.MustCompile(`^gop (0x[[:xdigit:]]+)(?: (\d+))?$`),
		Syntax:  "<handle> (mode)?",
		Help:    "EFI_GRAPHICS_OUTPUT_PROTOCOL information/SetMode()",
		Fn:      gopCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "cls",
		Args:    1,
		Pattern: regexp.MustCompile(`^cls (0x[[:xdigit:]]+)$`),
		Syntax:  "<handle>",
		Help:    "EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen()",
		Fn:      clsCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "fs",
		Args:    1,
		Pattern: regexp.MustCompile(`^fs (0x[[:xdigit:]]+)$`),
		Syntax:  "<handle>",
		Help:    "EFI_SIMPLE_FILE_SYSTEM_PROTOCOL information",
		Fn:      fsCmd,
	})

	shell.Add(shell.Cmd{
		Name: "session",
		Help: "show outstanding protocol acquisitions",
		Fn:   sessionCmd,
	})

	shell.Add(shell.Cmd{
		Name: "exitbs",
		Help: "EFI_BOOT_SERVICES.ExitBootServices()",
		Fn:   exitBootServicesCmd,
	})
}

func session(iface *shell.Interface) (*uefi.Session, error) {
	if iface == nil || iface.Session == nil {
		return nil, ErrNoSession
	}

	return iface.Session, nil
}

func namespace(iface *shell.Interface) *uefi.Namespace {
	if s, err := session(iface); err == nil {
		return s.Namespace()
	}

	return proto.Namespace()
}

func parseHandle(s string) (uefi.Handle, error) {
	v, err := strconv.ParseUint(s, 0, 64)

	if err != nil {
		return uefi.Handle{}, fmt.Errorf("invalid handle, %v", err)
	}

	return uefi.NewHandle(v), nil
}

func protocolsCmd(iface *shell.Interface, _ []string) (string, error) {
	var buf bytes.Buffer

	t := tabwriter.NewWriter(&buf, 0, 8, 1, ' ', 0)
	fmt.Fprintf(t, "Name\tGUID\tSize\tAlign\n")

	for _, b := range namespace(iface).Bindings() {
		fmt.Fprintf(t, "%s\t%s\t%d\t%d\n", b.Name, b.GUID, b.Layout.Size, b.Layout.Align)
	}

	t.Flush()

	return buf.String(), nil
}

func guidCmd(iface *shell.Interface, arg []string) (string, error) {
	var buf bytes.Buffer

	g, err := uefi.ParseGUID(arg[0])

	if err != nil {
		return "", err
	}

	d4 := g.Data4()

	fmt.Fprintf(&buf, "Data1 ......: %#08x\n", g.Data1())
	fmt.Fprintf(&buf, "Data2 ......: %#04x\n", g.Data2())
	fmt.Fprintf(&buf, "Data3 ......: %#04x\n", g.Data3())
	fmt.Fprintf(&buf, "Data4 ......: % x\n", d4[:])
	fmt.Fprintf(&buf, "Bytes ......: % x\n", g[:])

	if b, ok := namespace(iface).Lookup(g); ok {
		fmt.Fprintf(&buf, "Protocol ...: %s\n", b.Name)
	}

	return buf.String(), nil
}

func statusCmd(_ *shell.Interface, arg []string) (string, error) {
	var buf bytes.Buffer

	s, err := uefi.StatusByName(arg[0])

	if err != nil {
		return "", err
	}

	fmt.Fprintf(&buf, "Status .....: %s\n", s)
	fmt.Fprintf(&buf, "Value ......: %#018x\n", uint64(s))
	fmt.Fprintf(&buf, "Class ......: %s\n", s.Class())
	fmt.Fprintf(&buf, "Code .......: %d\n", s.Code())
	fmt.Fprintf(&buf, "OEM ........: %v\n", s.IsOEM())

	return buf.String(), nil
}

func handlesCmd(iface *shell.Interface, arg []string) (string, error) {
	var buf bytes.Buffer

	s, err := session(iface)

	if err != nil {
		return "", err
	}

	bindings := s.Namespace().Bindings()

	if len(arg[0]) > 0 {
		bindings = nil

		for _, b := range s.Namespace().Bindings() {
			if b.Name == arg[0] || strings.TrimPrefix(b.Name, "proto.") == arg[0] || b.GUID.String() == arg[0] {
				bindings = append(bindings, b)
			}
		}

		if len(bindings) == 0 {
			return "", fmt.Errorf("unknown protocol %s", arg[0])
		}
	}

	for _, b := range bindings {
		handles, err := s.Handles(b.GUID)

		if errors.Is(err, uefi.EFI_NOT_FOUND) {
			continue
		}

		if err != nil {
			return "", err
		}

		for _, h := range handles {
			fmt.Fprintf(&buf, "%s %s\n", h, b.Name)
		}
	}

	return buf.String(), nil
}

func imageCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer

	s, err := session(iface)

	if err != nil {
		return
	}

	h, err := parseHandle(arg[0])

	if err != nil {
		return
	}

	err = uefi.With(s, h, func(li *proto.LoadedImage) error {
		base := li.ImageBase()
		size := li.ImageSize()
		e := li.ImageCodeType().E820(base, size)

		fmt.Fprintf(&buf, "Interface .......: %#x\n", li.Address())
		fmt.Fprintf(&buf, "Revision ........: %#x\n", li.Revision())
		fmt.Fprintf(&buf, "Parent ..........: %s\n", li.Parent())
		fmt.Fprintf(&buf, "Device ..........: %s\n", li.Device())
		fmt.Fprintf(&buf, "File Path .......: %#x\n", li.FilePath())
		fmt.Fprintf(&buf, "Load Options ....: %#x (%d bytes)\n", li.LoadOptions(), li.LoadOptionsSize())
		fmt.Fprintf(&buf, "Image ...........: %#x-%#x (%d bytes)\n", base, base+size, size)
		fmt.Fprintf(&buf, "Code Type .......: %s\n", li.ImageCodeType())
		fmt.Fprintf(&buf, "Data Type .......: %s\n", li.ImageDataType())
		fmt.Fprintf(&buf, "E820 ............: %#x-%#x type %d\n", e.Addr, e.Addr+e.Size, uint32(e.MemType))

		return nil
	})

	return buf.String(), err
}

func unloadCmd(iface *shell.Interface, arg []string) (res string, err error) {
	s, err := session(iface)

	if err != nil {
		return
	}

	h, err := parseHandle(arg[0])

	if err != nil {
		return
	}

	log.Printf("unloading image %s", h)

	err = uefi.With(s, h, func(li *proto.LoadedImage) error {
		return li.Unload()
	})

	return
}

func netCmd(iface *shell.Interface, arg []string) (res string, err error) {
	s, err := session(iface)

	if err != nil {
		return
	}

	h, err := parseHandle(arg[0])

	if err != nil {
		return
	}

	err = uefi.With(s, h, func(sn *proto.SimpleNetwork) error {
		switch arg[1] {
		case "start":
			return sn.Start()
		case "stop":
			return sn.Stop()
		case "init":
			return sn.Initialize(0, 0)
		case "shutdown":
			return sn.Shutdown()
		}

		return nil
	})

	return
}

func gopCmd(iface *shell.Interface, arg []string) (res string, err error) {
	s, err := session(iface)

	if err != nil {
		return
	}

	h, err := parseHandle(arg[0])

	if err != nil {
		return
	}

	err = uefi.With(s, h, func(gop *proto.GraphicsOutput) error {
		if len(arg[1]) == 0 {
			res = fmt.Sprintf("Mode ............: %#x", gop.Mode())
			return nil
		}

		mode, err := strconv.ParseUint(arg[1], 10, 32)

		if err != nil {
			return fmt.Errorf("invalid mode, %v", err)
		}

		return gop.SetMode(uint32(mode))
	})

	return
}

func clsCmd(iface *shell.Interface, arg []string) (res string, err error) {
	s, err := session(iface)

	if err != nil {
		return
	}

	h, err := parseHandle(arg[0])

	if err != nil {
		return
	}

	err = uefi.With(s, h, func(c *proto.SimpleTextOutput) error {
		return c.ClearScreen()
	})

	return
}

func fsCmd(iface *shell.Interface, arg []string) (res string, err error) {
	s, err := session(iface)

	if err != nil {
		return
	}

	h, err := parseHandle(arg[0])

	if err != nil {
		return
	}

	err = uefi.With(s, h, func(sfs *proto.SimpleFileSystem) error {
		res = fmt.Sprintf("Revision ........: %#x", sfs.Revision())
		return nil
	})

	return
}

func sessionCmd(iface *shell.Interface, _ []string) (string, error) {
	s, err := session(iface)

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d outstanding acquisitions", s.Len()), nil
}

func exitBootServicesCmd(iface *shell.Interface, _ []string) (string, error) {
	s, err := session(iface)

	if err != nil {
		return "", err
	}

	log.Printf("exiting boot services")

	return "", s.Exit()
}
