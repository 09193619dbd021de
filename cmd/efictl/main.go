// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// efictl exercises UEFI protocol sessions against emulated firmware
// descriptions.
package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	_ "github.com/usbarmory/go-efiproto/cmd"
	"github.com/usbarmory/go-efiproto/shell"
	"github.com/usbarmory/go-efiproto/uefi"
	"github.com/usbarmory/go-efiproto/uefi/emu"
	"github.com/usbarmory/go-efiproto/uefi/proto"
)

const (
	logLevelFlag = "log-level"
	firmwareFlag = "firmware"
	vt100Flag    = "vt100"
)

var (
	logLevels = map[string]logrus.Level{
		"panic": logrus.PanicLevel,
		"fatal": logrus.FatalLevel,
		"error": logrus.ErrorLevel,
		"warn":  logrus.WarnLevel,
		"info":  logrus.InfoLevel,
		"debug": logrus.DebugLevel,
		"trace": logrus.TraceLevel,
	}

	log = logrus.WithField("service", "efictl")
)

func levels() (names []string) {
	for name := range logLevels {
		names = append(names, name)
	}

	slices.Sort(names)

	return
}

func setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	if c.IsSet(logLevelFlag) {
		level, ok := logLevels[strings.ToLower(c.String(logLevelFlag))]

		if !ok {
			return ctx, fmt.Errorf("invalid log level %q", c.String(logLevelFlag))
		}

		logrus.SetLevel(level)
	}

	// command handlers log through the standard library
	stdlog.SetFlags(0)
	stdlog.SetOutput(logrus.StandardLogger().WriterLevel(logrus.InfoLevel))

	return ctx, nil
}

func firmware(c *cli.Command) (fw *emu.Firmware, err error) {
	path := c.String(firmwareFlag)

	if path == "" {
		log.Debug("no firmware description, using empty firmware")
		return emu.Default(), nil
	}

	cfg, err := emu.LoadConfig(path)

	if err != nil {
		return
	}

	if fw, err = cfg.Build(); err != nil {
		return nil, fmt.Errorf("failed to build firmware: %w", err)
	}

	log.Debugf("loaded firmware description %s (%d handles)", path, len(fw.Handles()))

	return
}

func iface(c *cli.Command) (*shell.Interface, *emu.Firmware, error) {
	fw, err := firmware(c)

	if err != nil {
		return nil, nil, err
	}

	return &shell.Interface{
		Banner:  fmt.Sprintf("efictl • %s", c.String(firmwareFlag)),
		Session: uefi.NewSession(fw, proto.Namespace()),
		VT100:   c.Bool(vt100Flag),
	}, fw, nil
}

func main() {
	firmwareFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    firmwareFlag,
			Aliases: []string{"f"},
			Usage:   "emulated firmware description (TOML)",
		},
	}

	cmd := &cli.Command{
		Name:   "efictl",
		Usage:  "A tool to exercise UEFI protocol overlays on emulated firmware",
		Before: setup,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: fmt.Sprintf("Set log level. Possible: %v", strings.Join(levels(), ",")),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "shell",
				Usage: "Start an interactive shell over a protocol session",
				Flags: append(firmwareFlags, &cli.BoolFlag{
					Name:  vt100Flag,
					Usage: "enable VT100 prompt",
				}),
				Action: func(ctx context.Context, c *cli.Command) error {
					i, _, err := iface(c)

					if err != nil {
						return err
					}

					defer i.Session.Close()

					return startTerminal(i)
				},
			},
			{
				Name:      "run",
				Usage:     "Execute shell commands over a protocol session",
				ArgsUsage: "<command>...",
				Flags:     firmwareFlags,
				Action: func(ctx context.Context, c *cli.Command) (err error) {
					i, _, err := iface(c)

					if err != nil {
						return err
					}

					defer func() {
						if cerr := i.Session.Close(); cerr != nil {
							log.Warnf("failed to close session: %v", cerr)
						}
					}()

					for _, line := range c.Args().Slice() {
						res, err := i.Exec(line)

						if len(res) > 0 {
							fmt.Println(res)
						}

						if err != nil {
							return fmt.Errorf("%s: %w", line, err)
						}
					}

					return
				},
			},
			{
				Name:  "inspect",
				Usage: "List emulated handles and their protocols",
				Flags: firmwareFlags,
				Action: func(ctx context.Context, c *cli.Command) error {
					_, fw, err := iface(c)

					if err != nil {
						return err
					}

					fmt.Print(inspect(fw, proto.Namespace()))

					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
