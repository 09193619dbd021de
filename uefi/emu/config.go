// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package emu

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/usbarmory/go-efiproto/uefi"
)

// Config represents an emulated firmware description.
//
// Example:
//
//	[[handle]]
//	name = "image"
//
//	  [[handle.protocol]]
//	  guid = "5b1b31a1-9562-11d2-8e3f-00a0c969723b"
//	  words = [0x1000, 0, 0, 0, 0, 0, 0, 0, 0x100000, 0x2000, 0x200000001, 0]
//	  handles = { 1 = "root", 3 = "disk" }
//	  entries = { 11 = "EFI_SUCCESS" }
type Config struct {
	// Base is the arena virtual base address.
	Base uint64 `toml:"base"`
	// Size is the arena size.
	Size int `toml:"size"`
	// Handles are created in declaration order.
	Handles []HandleConfig `toml:"handle"`
}

// HandleConfig represents an emulated handle.
type HandleConfig struct {
	Name      string           `toml:"name"`
	Protocols []ProtocolConfig `toml:"protocol"`
}

// ProtocolConfig represents a protocol interface installed on a handle.
type ProtocolConfig struct {
	// GUID is the protocol GUID in registry format.
	GUID string `toml:"guid"`
	// Words is the interface content as little-endian 64-bit words.
	Words []int64 `toml:"words"`
	// Handles maps word indices to the value of named handles.
	Handles map[string]string `toml:"handles"`
	// Entries maps word indices to entry points returning the given
	// status.
	Entries map[string]string `toml:"entries"`
	// Null installs a NULL interface.
	Null bool `toml:"null"`
	// Offset displaces the interface address by the given amount of bytes.
	Offset uint64 `toml:"offset"`
}

// LoadConfig parses an emulated firmware description file.
func LoadConfig(path string) (cfg *Config, err error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if cfg, err = ParseConfig(string(data)); err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	return
}

// ParseConfig parses an emulated firmware description.
func ParseConfig(data string) (cfg *Config, err error) {
	cfg = &Config{}

	meta, err := toml.Decode(data, cfg)

	if err != nil {
		return nil, err
	}

	if keys := meta.Undecoded(); len(keys) > 0 {
		return nil, fmt.Errorf("unknown keys %v", keys)
	}

	if !meta.IsDefined("base") {
		cfg.Base = DefaultBase
	}

	if !meta.IsDefined("size") {
		cfg.Size = DefaultSize
	}

	return
}

func index(key string, n int) (i int, err error) {
	if i, err = strconv.Atoi(strings.TrimSpace(key)); err != nil {
		return
	}

	if i < 0 || i >= n {
		return 0, fmt.Errorf("word index %d out of range", i)
	}

	return
}

// Build returns an emulated firmware instance populated according to the
// description.
func (cfg *Config) Build() (fw *Firmware, err error) {
	if fw, err = New(cfg.Base, cfg.Size); err != nil {
		return
	}

	names := make(map[string]uefi.Handle)
	handles := make([]uefi.Handle, len(cfg.Handles))

	for i, hc := range cfg.Handles {
		if hc.Name != "" {
			if _, ok := names[hc.Name]; ok {
				return nil, fmt.Errorf("duplicate handle %q", hc.Name)
			}
		}

		if handles[i], err = fw.NewHandle(hc.Name); err != nil {
			return
		}

		if hc.Name != "" {
			names[hc.Name] = handles[i]
		}
	}

	for i, hc := range cfg.Handles {
		for _, pc := range hc.Protocols {
			if err = pc.install(fw, handles[i], names); err != nil {
				return nil, fmt.Errorf("handle %q, %w", hc.Name, err)
			}
		}
	}

	return
}

func (pc *ProtocolConfig) install(fw *Firmware, h uefi.Handle, names map[string]uefi.Handle) (err error) {
	var addr uint64

	guid, err := uefi.ParseGUID(pc.GUID)

	if err != nil {
		return
	}

	if pc.Null {
		return fw.Install(h, guid, 0)
	}

	words := make([]uint64, len(pc.Words))

	for i, w := range pc.Words {
		words[i] = uint64(w)
	}

	for _, k := range sortedKeys(pc.Handles) {
		i, err := index(k, len(words))

		if err != nil {
			return err
		}

		ref, ok := names[pc.Handles[k]]

		if !ok {
			return fmt.Errorf("unknown handle %q", pc.Handles[k])
		}

		words[i] = fw.Value(ref)
	}

	for _, k := range sortedKeys(pc.Entries) {
		i, err := index(k, len(words))

		if err != nil {
			return err
		}

		status, err := uefi.StatusByName(strings.TrimSpace(pc.Entries[k]))

		if err != nil {
			return err
		}

		words[i] = fw.Func(func(...uint64) uefi.Status { return status })
	}

	if addr, err = fw.Alloc(len(words)*8 + int(pc.Offset)); err != nil {
		return
	}

	addr += pc.Offset

	for i, w := range words {
		if err = fw.PutUint64(addr+uint64(i*8), w); err != nil {
			return
		}
	}

	return fw.Install(h, guid, addr)
}

func sortedKeys(m map[string]string) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return
}
