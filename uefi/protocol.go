// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"unsafe"
)

// ErrCapabilityConflict is returned when two distinct overlay types claim the
// same GUID within a Namespace.
var ErrCapabilityConflict = errors.New("capability conflict")

// Layout represents the in-memory representation of a firmware interface.
type Layout struct {
	Size  uintptr
	Align uintptr
	// Entries holds the offsets of the entry points which can be invoked
	// through Call.
	Entries []uintptr
}

// LayoutOf returns the layout of L, a Go structure mirroring field by field,
// padding and reserved fields included, a firmware interface. The offsets of
// the member functions exposed by the overlay must be passed as entries.
func LayoutOf[L any](entries ...uintptr) Layout {
	var l L

	return Layout{
		Size:    unsafe.Sizeof(l),
		Align:   unsafe.Alignof(l),
		Entries: entries,
	}
}

func (l Layout) validate() error {
	if l.Size == 0 || l.Align == 0 {
		return errors.New("empty layout")
	}

	for _, off := range l.Entries {
		if off%8 != 0 || off+8 > l.Size {
			return fmt.Errorf("invalid entry point offset %#x", off)
		}
	}

	return nil
}

// Interface represents a protocol overlay, it is implemented by pointers to
// structures embedding Overlay.
type Interface interface {
	// GUID returns the protocol GUID, it must be constant.
	GUID() GUID
	// Layout returns the protocol interface in-memory representation.
	Layout() Layout

	overlay() *Overlay
}

// Protocol constrains overlay type T to have its pointer implement Interface.
type Protocol[T any] interface {
	*T
	Interface
}

// CapabilityOf returns the GUID of overlay type T.
func CapabilityOf[T any, P Protocol[T]]() GUID {
	return P(new(T)).GUID()
}

// Binding represents the association between an overlay type and its GUID.
type Binding struct {
	// Name is the overlay type name.
	Name string
	// GUID is the protocol GUID.
	GUID GUID
	// Layout is the protocol interface in-memory representation.
	Layout Layout

	zero Interface
	owns func(Interface) bool
}

// Bind returns the Binding for overlay type T.
func Bind[T any, P Protocol[T]]() Binding {
	p := P(new(T))

	return Binding{
		Name:   reflect.TypeFor[T]().String(),
		GUID:   p.GUID(),
		Layout: p.Layout(),
		zero:   p,
		owns: func(i Interface) bool {
			_, ok := i.(P)
			return ok
		},
	}
}

// ConflictError represents a GUID claimed by two overlay types.
type ConflictError struct {
	GUID     GUID
	Existing string
	Claimant string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v, %s claimed by both %s and %s", ErrCapabilityConflict, e.GUID, e.Existing, e.Claimant)
}

// Is allows matching ErrCapabilityConflict with errors.Is.
func (e *ConflictError) Is(target error) bool {
	return target == ErrCapabilityConflict
}

// Namespace represents a set of overlay types where each GUID is claimed by
// at most one type.
//
// A Namespace is immutable once built.
type Namespace struct {
	bindings map[GUID]Binding
}

// NewNamespace builds a Namespace from the argument bindings, any GUID
// claimed by more than one overlay type results in a *ConflictError.
func NewNamespace(bindings ...Binding) (ns *Namespace, err error) {
	ns = &Namespace{
		bindings: make(map[GUID]Binding, len(bindings)),
	}

	for _, b := range bindings {
		if b.owns == nil {
			return nil, fmt.Errorf("invalid binding for %s", b.GUID)
		}

		if err = b.Layout.validate(); err != nil {
			return nil, fmt.Errorf("invalid layout for %s, %v", b.Name, err)
		}

		prev, ok := ns.bindings[b.GUID]

		if !ok {
			ns.bindings[b.GUID] = b
			continue
		}

		if !prev.owns(b.zero) {
			return nil, &ConflictError{
				GUID:     b.GUID,
				Existing: prev.Name,
				Claimant: b.Name,
			}
		}
	}

	return
}

// MustNewNamespace is like NewNamespace but panics on error. It is intended
// for package level declarations.
func MustNewNamespace(bindings ...Binding) *Namespace {
	ns, err := NewNamespace(bindings...)

	if err != nil {
		panic(err)
	}

	return ns
}

// Lookup returns the Binding claiming the argument GUID.
func (ns *Namespace) Lookup(guid GUID) (b Binding, ok bool) {
	b, ok = ns.bindings[guid]
	return
}

// Name returns the name of the overlay type bound to the argument GUID, or the
// GUID registry format if none is bound.
func (ns *Namespace) Name(guid GUID) string {
	if b, ok := ns.bindings[guid]; ok {
		return b.Name
	}

	return guid.String()
}

// Bindings returns all namespace bindings sorted by name.
func (ns *Namespace) Bindings() (bindings []Binding) {
	for _, b := range ns.bindings {
		bindings = append(bindings, b)
	}

	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Name < bindings[j].Name
	})

	return
}

func (ns *Namespace) binding(p Interface) (b Binding, ok bool) {
	if b, ok = ns.bindings[p.GUID()]; !ok {
		return
	}

	return b, b.owns(p)
}
