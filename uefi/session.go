// Copyright (c) The go-efiproto authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Acquisition errors
var (
	// ErrNotFound matches firmware reporting the protocol as absent from
	// the handle (EFI_NOT_FOUND, EFI_UNSUPPORTED).
	ErrNotFound = errors.New("protocol not found")
	// ErrInvalidInterface is returned when firmware resolves a protocol to
	// memory failing the overlay structural checks.
	ErrInvalidInterface = errors.New("invalid protocol interface")
	// ErrNotRegistered is returned when acquiring an overlay type not bound
	// in the session Namespace, it also matches ErrNotFound.
	ErrNotRegistered = errors.New("protocol not registered")
	// ErrAlreadyAcquired is returned when acquiring a (handle, protocol)
	// pair which has not been released yet.
	ErrAlreadyAcquired = errors.New("protocol already acquired")
	// ErrInvalidEntryPoint is returned when invoking an interface offset
	// not declared as entry point.
	ErrInvalidEntryPoint = errors.New("invalid entry point")
	// ErrReleased is returned when using a released overlay.
	ErrReleased = errors.New("protocol released")
	// ErrExited is returned after boot services termination.
	ErrExited = errors.New("boot services exited")
)

// AcquireError represents a failed protocol acquisition.
type AcquireError struct {
	// Protocol is the requested overlay type name.
	Protocol string
	// GUID is the requested protocol GUID.
	GUID GUID
	// Handle is the requested handle.
	Handle Handle
	// Err is the underlying error, firmware errors are forwarded unchanged.
	Err error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("could not acquire %s on handle %s, %v", e.Protocol, e.Handle, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Is allows matching ErrNotFound with errors.Is for unregistered overlay
// types and for firmware statuses reporting the protocol as not present on
// the handle.
func (e *AcquireError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}

	var status Status

	switch {
	case errors.Is(e.Err, ErrNotRegistered):
		return true
	case errors.Is(e.Err, ErrInvalidInterface):
		// joined CloseProtocol failures must not leak through
		return false
	case errors.As(e.Err, &status):
		return status == EFI_NOT_FOUND || status == EFI_UNSUPPORTED
	}

	return false
}

type pair struct {
	handle Handle
	guid   GUID
}

// Session represents the scope of protocol acquisitions performed on a
// firmware instance for a given Namespace.
//
// All Session operations, including overlay entry point calls, are
// serialized.
type Session struct {
	mu sync.Mutex

	fw Firmware
	ns *Namespace

	open   map[pair]*Overlay
	order  []*Overlay
	exited bool
}

// NewSession returns a Session acquiring protocols from the argument firmware
// collaborator, only overlay types bound in the argument Namespace can be
// acquired.
func NewSession(fw Firmware, ns *Namespace) *Session {
	return &Session{
		fw:   fw,
		ns:   ns,
		open: make(map[pair]*Overlay),
	}
}

// Namespace returns the session Namespace.
func (s *Session) Namespace() *Namespace {
	return s.ns
}

// Len returns the number of outstanding acquisitions.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

// Acquire resolves protocol T on the argument handle and returns its overlay,
// which must be released with Close once no longer needed.
//
// Firmware errors are forwarded unchanged within an *AcquireError, the
// errors.Is function can be used to test for ErrNotFound and
// ErrInvalidInterface.
func Acquire[T any, P Protocol[T]](s *Session, handle Handle) (*T, error) {
	p := P(new(T))

	if err := s.acquire(handle, p); err != nil {
		return nil, err
	}

	return (*T)(p), nil
}

// With acquires protocol T on the argument handle, passes it to fn and
// releases it once fn returns.
func With[T any, P Protocol[T]](s *Session, handle Handle, fn func(*T) error) (err error) {
	t, err := Acquire[T, P](s, handle)

	if err != nil {
		return
	}

	defer func() {
		err = errors.Join(err, P(t).overlay().Close())
	}()

	return fn(t)
}

// Probe acquires protocol T on the first handle supporting it, the session
// firmware must implement HandleLocator.
func Probe[T any, P Protocol[T]](s *Session) (t *T, err error) {
	guid := CapabilityOf[T, P]()
	handles, err := s.locate(guid)

	if err != nil {
		return nil, &AcquireError{
			Protocol: s.ns.Name(guid),
			GUID:     guid,
			Err:      err,
		}
	}

	if len(handles) == 0 {
		return nil, &AcquireError{
			Protocol: s.ns.Name(guid),
			GUID:     guid,
			Err:      EFI_NOT_FOUND,
		}
	}

	for _, h := range handles {
		if t, err = Acquire[T, P](s, h); err == nil {
			return
		}
	}

	return
}

func (s *Session) locate(guid GUID) (handles []Handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.fw.(HandleLocator)

	if !ok {
		return nil, errors.New("firmware does not support handle location")
	}

	if s.exited {
		return nil, ErrExited
	}

	return l.LocateHandles(guid)
}

func (s *Session) acquire(handle Handle, p Interface) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guid := p.GUID()
	b, ok := s.ns.binding(p)

	e := &AcquireError{
		Protocol: b.Name,
		GUID:     guid,
		Handle:   handle,
	}

	switch {
	case !ok:
		e.Protocol = reflect.TypeOf(p).Elem().String()
		e.Err = ErrNotRegistered
		return e
	case s.exited:
		e.Err = ErrExited
		return e
	}

	k := pair{handle, guid}

	if _, ok := s.open[k]; ok {
		e.Err = ErrAlreadyAcquired
		return e
	}

	addr, err := s.fw.OpenProtocol(handle, guid)

	if err != nil {
		e.Err = err
		return e
	}

	if addr == 0 || addr%uint64(b.Layout.Align) != 0 {
		e.Err = fmt.Errorf("%w, address %#x", ErrInvalidInterface, addr)
		e.Err = errors.Join(e.Err, s.fw.CloseProtocol(handle, guid))
		return e
	}

	buf, release, err := s.fw.Map(addr, int(b.Layout.Size))

	if err == nil && len(buf) < int(b.Layout.Size) {
		release()
		err = fmt.Errorf("short mapping (%d < %d)", len(buf), b.Layout.Size)
	}

	if err != nil {
		e.Err = fmt.Errorf("%w, %v", ErrInvalidInterface, err)
		e.Err = errors.Join(e.Err, s.fw.CloseProtocol(handle, guid))
		return e
	}

	o := p.overlay()

	*o = Overlay{
		handle:  handle,
		guid:    guid,
		addr:    addr,
		buf:     buf[:b.Layout.Size:b.Layout.Size],
		entries: b.Layout.Entries,
		release: release,
		session: s,
	}

	s.open[k] = o
	s.order = append(s.order, o)

	return
}

// Release closes the protocol acquisition of the argument overlay, the
// firmware close protocol service is invoked before the overlay becomes
// inaccessible.
func (s *Session) Release(o *Overlay) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.release(o)
}

func (s *Session) release(o *Overlay) (err error) {
	k := pair{o.handle, o.guid}

	if s.open[k] != o {
		return ErrReleased
	}

	if err = s.fw.CloseProtocol(o.handle, o.guid); err != nil {
		err = fmt.Errorf("could not close %s on handle %s, %w", s.ns.Name(o.guid), o.handle, err)
	}

	delete(s.open, k)
	s.order = slices.DeleteFunc(s.order, func(e *Overlay) bool { return e == o })

	if o.release != nil {
		o.release()
	}

	o.buf = nil
	o.release = nil

	return
}

// Close releases all outstanding acquisitions, in reverse acquisition order.
func (s *Session) Close() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeAll()
}

func (s *Session) closeAll() (err error) {
	for i := len(s.order) - 1; i >= 0; i-- {
		err = errors.Join(err, s.release(s.order[i]))
	}

	return
}

// Exit releases all outstanding acquisitions and terminates boot services,
// the session firmware must implement Exiter.
func (s *Session) Exit() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.fw.(Exiter)

	if !ok {
		return errors.New("firmware does not support boot services termination")
	}

	if s.exited {
		return ErrExited
	}

	if err = s.closeAll(); err != nil {
		return
	}

	if err = ex.ExitBootServices(); err != nil {
		return
	}

	s.exited = true

	return
}

func (s *Session) call(slot uint64, args ...uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return ErrExited
	}

	return s.fw.Call(slot, args...).Err()
}

// Handles returns all handles supporting the argument protocol, the session
// firmware must implement HandleLocator.
func (s *Session) Handles(guid GUID) (handles []Handle, err error) {
	return s.locate(guid)
}
