/*
 * Copyright 2021-2022 by Nedim Sabic Sabic
 * https://www.fibratus.io
 * All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package desktop attaches to the desktops whose heaps are inspected for
// hook objects. A desktop heap is mapped into the address space only when
// a thread of the process is assigned to the desktop, so every attached
// desktop is served by a dedicated OS thread that stays on the desktop
// until the handle is closed.
package desktop

import (
	"fmt"
	"io"

	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
)

// Heap describes the desktop heap mapping.
type Heap struct {
	// Base is the kernel address of the heap start.
	Base uintptr
	// Limit is the kernel address of the heap end.
	Limit uintptr
	// Delta is the difference between the kernel and the user address of the mapping.
	Delta uintptr
}

// Size returns the heap size in bytes.
func (h Heap) Size() uintptr { return h.Limit - h.Base }

// validate checks the heap mapping is coherent.
func (h Heap) validate(name string) error {
	var reason string
	switch {
	case h.Delta == 0:
		reason = "client delta is zero"
	case h.Base == 0 || h.Limit == 0:
		reason = "heap bounds are null"
	case h.Base >= h.Limit:
		reason = fmt.Sprintf("heap base 0x%x is not below the limit 0x%x", h.Base, h.Limit)
	case h.Delta > h.Base:
		reason = fmt.Sprintf("client delta 0x%x exceeds the heap base 0x%x", h.Delta, h.Base)
	default:
		return nil
	}
	return kerrors.ErrInvalidHeap{Desktop: name, Reason: reason}
}

// Handle represents the attached desktop.
type Handle struct {
	// Name is the desktop name.
	Name string
	Heap
	closer io.Closer
}

// Contains determines if the object of the given size located at the
// kernel address lies entirely inside the desktop heap.
func (h *Handle) Contains(addr, size uintptr) bool {
	return addr >= h.Base && addr < h.Limit && size <= h.Limit-addr
}

// ToUser translates the kernel address in the desktop heap to the address
// of the user mapping.
func (h *Handle) ToUser(addr uintptr) uintptr { return addr - h.Delta }

// String returns the desktop name.
func (h *Handle) String() string { return h.Name }

// Close detaches from the desktop and waits for the attached thread to exit.
func (h *Handle) Close() error {
	if h.closer == nil {
		return nil
	}
	err := h.closer.Close()
	h.closer = nil
	return err
}

// NewHandle creates the handle of the desktop that isn't bound to an
// attached thread.
func NewHandle(name string, heap Heap) *Handle {
	return &Handle{Name: name, Heap: heap}
}

// ReadHeap locates the desktop heap of the thread with the given
// environment block. The thread environment block embeds the client
// information that points to the desktop information structure.
func ReadHeap(r sys.MemReader, teb uintptr, o *offsets.Offsets) (Heap, error) {
	clientInfo := teb + o.TebWin32ClientInfo
	deskInfo, err := sys.ReadPointer(r, clientInfo+o.ClientInfoDeskInfo, o.PtrSize)
	if err != nil {
		return Heap{}, fmt.Errorf("couldn't read desktop info pointer: %v", err)
	}
	if deskInfo == 0 {
		return Heap{}, fmt.Errorf("thread has no desktop info")
	}
	delta, err := sys.ReadPointer(r, clientInfo+o.ClientInfoDelta, o.PtrSize)
	if err != nil {
		return Heap{}, fmt.Errorf("couldn't read client delta: %v", err)
	}
	base, err := sys.ReadPointer(r, deskInfo+o.DeskInfoBase, o.PtrSize)
	if err != nil {
		return Heap{}, fmt.Errorf("couldn't read desktop heap base: %v", err)
	}
	limit, err := sys.ReadPointer(r, deskInfo+o.DeskInfoLimit, o.PtrSize)
	if err != nil {
		return Heap{}, fmt.Errorf("couldn't read desktop heap limit: %v", err)
	}
	return Heap{Base: base, Limit: limit, Delta: delta}, nil
}
