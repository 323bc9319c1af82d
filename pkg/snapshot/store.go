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

// Package snapshot captures the point-in-time view of the hook objects
// across the attached desktops, together with the thread data used to
// attribute the hooks to GUI threads.
package snapshot

import (
	"time"

	"github.com/rabbitstack/hookmon/pkg/desktop"
	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/ps"
)

// DesktopItem holds the hooks found in the heap of a single desktop.
type DesktopItem struct {
	Desktop *desktop.Handle
	// Hooks is preallocated to the item capacity. Only the first Count
	// records are valid.
	Hooks []hook.Record
	Count int
	// Truncated is the number of hooks dropped because the capacity was exhausted.
	Truncated int
}

// Records returns the valid hook records.
func (d *DesktopItem) Records() []hook.Record { return d.Hooks[:d.Count] }

// Name returns the desktop name.
func (d *DesktopItem) Name() string { return d.Desktop.Name }

func (d *DesktopItem) reset() {
	for i := 0; i < d.Count; i++ {
		d.Hooks[i] = hook.Record{}
	}
	d.Count = 0
	d.Truncated = 0
}

// Store is the snapshot of hooks and GUI threads. Stores are reused across
// polling cycles, so they are allocated once and soft reset afterwards.
type Store struct {
	// Procs holds the enumerated processes and threads.
	Procs *ps.Snapshot
	// Index is the GUI thread index built from the enumerated threads.
	Index *gui.Index
	// Desktops contains the hooks of every attached desktop, in the order
	// the desktops were attached.
	Desktops []*DesktopItem

	// ThreadsInit is the time the threads were enumerated.
	ThreadsInit time.Time
	// IndexInit is the time the GUI thread index was built.
	IndexInit time.Time
	// Init is the time the snapshot was completed.
	Init time.Time
}

// New allocates the store for the desktops, where each desktop can hold
// up to the maximum number of USER objects.
func New(desktops []*desktop.Handle, flags ps.Flags) *Store {
	return NewWithCapacity(desktops, flags, hook.MaxObjects)
}

// NewWithCapacity allocates the store with the given per-desktop hook capacity.
func NewWithCapacity(desktops []*desktop.Handle, flags ps.Flags, capacity int) *Store {
	s := &Store{
		Procs:    ps.NewSnapshot(flags),
		Desktops: make([]*DesktopItem, len(desktops)),
	}
	for i, d := range desktops {
		s.Desktops[i] = &DesktopItem{Desktop: d, Hooks: make([]hook.Record, capacity)}
	}
	return s
}

// Reset invalidates the snapshot while keeping the allocated memory.
func (s *Store) Reset() {
	s.Init = time.Time{}
	s.IndexInit = time.Time{}
	s.ThreadsInit = time.Time{}
	s.Index = nil
	s.Procs.Reset()
	s.resetHooks()
}

func (s *Store) resetHooks() {
	for _, d := range s.Desktops {
		d.reset()
	}
}

// IsValid determines if the snapshot was completed.
func (s *Store) IsValid() bool { return s != nil && !s.Init.IsZero() }

// HookCount returns the number of hooks across all desktops.
func (s *Store) HookCount() int {
	var n int
	for _, d := range s.Desktops {
		n += d.Count
	}
	return n
}

// Find returns the desktop item containing the kernel object of the given size.
func (s *Store) Find(addr, size uintptr) *DesktopItem {
	for _, d := range s.Desktops {
		if d.Desktop.Contains(addr, size) {
			return d
		}
	}
	return nil
}
