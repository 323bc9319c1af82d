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

// Package gui builds the per-snapshot index of GUI threads. A thread is
// considered a GUI thread when the Win32ThreadInfo pointer in its environment
// block is set. The index maps the kernel address of the thread information
// to the thread and process identity, so kernel objects referencing the
// thread can be attributed to it.
package gui

import (
	"fmt"
	"sort"

	"github.com/rabbitstack/hookmon/pkg/ps"
)

// Thread is the identity of a single GUI thread.
type Thread struct {
	// Win32ThreadInfo is the kernel address of the thread information structure.
	Win32ThreadInfo uintptr
	// TID is the thread identifier.
	TID uint32
	// PID is the identifier of the process owning the thread.
	PID uint32
	// Name is the image name of the process owning the thread.
	Name string
	// Unique is false when another thread in the same snapshot reported the same
	// thread information address.
	Unique bool
	// Process is the enumeration record of the owning process.
	Process *ps.Process
	// Thread is the enumeration record of the thread.
	Thread *ps.Thread
}

// String returns the thread identity in the name (pid:tid) form.
func (t *Thread) String() string {
	if t == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s (%d:%d)", t.Name, t.PID, t.TID)
}

// SameIdentity determines whether both threads denote the same thread. Two
// unknown threads are considered identical.
func SameIdentity(a, b *Thread) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Win32ThreadInfo == b.Win32ThreadInfo &&
		a.TID == b.TID &&
		a.PID == b.PID &&
		a.Name == b.Name
}

// Index is the collection of GUI threads sorted by the thread information address.
type Index struct {
	threads   []Thread
	dups      int
	truncated bool
}

// NewIndex sorts the threads and flags the records sharing the thread
// information address as non-unique.
func NewIndex(threads []Thread) *Index {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].Win32ThreadInfo < threads[j].Win32ThreadInfo
	})
	ix := &Index{threads: threads}
	for i := range threads {
		threads[i].Unique = true
	}
	for i := 1; i < len(threads); i++ {
		if threads[i].Win32ThreadInfo == threads[i-1].Win32ThreadInfo {
			if threads[i-1].Unique {
				ix.dups++
			}
			threads[i-1].Unique = false
			threads[i].Unique = false
			ix.dups++
		}
	}
	return ix
}

// Lookup finds the thread by the kernel address of its thread information.
// It returns nil if there is no such thread or the address is ambiguous.
func (ix *Index) Lookup(addr uintptr) *Thread {
	if ix == nil || addr == 0 {
		return nil
	}
	i := sort.Search(len(ix.threads), func(i int) bool {
		return ix.threads[i].Win32ThreadInfo >= addr
	})
	if i == len(ix.threads) || ix.threads[i].Win32ThreadInfo != addr || !ix.threads[i].Unique {
		return nil
	}
	return &ix.threads[i]
}

// Len returns the number of indexed threads.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.threads)
}

// Duplicates returns the number of threads excluded from lookups.
func (ix *Index) Duplicates() int {
	if ix == nil {
		return 0
	}
	return ix.dups
}

// Threads returns all indexed threads in address order.
func (ix *Index) Threads() []Thread {
	if ix == nil {
		return nil
	}
	return ix.threads
}

// Truncated reports whether the index was capped at the maximum number of threads.
func (ix *Index) Truncated() bool { return ix != nil && ix.truncated }
