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

package snapshot

import (
	"fmt"

	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
)

// HandleTable provides access to the USER handle table.
type HandleTable interface {
	// Entries copies the live handle table entries into dst and returns the
	// resulting slice. The table changes concurrently, so the result is
	// a best-effort view.
	Entries(dst []hook.Entry) ([]hook.Entry, error)
}

// handleTable reads the handle table through the SHAREDINFO structure
type handleTable struct {
	mem       sys.MemReader
	ptrSize   uintptr
	count     uintptr
	entries   uintptr
	entrySize uintptr
	buf       []byte
}

// NewHandleTable locates the handle table from the SHAREDINFO structure at the given address.
func NewHandleTable(mem sys.MemReader, sharedInfo uintptr, o *offsets.Offsets) (HandleTable, error) {
	psi, err := sys.ReadPointer(mem, sharedInfo+o.SharedInfoServerInfo, o.PtrSize)
	if err != nil {
		return nil, fmt.Errorf("couldn't read server info pointer: %v", err)
	}
	entries, err := sys.ReadPointer(mem, sharedInfo+o.SharedInfoHandleTable, o.PtrSize)
	if err != nil {
		return nil, fmt.Errorf("couldn't read handle table pointer: %v", err)
	}
	if psi == 0 || entries == 0 {
		return nil, fmt.Errorf("shared info at 0x%x has null pointers", sharedInfo)
	}
	entrySize := hook.EntrySize(o.PtrSize)
	if o.HasEntrySize() {
		size, err := sys.ReadPointer(mem, sharedInfo+o.SharedInfoEntrySize, o.PtrSize)
		if err != nil {
			return nil, fmt.Errorf("couldn't read handle entry size: %v", err)
		}
		if size < entrySize {
			return nil, fmt.Errorf("handle entry size %d is below %d", size, entrySize)
		}
		entrySize = size
	}
	return &handleTable{
		mem:       mem,
		ptrSize:   o.PtrSize,
		count:     psi + o.ServerInfoHandleCount,
		entries:   entries,
		entrySize: entrySize,
	}, nil
}

func (t *handleTable) Entries(dst []hook.Entry) ([]hook.Entry, error) {
	n, err := sys.ReadUint32(t.mem, t.count)
	if err != nil {
		return dst, fmt.Errorf("couldn't read handle count: %v", err)
	}
	if n > hook.MaxObjects {
		n = hook.MaxObjects
	}
	size := int(uintptr(n) * t.entrySize)
	if cap(t.buf) < size {
		t.buf = make([]byte, size)
	}
	b := t.buf[:size]
	if err := t.mem.ReadMemory(t.entries, b); err != nil {
		return dst, fmt.Errorf("couldn't read %d handle entries: %v", n, err)
	}
	for i := uint32(0); i < n; i++ {
		e := hook.DecodeEntry(b[uintptr(i)*t.entrySize:], t.ptrSize)
		e.Index = i
		dst = append(dst, e)
	}
	return dst, nil
}
