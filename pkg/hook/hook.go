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

// Package hook models the hook objects found in the desktop heaps. Each hook
// is described by its entry in the USER handle table and a copy of the
// kernel HOOK structure, along with the GUI threads the hook is attributed to.
package hook

import (
	"encoding/binary"
	"sort"

	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/sys"
)

// MaxObjects is the maximum number of objects in the USER handle table.
const MaxObjects = 65535

// TypeHook is the handle table type of HOOK objects.
const TypeHook uint8 = 5

// Entry is the copy of the HANDLEENTRY structure.
type Entry struct {
	// Head is the kernel address of the object.
	Head uintptr
	// Owner is the kernel address of the owning thread information.
	Owner uintptr
	// Type is the object type.
	Type uint8
	// Flags are the handle flags.
	Flags uint8
	// Uniq is the generation counter of the handle slot.
	Uniq uint16
	// Index is the position of the entry in the handle table at capture time.
	Index uint32
}

// Object is the copy of the kernel HOOK structure.
type Object struct {
	// Handle is the hook handle value.
	Handle uintptr
	// LockCount is the object lock count.
	LockCount uint32
	// Origin is the kernel address of the thread information of the thread
	// that set the hook.
	Origin uintptr
	// Rpdesk1 is the desktop the object head refers to.
	Rpdesk1 uintptr
	// Self is the kernel address of the object itself.
	Self uintptr
	// Next is the kernel address of the next hook in the chain.
	Next uintptr
	// ID is the hook type.
	ID ID
	// FuncOffset is the offset of the hook procedure from the module base.
	FuncOffset uintptr
	// Flags are the HF_* hook flags.
	Flags Flags
	// ModuleAtom is the index of the atom naming the module with the hook
	// procedure, or -1 if the procedure isn't in a module.
	ModuleAtom int32
	// Target is the kernel address of the thread information of the hooked
	// thread. Zero for global hooks.
	Target uintptr
	// Rpdesk2 is the secondary desktop reference. Its meaning is unclear, so
	// it is only compared, never interpreted.
	Rpdesk2 uintptr
}

// Record is a hook observed in a snapshot.
type Record struct {
	Entry  Entry
	Object Object
	// Owner is the resolved thread owning the handle entry.
	Owner *gui.Thread
	// Origin is the resolved thread that set the hook.
	Origin *gui.Thread
	// Target is the resolved hooked thread.
	Target *gui.Thread
	// Ignore indicates the record is excluded by filters. It is set after
	// all other fields are populated.
	Ignore bool
}

// IsGlobal determines if the record is a global hook.
func (r *Record) IsGlobal() bool { return r.Object.Flags.IsGlobal() }

// EntrySize returns the size of the HANDLEENTRY structure for the pointer size.
func EntrySize(ptrSize uintptr) uintptr { return align(2*ptrSize+4, ptrSize) }

// ObjectSize returns the size of the HOOK structure for the pointer size.
func ObjectSize(ptrSize uintptr) uintptr { return 10*ptrSize + 8 }

func align(n, a uintptr) uintptr { return (n + a - 1) &^ (a - 1) }

// DecodeEntry decodes the handle table entry from the raw bytes.
func DecodeEntry(b []byte, ptrSize uintptr) Entry {
	p := ptrSize
	return Entry{
		Head:  sys.DecodePointer(b, p),
		Owner: sys.DecodePointer(b[p:], p),
		Type:  b[2*p],
		Flags: b[2*p+1],
		Uniq:  binary.LittleEndian.Uint16(b[2*p+2:]),
	}
}

// Encode is the inverse of DecodeEntry.
func (e Entry) Encode(ptrSize uintptr) []byte {
	p := ptrSize
	b := make([]byte, EntrySize(p))
	sys.EncodePointer(b, e.Head, p)
	sys.EncodePointer(b[p:], e.Owner, p)
	b[2*p] = e.Type
	b[2*p+1] = e.Flags
	binary.LittleEndian.PutUint16(b[2*p+2:], e.Uniq)
	return b
}

// DecodeObject decodes the HOOK structure from the raw bytes.
func DecodeObject(b []byte, ptrSize uintptr) Object {
	p := ptrSize
	return Object{
		Handle:     sys.DecodePointer(b, p),
		LockCount:  binary.LittleEndian.Uint32(b[p:]),
		Origin:     sys.DecodePointer(b[2*p:], p),
		Rpdesk1:    sys.DecodePointer(b[3*p:], p),
		Self:       sys.DecodePointer(b[4*p:], p),
		Next:       sys.DecodePointer(b[5*p:], p),
		ID:         ID(int32(binary.LittleEndian.Uint32(b[6*p:]))),
		FuncOffset: sys.DecodePointer(b[7*p:], p),
		Flags:      Flags(binary.LittleEndian.Uint32(b[8*p:])),
		ModuleAtom: int32(binary.LittleEndian.Uint32(b[8*p+4:])),
		Target:     sys.DecodePointer(b[8*p+8:], p),
		Rpdesk2:    sys.DecodePointer(b[9*p+8:], p),
	}
}

// Encode is the inverse of DecodeObject.
func (o Object) Encode(ptrSize uintptr) []byte {
	p := ptrSize
	b := make([]byte, ObjectSize(p))
	sys.EncodePointer(b, o.Handle, p)
	binary.LittleEndian.PutUint32(b[p:], o.LockCount)
	sys.EncodePointer(b[2*p:], o.Origin, p)
	sys.EncodePointer(b[3*p:], o.Rpdesk1, p)
	sys.EncodePointer(b[4*p:], o.Self, p)
	sys.EncodePointer(b[5*p:], o.Next, p)
	binary.LittleEndian.PutUint32(b[6*p:], uint32(o.ID))
	sys.EncodePointer(b[7*p:], o.FuncOffset, p)
	binary.LittleEndian.PutUint32(b[8*p:], uint32(o.Flags))
	binary.LittleEndian.PutUint32(b[8*p+4:], uint32(o.ModuleAtom))
	sys.EncodePointer(b[8*p+8:], o.Target, p)
	sys.EncodePointer(b[9*p+8:], o.Rpdesk2, p)
	return b
}

// Compare orders records by the kernel address of the object, then by the
// position in the handle table and finally by the hook handle. It returns
// -1, 0 or 1.
func Compare(a, b *Record) int {
	switch {
	case a.Entry.Head < b.Entry.Head:
		return -1
	case a.Entry.Head > b.Entry.Head:
		return 1
	case a.Entry.Index < b.Entry.Index:
		return -1
	case a.Entry.Index > b.Entry.Index:
		return 1
	case a.Object.Handle < b.Object.Handle:
		return -1
	case a.Object.Handle > b.Object.Handle:
		return 1
	}
	return 0
}

// Sort sorts the records in the Compare order.
func Sort(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return Compare(&recs[i], &recs[j]) < 0 })
}

// Search finds the position of the record with the same key in the sorted
// records. It returns -1 if there is no such record.
func Search(recs []Record, key *Record) int {
	i := sort.Search(len(recs), func(i int) bool { return Compare(&recs[i], key) >= 0 })
	if i < len(recs) && Compare(&recs[i], key) == 0 {
		return i
	}
	return -1
}
