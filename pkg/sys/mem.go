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

package sys

import (
	"encoding/binary"
	"errors"
	"unsafe"
)

// PtrSize is the size of the native pointer.
const PtrSize = unsafe.Sizeof(uintptr(0))

// ErrPartialRead is returned when the memory area was read only partially.
var ErrPartialRead = errors.New("partial memory read")

// MemReader reads from an address space that may or may not be the address
// space of the caller. Addresses are never dereferenced directly, since the
// memory behind them is owned by the kernel or another process and can go away
// at any time.
type MemReader interface {
	// ReadMemory fills the buffer with the memory content starting at the given address.
	ReadMemory(addr uintptr, b []byte) error
}

// ReadPointer reads a pointer of the specified size at the given address.
func ReadPointer(r MemReader, addr, ptrSize uintptr) (uintptr, error) {
	b := make([]byte, ptrSize)
	if err := r.ReadMemory(addr, b); err != nil {
		return 0, err
	}
	return DecodePointer(b, ptrSize), nil
}

// ReadUint32 reads a 32-bit unsigned integer at the given address.
func ReadUint32(r MemReader, addr uintptr) (uint32, error) {
	var b [4]byte
	if err := r.ReadMemory(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// DecodePointer decodes the little-endian pointer from the byte slice.
func DecodePointer(b []byte, ptrSize uintptr) uintptr {
	if ptrSize == 8 {
		return uintptr(binary.LittleEndian.Uint64(b))
	}
	return uintptr(binary.LittleEndian.Uint32(b))
}

// EncodePointer is the inverse of DecodePointer.
func EncodePointer(b []byte, v, ptrSize uintptr) {
	if ptrSize == 8 {
		binary.LittleEndian.PutUint64(b, uint64(v))
		return
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
}
