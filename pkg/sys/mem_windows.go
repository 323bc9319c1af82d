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
	"golang.org/x/sys/windows"
)

// ProcessReader reads the virtual memory of a process through ReadProcessMemory.
// Reading the address space of the current process this way is safer than
// dereferencing, because unmapped or freed pages produce an error instead of
// an access violation.
type ProcessReader struct {
	proc windows.Handle
	own  bool
}

// OpenProcessReader opens the process with the access rights required to read its memory.
func OpenProcessReader(pid uint32) (*ProcessReader, error) {
	proc, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return nil, err
	}
	return &ProcessReader{proc: proc, own: true}, nil
}

// CurrentProcessReader returns the reader for the address space of the calling process.
func CurrentProcessReader() *ProcessReader {
	return &ProcessReader{proc: windows.CurrentProcess()}
}

// ReadMemory reads the memory area. The entire area must be accessible.
func (r *ProcessReader) ReadMemory(addr uintptr, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	var n uintptr
	if err := windows.ReadProcessMemory(r.proc, addr, &b[0], uintptr(len(b)), &n); err != nil {
		return err
	}
	if n != uintptr(len(b)) {
		return ErrPartialRead
	}
	return nil
}

// Close closes the process handle.
func (r *ProcessReader) Close() error {
	if !r.own || r.proc == 0 {
		return nil
	}
	err := windows.CloseHandle(r.proc)
	r.proc = 0
	return err
}
