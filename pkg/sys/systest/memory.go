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

// Package systest provides in-memory fakes of the system address spaces
// read by the hook engine.
package systest

import (
	"fmt"
	"sort"
)

// Memory is the in-memory address space. It consists of non-overlapping
// regions mapped at arbitrary addresses.
type Memory struct {
	regions []region
	// Reads counts the number of successful reads.
	Reads int
}

type region struct {
	addr uintptr
	data []byte
}

// NewMemory creates an empty address space.
func NewMemory() *Memory { return &Memory{} }

// Map places the byte slice at the given address. The slice is not copied,
// so the caller can mutate the region content between reads.
func (m *Memory) Map(addr uintptr, data []byte) {
	m.regions = append(m.regions, region{addr: addr, data: data})
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].addr < m.regions[j].addr })
}

// Unmap removes the region starting at the given address.
func (m *Memory) Unmap(addr uintptr) {
	for i, r := range m.regions {
		if r.addr == addr {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return
		}
	}
}

// ReadMemory copies the memory at given address into the buffer.
func (m *Memory) ReadMemory(addr uintptr, b []byte) error {
	for _, r := range m.regions {
		if addr >= r.addr && addr+uintptr(len(b)) <= r.addr+uintptr(len(r.data)) {
			off := addr - r.addr
			copy(b, r.data[off:off+uintptr(len(b))])
			m.Reads++
			return nil
		}
	}
	return fmt.Errorf("access violation reading %d bytes at 0x%x", len(b), addr)
}
