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

// Package offsets resolves the byte offsets of the undocumented user-mode
// structures (TEB, CLIENTINFO, DESKTOPINFO, SHAREDINFO, SERVERINFO) that are
// consulted to reach the desktop heaps and the USER handle table. The offsets
// are fixed for a given OS family and architecture, so the lookup is done once
// at startup and the rest of the code never embeds raw numbers.
package offsets

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Offsets stores the structure offsets for a single OS family/architecture.
type Offsets struct {
	// PtrSize is the size of the native pointer.
	PtrSize uintptr
	// TebWin32ThreadInfo is the offset of the Win32ThreadInfo pointer within the TEB.
	TebWin32ThreadInfo uintptr
	// TebWin32ClientInfo is the offset of the inline CLIENTINFO structure within the TEB.
	TebWin32ClientInfo uintptr
	// ClientInfoDeskInfo is the offset of the pDeskInfo pointer within CLIENTINFO.
	ClientInfoDeskInfo uintptr
	// ClientInfoDelta is the offset of the ulClientDelta field within CLIENTINFO.
	ClientInfoDelta uintptr
	// DeskInfoBase is the offset of the pvDesktopBase field within DESKTOPINFO.
	DeskInfoBase uintptr
	// DeskInfoLimit is the offset of the pvDesktopLimit field within DESKTOPINFO.
	DeskInfoLimit uintptr
	// SharedInfoServerInfo is the offset of the psi pointer within SHAREDINFO.
	SharedInfoServerInfo uintptr
	// SharedInfoHandleTable is the offset of the aheList pointer within SHAREDINFO.
	SharedInfoHandleTable uintptr
	// SharedInfoEntrySize is the offset of the HeEntrySize field within SHAREDINFO.
	// Zero if the field doesn't exist on this OS family.
	SharedInfoEntrySize uintptr
	// ServerInfoHandleCount is the offset of the cHandleEntries field within SERVERINFO.
	ServerInfoHandleCount uintptr
}

// HasEntrySize indicates if the SHAREDINFO structure reports the handle entry size.
func (o Offsets) HasEntrySize() bool { return o.SharedInfoEntrySize != 0 }

type entry struct {
	constraint string
	arch       string
	offsets    Offsets
}

var x86 = Offsets{
	PtrSize:               4,
	TebWin32ThreadInfo:    0x40,
	TebWin32ClientInfo:    0x6cc,
	ClientInfoDeskInfo:    0x18,
	ClientInfoDelta:       0x1c,
	DeskInfoBase:          0x0,
	DeskInfoLimit:         0x4,
	SharedInfoServerInfo:  0x0,
	SharedInfoHandleTable: 0x4,
	ServerInfoHandleCount: 0x4,
}

var x64 = Offsets{
	PtrSize:               8,
	TebWin32ThreadInfo:    0x78,
	TebWin32ClientInfo:    0x800,
	ClientInfoDeskInfo:    0x20,
	ClientInfoDelta:       0x28,
	DeskInfoBase:          0x0,
	DeskInfoLimit:         0x8,
	SharedInfoServerInfo:  0x0,
	SharedInfoHandleTable: 0x8,
	ServerInfoHandleCount: 0x8,
}

// the legacy NT 5.x CLIENTINFO lacks the dwCompatFlags2 field, which shifts
// the desktop info pointer and the client delta on 32-bit systems
var table = []entry{
	{"< 6.0", "386", with(x86, func(o *Offsets) { o.ClientInfoDeskInfo, o.ClientInfoDelta = 0x14, 0x18 })},
	{">= 6.0, < 6.1", "386", x86},
	{">= 6.1", "386", with(x86, func(o *Offsets) { o.SharedInfoEntrySize = 0x8 })},
	{"< 6.0", "amd64", x64},
	{">= 6.0, < 6.1", "amd64", x64},
	{">= 6.1", "amd64", with(x64, func(o *Offsets) { o.SharedInfoEntrySize = 0x10 })},
}

func with(o Offsets, fn func(*Offsets)) Offsets {
	fn(&o)
	return o
}

// ErrUnsupported is returned when there are no known offsets for the OS version/architecture.
type ErrUnsupported struct {
	Version string
	Arch    string
}

func (e ErrUnsupported) Error() string {
	return fmt.Sprintf("no structure offsets for Windows %s (%s)", e.Version, e.Arch)
}

// For returns the offsets for the given OS version and architecture. The
// architecture follows the GOARCH naming.
func For(v *version.Version, arch string) (*Offsets, error) {
	for _, e := range table {
		if e.arch != arch {
			continue
		}
		c, err := version.NewConstraint(e.constraint)
		if err != nil {
			return nil, err
		}
		if c.Check(v) {
			o := e.offsets
			return &o, nil
		}
	}
	return nil, ErrUnsupported{Version: v.String(), Arch: arch}
}

// ForRelease is like For, but takes the major and minor OS release numbers.
func ForRelease(major, minor uint32, arch string) (*Offsets, error) {
	v, err := version.NewVersion(fmt.Sprintf("%d.%d", major, minor))
	if err != nil {
		return nil, err
	}
	return For(v, arch)
}
