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

package hook

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies the hook type as passed to SetWindowsHookEx.
type ID int32

const (
	MsgFilter      ID = -1
	JournalRecord  ID = 0
	JournalPlay    ID = 1
	Keyboard       ID = 2
	GetMessage     ID = 3
	CallWndProc    ID = 4
	CBT            ID = 5
	SysMsgFilter   ID = 6
	Mouse          ID = 7
	Hardware       ID = 8
	Debug          ID = 9
	Shell          ID = 10
	ForegroundIdle ID = 11
	CallWndProcRet ID = 12
	KeyboardLL     ID = 13
	MouseLL        ID = 14
)

const (
	// MinID is the lowest valid hook identifier.
	MinID = MsgFilter
	// MaxID is the highest valid hook identifier.
	MaxID = MouseLL
)

var idNames = map[ID]string{
	MsgFilter:      "WH_MSGFILTER",
	JournalRecord:  "WH_JOURNALRECORD",
	JournalPlay:    "WH_JOURNALPLAYBACK",
	Keyboard:       "WH_KEYBOARD",
	GetMessage:     "WH_GETMESSAGE",
	CallWndProc:    "WH_CALLWNDPROC",
	CBT:            "WH_CBT",
	SysMsgFilter:   "WH_SYSMSGFILTER",
	Mouse:          "WH_MOUSE",
	Hardware:       "WH_HARDWARE",
	Debug:          "WH_DEBUG",
	Shell:          "WH_SHELL",
	ForegroundIdle: "WH_FOREGROUNDIDLE",
	CallWndProcRet: "WH_CALLWNDPROCRET",
	KeyboardLL:     "WH_KEYBOARD_LL",
	MouseLL:        "WH_MOUSE_LL",
}

// String returns the hook type name, e.g. WH_MOUSE.
func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("WH_UNKNOWN(%d)", int32(id))
}

// IsValid determines if the identifier is in the range of known hook types.
func (id ID) IsValid() bool { return id >= MinID && id <= MaxID }

// ParseID resolves the hook identifier from the hook type name or number.
// Names are case insensitive and the WH_ prefix is optional, so WH_MOUSE,
// mouse and 7 all denote the same hook type.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 0, 32); err == nil {
		if !ID(n).IsValid() {
			return 0, fmt.Errorf("hook id %d out of range", n)
		}
		return ID(n), nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "WH_") {
		name = "WH_" + name
	}
	for id, n := range idNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown hook type %q", s)
}

// Flags represents the HF_* hook flags.
type Flags uint32

const (
	Global         Flags = 0x1
	Ansi           Flags = 0x2
	NeedHCSkip     Flags = 0x4
	Hung           Flags = 0x8
	HookFaulted    Flags = 0x10
	NoPlaybackWait Flags = 0x20
	Wx86KnownDLL   Flags = 0x40
	Destroyed      Flags = 0x80
	InCheckWHF     Flags = 0x100
	Freed          Flags = 0x200
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{Global, "HF_GLOBAL"},
	{Ansi, "HF_ANSI"},
	{NeedHCSkip, "HF_NEEDHC_SKIP"},
	{Hung, "HF_HUNG"},
	{HookFaulted, "HF_HOOKFAULTED"},
	{NoPlaybackWait, "HF_NOPLAYBACKDELAY"},
	{Wx86KnownDLL, "HF_WX86KNOWNDLL"},
	{Destroyed, "HF_DESTROYED"},
	{InCheckWHF, "HF_INCHECKWHF"},
	{Freed, "HF_FREED"},
}

// IsGlobal determines if the hook is a global hook.
func (f Flags) IsGlobal() bool { return f&Global != 0 }

// String returns the pipe-separated list of flag names. Unknown bits are
// rendered in hex.
func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
			rest &^= fn.f
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}
