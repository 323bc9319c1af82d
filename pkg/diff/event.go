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

package diff

import (
	"fmt"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/rabbitstack/hookmon/pkg/hook"
)

// Kind classifies the outcome of comparing a hook across two snapshots.
type Kind uint8

const (
	// Found designates a hook seen in the first snapshot.
	Found Kind = iota
	// Added designates a hook present only in the current snapshot.
	Added
	// Removed designates a hook present only in the previous snapshot.
	Removed
	// Modified designates a hook present in both snapshots with different fields.
	Modified
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "FOUND"
	case Added:
		return "ADDED"
	case Removed:
		return "REMOVED"
	case Modified:
		return "MODIFIED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Change identifies the tracked hook field that differs between snapshots.
type Change uint

const (
	OwnerChanged Change = iota
	OriginChanged
	TargetChanged
	HandleChanged
	LockCountChanged
	NextChanged
	Rpdesk1Changed
	Rpdesk2Changed
	IDChanged
	FuncOffsetChanged
	FlagsChanged
	ModuleAtomChanged
	maxChange
)

var changeNames = [...]string{
	OwnerChanged:      "owner",
	OriginChanged:     "origin",
	TargetChanged:     "target",
	HandleChanged:     "handle",
	LockCountChanged:  "lock count",
	NextChanged:       "next",
	Rpdesk1Changed:    "rpdesk1",
	Rpdesk2Changed:    "rpdesk2",
	IDChanged:         "id",
	FuncOffsetChanged: "function offset",
	FlagsChanged:      "flags",
	ModuleAtomChanged: "module atom",
}

func (c Change) String() string {
	if c < maxChange {
		return changeNames[c]
	}
	return fmt.Sprintf("change(%d)", uint(c))
}

// Changes is the set of modified hook fields.
type Changes struct {
	bits *bitset.BitSet
}

func newChanges() Changes { return Changes{bits: bitset.New(uint(maxChange))} }

func (c Changes) set(ch Change) { c.bits.Set(uint(ch)) }

// Has determines whether the field is among changes.
func (c Changes) Has(ch Change) bool { return c.bits != nil && c.bits.Test(uint(ch)) }

// Len returns the number of changed fields.
func (c Changes) Len() int {
	if c.bits == nil {
		return 0
	}
	return int(c.bits.Count())
}

// List returns changed fields in their declaration order.
func (c Changes) List() []Change {
	if c.bits == nil {
		return nil
	}
	changes := make([]Change, 0, c.bits.Count())
	for i, ok := c.bits.NextSet(0); ok; i, ok = c.bits.NextSet(i + 1) {
		changes = append(changes, Change(i))
	}
	return changes
}

func (c Changes) String() string {
	list := c.List()
	names := make([]string, len(list))
	for i, ch := range list {
		names[i] = ch.String()
	}
	return strings.Join(names, ", ")
}

// Event is the reportable difference of a single hook.
type Event struct {
	Kind Kind
	// Desktop is the name of the desktop owning the hook.
	Desktop string
	// Time is the completion time of the snapshot the event was derived from.
	Time time.Time
	// Old is the record in the previous snapshot. Nil for found and added hooks.
	Old *hook.Record
	// New is the record in the current snapshot. Nil for removed hooks.
	New *hook.Record
	// Changes is populated for modified hooks.
	Changes Changes
}

// Record returns the most recent record of the hook.
func (e *Event) Record() *hook.Record {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// Notifier receives reportable hook events. The event and the records it
// references are only valid for the duration of the call.
type Notifier interface {
	Notify(e *Event) error
}

// NotifierFunc adapts an ordinary function to the Notifier interface.
type NotifierFunc func(e *Event) error

func (f NotifierFunc) Notify(e *Event) error { return f(e) }
