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

package console

import (
	"fmt"
	"time"

	"github.com/rabbitstack/hookmon/pkg/diff"
	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/util/filetime"
	"github.com/rabbitstack/hookmon/pkg/util/hostname"
)

// unknown designates the thread that couldn't be resolved
const unknown = "<unknown>"

// notice is the view of the diff event consumed by templates and the JSON encoder.
type notice struct {
	Kind      string    `json:"kind"`
	Host      string    `json:"host"`
	Desktop   string    `json:"desktop"`
	Timestamp time.Time `json:"timestamp"`
	Hook      *hookView `json:"hook"`
	Old       *hookView `json:"old,omitempty"`
	Changes   []string  `json:"changes,omitempty"`
}

type threadView struct {
	Name string `json:"name"`
	PID  uint32 `json:"pid"`
	TID  uint32 `json:"tid"`
	// Info is the kernel address of the thread information.
	Info string `json:"info"`
	// Started is the creation time of the process.
	Started string `json:"started,omitempty"`
	// Resolved is cleared when no GUI thread maps to the kernel address.
	Resolved bool `json:"resolved"`
}

func (t *threadView) String() string {
	if t == nil {
		return unknown
	}
	if !t.Resolved {
		return fmt.Sprintf("%s (%s)", unknown, t.Info)
	}
	return fmt.Sprintf("%s (%d:%d)", t.Name, t.PID, t.TID)
}

type hookView struct {
	ID         string      `json:"id"`
	Handle     string      `json:"handle"`
	Address    string      `json:"address"`
	Index      uint32      `json:"index"`
	Uniq       uint16      `json:"uniq"`
	LockCount  uint32      `json:"lock_count"`
	Flags      string      `json:"flags"`
	Global     bool        `json:"global"`
	FuncOffset string      `json:"func_offset"`
	ModuleAtom int32       `json:"module_atom"`
	Next       string      `json:"next"`
	Owner      *threadView `json:"owner"`
	Origin     *threadView `json:"origin"`
	Target     *threadView `json:"target"`
}

func hex(v uintptr) string { return fmt.Sprintf("0x%x", v) }

func newThreadView(t *gui.Thread, addr uintptr) *threadView {
	if t == nil {
		if addr == 0 {
			return nil
		}
		return &threadView{Info: hex(addr)}
	}
	v := &threadView{Name: t.Name, PID: t.PID, TID: t.TID, Info: hex(addr), Resolved: true}
	if t.Process != nil && t.Process.CreateTime != 0 {
		v.Started = filetime.ToTime(t.Process.CreateTime).Format(time.RFC3339)
	}
	return v
}

func newHookView(r *hook.Record) *hookView {
	if r == nil {
		return nil
	}
	return &hookView{
		ID:         r.Object.ID.String(),
		Handle:     hex(r.Object.Handle),
		Address:    hex(r.Entry.Head),
		Index:      r.Entry.Index,
		Uniq:       r.Entry.Uniq,
		LockCount:  r.Object.LockCount,
		Flags:      r.Object.Flags.String(),
		Global:     r.IsGlobal(),
		FuncOffset: hex(r.Object.FuncOffset),
		ModuleAtom: r.Object.ModuleAtom,
		Next:       hex(r.Object.Next),
		Owner:      newThreadView(r.Owner, r.Entry.Owner),
		Origin:     newThreadView(r.Origin, r.Object.Origin),
		Target:     newThreadView(r.Target, r.Object.Target),
	}
}

func newNotice(e *diff.Event) *notice {
	n := &notice{
		Kind:      e.Kind.String(),
		Host:      hostname.Get(),
		Desktop:   e.Desktop,
		Timestamp: e.Time,
		Hook:      newHookView(e.Record()),
	}
	if e.Kind != diff.Modified {
		return n
	}
	n.Old = newHookView(e.Old)
	for _, ch := range e.Changes.List() {
		n.Changes = append(n.Changes, describe(ch, n.Old, n.Hook))
	}
	return n
}

// describe renders the change of the field between the old and the new hook view.
func describe(ch diff.Change, o, n *hookView) string {
	var from, to interface{}
	switch ch {
	case diff.OwnerChanged:
		from, to = o.Owner, n.Owner
	case diff.OriginChanged:
		from, to = o.Origin, n.Origin
	case diff.TargetChanged:
		from, to = o.Target, n.Target
	case diff.HandleChanged:
		from, to = o.Handle, n.Handle
	case diff.LockCountChanged:
		from, to = o.LockCount, n.LockCount
	case diff.NextChanged:
		from, to = o.Next, n.Next
	case diff.IDChanged:
		from, to = o.ID, n.ID
	case diff.FuncOffsetChanged:
		from, to = o.FuncOffset, n.FuncOffset
	case diff.FlagsChanged:
		from, to = o.Flags, n.Flags
	case diff.ModuleAtomChanged:
		from, to = o.ModuleAtom, n.ModuleAtom
	default:
		return ch.String()
	}
	return fmt.Sprintf("%s: %v -> %v", ch, from, to)
}
