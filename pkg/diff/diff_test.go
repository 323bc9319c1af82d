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
	"errors"
	"testing"
	"time"

	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/desktop"
	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/ps"
	"github.com/rabbitstack/hookmon/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	defaultDesktop    = desktop.NewHandle("Default", desktop.Heap{Base: 0xaa000000, Limit: 0xaa100000, Delta: 0xa0000000})
	disconnectDesktop = desktop.NewHandle("Disconnect", desktop.Heap{Base: 0xab000000, Limit: 0xab010000, Delta: 0xa0000000})

	explorer = &gui.Thread{Win32ThreadInfo: 0xbb001000, TID: 204, PID: 200, Name: "explorer.exe", Unique: true}
	notepad  = &gui.Thread{Win32ThreadInfo: 0xbb002000, TID: 304, PID: 300, Name: "notepad.exe", Unique: true}
)

// collector accumulates notified events. Records are copied since
// they are only valid during the call.
type collector struct {
	events []Event
	olds   []hook.Record
	news   []hook.Record
	err    error
}

func (c *collector) Notify(e *Event) error {
	ev := *e
	c.events = append(c.events, ev)
	if e.Old != nil {
		c.olds = append(c.olds, *e.Old)
	}
	if e.New != nil {
		c.news = append(c.news, *e.New)
	}
	return c.err
}

func (c *collector) kinds() []Kind {
	kinds := make([]Kind, len(c.events))
	for i, e := range c.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func mouseHook() hook.Record {
	return hook.Record{
		Entry:  hook.Entry{Head: 0xaa000100, Owner: explorer.Win32ThreadInfo, Type: hook.TypeHook, Uniq: 1},
		Object: hook.Object{Handle: 0x10001, LockCount: 2, Origin: explorer.Win32ThreadInfo, Target: notepad.Win32ThreadInfo, ID: hook.Mouse, ModuleAtom: -1},
		Owner:  explorer,
		Origin: explorer,
		Target: notepad,
	}
}

func hookAt(head, handle uintptr, id hook.ID) hook.Record {
	return hook.Record{
		Entry:  hook.Entry{Head: head, Owner: explorer.Win32ThreadInfo, Type: hook.TypeHook},
		Object: hook.Object{Handle: handle, Origin: explorer.Win32ThreadInfo, ID: id, Flags: hook.Global},
		Owner:  explorer,
		Origin: explorer,
	}
}

func store(t *testing.T, desktops ...[]hook.Record) *snapshot.Store {
	handles := []*desktop.Handle{defaultDesktop, disconnectDesktop}[:len(desktops)]
	s := snapshot.NewWithCapacity(handles, ps.Extended, 16)
	for i, recs := range desktops {
		require.True(t, len(recs) <= len(s.Desktops[i].Hooks))
		copy(s.Desktops[i].Hooks, recs)
		s.Desktops[i].Count = len(recs)
		hook.Sort(s.Desktops[i].Records())
	}
	s.Init = time.Now()
	return s
}

func TestCompareIdenticalHook(t *testing.T) {
	d := NewDiffer(config.Filters{})

	prev := store(t, []hook.Record{mouseHook()})
	cur := store(t, []hook.Record{mouseHook()})

	c := &collector{}
	require.NoError(t, d.Compare(prev, cur, c))
	assert.Empty(t, c.events)

	// first snapshot reports every hook as found
	require.NoError(t, d.Compare(nil, cur, c))
	require.Len(t, c.events, 1)
	assert.Equal(t, Found, c.events[0].Kind)
	assert.Equal(t, "Default", c.events[0].Desktop)
	assert.Nil(t, c.events[0].Old)
	assert.Equal(t, uintptr(0x10001), c.news[0].Object.Handle)

	// an invalid previous snapshot is treated as missing
	c = &collector{}
	prev.Reset()
	require.NoError(t, d.Compare(prev, cur, c))
	assert.Equal(t, []Kind{Found}, c.kinds())
}

func TestCompareRemovedHook(t *testing.T) {
	prev := store(t, []hook.Record{mouseHook()})
	cur := store(t, []hook.Record{})

	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(prev, cur, c))
	require.Len(t, c.events, 1)
	assert.Equal(t, Removed, c.events[0].Kind)
	assert.Nil(t, c.events[0].New)
	assert.Equal(t, uintptr(0x10001), c.olds[0].Object.Handle)
	assert.Equal(t, uintptr(0xaa000100), c.olds[0].Entry.Head)
}

func TestCompareLockCountChange(t *testing.T) {
	changed := mouseHook()
	changed.Object.LockCount = 5

	prev := store(t, []hook.Record{mouseHook()})
	cur := store(t, []hook.Record{changed})

	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(prev, cur, c))
	require.Len(t, c.events, 1)
	e := c.events[0]
	assert.Equal(t, Modified, e.Kind)
	assert.Equal(t, []Change{LockCountChanged}, e.Changes.List())
	assert.Equal(t, "lock count", e.Changes.String())
	assert.Equal(t, uint32(2), c.olds[0].Object.LockCount)
	assert.Equal(t, uint32(5), c.news[0].Object.LockCount)

	c = &collector{}
	require.NoError(t, NewDiffer(config.Filters{IgnoreLockCountChanges: true}).Compare(prev, cur, c))
	assert.Empty(t, c.events)
}

func TestCompareModifiedFields(t *testing.T) {
	var tests = []struct {
		name    string
		mutate  func(r *hook.Record)
		changes []Change
	}{
		{"owner identity", func(r *hook.Record) { r.Owner = nil }, []Change{OwnerChanged}},
		{"origin pointer", func(r *hook.Record) { r.Object.Origin = 0xbb003000 }, []Change{OriginChanged}},
		{"target identity", func(r *hook.Record) {
			target := *notepad
			target.TID = 308
			r.Target = &target
		}, []Change{TargetChanged}},
		{"next", func(r *hook.Record) { r.Object.Next = 0xaa000900 }, []Change{NextChanged}},
		{"rpdesk1", func(r *hook.Record) { r.Object.Rpdesk1 = 0xcc000000 }, []Change{Rpdesk1Changed}},
		{"rpdesk2", func(r *hook.Record) { r.Object.Rpdesk2 = 0xcc000000 }, []Change{Rpdesk2Changed}},
		{"id and flags", func(r *hook.Record) {
			r.Object.ID = hook.MouseLL
			r.Object.Flags = hook.Global
		}, []Change{IDChanged, FlagsChanged}},
		{"function offset", func(r *hook.Record) { r.Object.FuncOffset = 0x1420 }, []Change{FuncOffsetChanged}},
		{"module atom", func(r *hook.Record) { r.Object.ModuleAtom = 12 }, []Change{ModuleAtomChanged}},
		{"generation counter", func(r *hook.Record) { r.Entry.Uniq = 7 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := mouseHook()
			tt.mutate(&changed)

			c := &collector{}
			require.NoError(t, NewDiffer(config.Filters{}).Compare(store(t, []hook.Record{mouseHook()}), store(t, []hook.Record{changed}), c))
			if tt.changes == nil {
				assert.Empty(t, c.events)
				return
			}
			require.Len(t, c.events, 1)
			assert.Equal(t, Modified, c.events[0].Kind)
			assert.Equal(t, tt.changes, c.events[0].Changes.List())
		})
	}
}

func TestCompareHandleChangeIsNewHook(t *testing.T) {
	reused := mouseHook()
	reused.Object.Handle = 0x20001

	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(store(t, []hook.Record{mouseHook()}), store(t, []hook.Record{reused}), c))
	assert.Equal(t, []Kind{Removed, Added}, c.kinds())
}

func TestCompareMerge(t *testing.T) {
	prev := store(t,
		[]hook.Record{
			hookAt(0xaa000100, 0x10001, hook.Keyboard),
			hookAt(0xaa000200, 0x10002, hook.Mouse),
			hookAt(0xaa000400, 0x10004, hook.CBT),
		},
		[]hook.Record{
			hookAt(0xab000100, 0x30001, hook.Shell),
		},
	)
	cur := store(t,
		[]hook.Record{
			hookAt(0xaa000200, 0x10002, hook.Mouse),
			hookAt(0xaa000300, 0x10003, hook.GetMessage),
			hookAt(0xaa000500, 0x10005, hook.CallWndProc),
			hookAt(0xaa000600, 0x10006, hook.KeyboardLL),
		},
		[]hook.Record{
			hookAt(0xab000100, 0x30001, hook.Shell),
		},
	)

	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(prev, cur, c))
	assert.Equal(t, []Kind{Removed, Added, Removed, Added, Added}, c.kinds())
	assert.Equal(t, []hook.ID{hook.Keyboard, hook.CBT}, []hook.ID{c.olds[0].Object.ID, c.olds[1].Object.ID})
	assert.Equal(t, []hook.ID{hook.GetMessage, hook.CallWndProc, hook.KeyboardLL},
		[]hook.ID{c.news[0].Object.ID, c.news[1].Object.ID, c.news[2].Object.ID})
	for _, e := range c.events {
		assert.Equal(t, "Default", e.Desktop)
	}
}

func TestCompareDesktopOrder(t *testing.T) {
	prev := store(t, nil, nil)
	cur := store(t,
		[]hook.Record{hookAt(0xaa000100, 0x10001, hook.Keyboard)},
		[]hook.Record{hookAt(0xab000100, 0x30001, hook.Shell)},
	)
	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(prev, cur, c))
	require.Len(t, c.events, 2)
	assert.Equal(t, "Default", c.events[0].Desktop)
	assert.Equal(t, "Disconnect", c.events[1].Desktop)
}

func TestCompareIgnored(t *testing.T) {
	ignored := func(r hook.Record) hook.Record {
		r.Ignore = true
		return r
	}

	kbd := hookAt(0xaa000100, 0x10001, hook.Keyboard)
	mouse := hookAt(0xaa000200, 0x10002, hook.Mouse)
	changed := mouse
	changed.Object.Next = kbd.Entry.Head

	// ignored hooks are neither added nor removed
	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(store(t, []hook.Record{ignored(kbd)}), store(t, []hook.Record{ignored(mouse)}), c))
	assert.Empty(t, c.events)

	require.NoError(t, NewDiffer(config.Filters{}).Compare(nil, store(t, []hook.Record{ignored(kbd), mouse}), c))
	assert.Equal(t, []Kind{Found}, c.kinds())

	// modifications are reported unless both sides are ignored
	c = &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(store(t, []hook.Record{ignored(mouse)}), store(t, []hook.Record{changed}), c))
	assert.Equal(t, []Kind{Modified}, c.kinds())

	c = &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(store(t, []hook.Record{ignored(mouse)}), store(t, []hook.Record{ignored(changed)}), c))
	assert.Empty(t, c.events)
}

func TestCompareFilteredByHookID(t *testing.T) {
	filter, err := hook.NewFilter(config.Filters{Hooks: config.ListFilter{Include: []string{"WH_MOUSE"}}})
	require.NoError(t, err)

	recs := []hook.Record{
		hookAt(0xaa000100, 0x10001, hook.Keyboard),
		hookAt(0xaa000200, 0x10002, hook.Mouse),
	}
	for i := range recs {
		recs[i].Ignore = filter.IsIgnored(&recs[i])
	}

	c := &collector{}
	require.NoError(t, NewDiffer(config.Filters{}).Compare(store(t, nil), store(t, recs), c))
	require.Equal(t, []Kind{Added}, c.kinds())
	assert.Equal(t, hook.Mouse, c.news[0].Object.ID)
}

func TestCompareDesktopMismatch(t *testing.T) {
	err := NewDiffer(config.Filters{}).Compare(store(t, nil), store(t, nil, nil), &collector{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerrors.ErrDesktopMismatch))
}

func TestCompareNotifierErrors(t *testing.T) {
	c := &collector{err: errors.New("broken pipe")}
	err := NewDiffer(config.Filters{}).Compare(nil, store(t, []hook.Record{
		hookAt(0xaa000100, 0x10001, hook.Keyboard),
		hookAt(0xaa000200, 0x10002, hook.Mouse),
	}), c)
	require.Error(t, err)
	// every event is still delivered
	assert.Len(t, c.events, 2)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "FOUND", Found.String())
	assert.Equal(t, "ADDED", Added.String())
	assert.Equal(t, "REMOVED", Removed.String())
	assert.Equal(t, "MODIFIED", Modified.String())
	assert.Equal(t, "UNKNOWN(9)", Kind(9).String())
}

func TestNotifierFunc(t *testing.T) {
	var calls int
	n := NotifierFunc(func(e *Event) error {
		calls++
		assert.Equal(t, e.New, e.Record())
		return nil
	})
	require.NoError(t, NewDiffer(config.Filters{}).Compare(nil, store(t, []hook.Record{mouseHook()}), n))
	assert.Equal(t, 1, calls)
}
