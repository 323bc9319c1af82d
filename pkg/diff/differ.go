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
	"expvar"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/config"
	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/snapshot"
	"github.com/rabbitstack/hookmon/pkg/util/multierror"
)

var (
	eventsFound    = expvar.NewInt("diff.events.found")
	eventsAdded    = expvar.NewInt("diff.events.added")
	eventsRemoved  = expvar.NewInt("diff.events.removed")
	eventsModified = expvar.NewInt("diff.events.modified")
	notifyErrors   = expvar.NewInt("diff.notify.errors")
)

// Differ classifies hooks of consecutive snapshots.
type Differ struct {
	ignoreLockCount bool
}

// NewDiffer creates a differ honoring the filter flags that affect field comparison.
func NewDiffer(c config.Filters) *Differ {
	return &Differ{ignoreLockCount: c.IgnoreLockCountChanges}
}

// Compare reports the differences between the previous and the current
// snapshot. If the previous snapshot is missing or not valid, every hook of
// the current snapshot that isn't ignored is reported as found. Desktops are
// paired by their position. Hook arrays must be sorted by hook.Compare.
//
// Notifier failures don't stop the comparison. They are aggregated into
// the returned error.
func (d *Differ) Compare(prev, cur *snapshot.Store, n Notifier) error {
	var errs []error
	notify := func(e *Event) {
		if err := n.Notify(e); err != nil {
			notifyErrors.Add(1)
			errs = append(errs, err)
		}
	}

	if !prev.IsValid() {
		for _, item := range cur.Desktops {
			recs := item.Records()
			for i := range recs {
				if recs[i].Ignore {
					continue
				}
				eventsFound.Add(1)
				notify(&Event{Kind: Found, Desktop: item.Name(), Time: cur.Init, New: &recs[i]})
			}
		}
		return multierror.Wrap(errs...)
	}

	if len(prev.Desktops) != len(cur.Desktops) {
		return errors.Wrapf(kerrors.ErrDesktopMismatch, "%d desktops in previous and %d in current snapshot",
			len(prev.Desktops), len(cur.Desktops))
	}

	for i := range cur.Desktops {
		d.merge(cur.Desktops[i].Name(), cur.Init, prev.Desktops[i].Records(), cur.Desktops[i].Records(), notify)
	}

	return multierror.Wrap(errs...)
}

func (d *Differ) merge(desktop string, ts time.Time, old, cur []hook.Record, notify func(*Event)) {
	var i, j int
	for i < len(old) && j < len(cur) {
		o, c := &old[i], &cur[j]
		switch hook.Compare(o, c) {
		case 0:
			if !o.Ignore || !c.Ignore {
				if changes := d.Diff(o, c); changes.Len() > 0 {
					eventsModified.Add(1)
					notify(&Event{Kind: Modified, Desktop: desktop, Time: ts, Old: o, New: c, Changes: changes})
				}
			}
			i++
			j++
		case -1:
			removed(desktop, ts, o, notify)
			i++
		default:
			added(desktop, ts, c, notify)
			j++
		}
	}
	for ; i < len(old); i++ {
		removed(desktop, ts, &old[i], notify)
	}
	for ; j < len(cur); j++ {
		added(desktop, ts, &cur[j], notify)
	}
}

func removed(desktop string, ts time.Time, r *hook.Record, notify func(*Event)) {
	if r.Ignore {
		return
	}
	eventsRemoved.Add(1)
	notify(&Event{Kind: Removed, Desktop: desktop, Time: ts, Old: r})
}

func added(desktop string, ts time.Time, r *hook.Record, notify func(*Event)) {
	if r.Ignore {
		return
	}
	eventsAdded.Add(1)
	notify(&Event{Kind: Added, Desktop: desktop, Time: ts, New: r})
}

// Diff computes the set of tracked fields that differ between the records
// of the same hook.
func (d *Differ) Diff(o, c *hook.Record) Changes {
	changes := newChanges()
	if o.Entry.Owner != c.Entry.Owner || !gui.SameIdentity(o.Owner, c.Owner) {
		changes.set(OwnerChanged)
	}
	if o.Object.Origin != c.Object.Origin || !gui.SameIdentity(o.Origin, c.Origin) {
		changes.set(OriginChanged)
	}
	if o.Object.Target != c.Object.Target || !gui.SameIdentity(o.Target, c.Target) {
		changes.set(TargetChanged)
	}
	if o.Object.Handle != c.Object.Handle {
		changes.set(HandleChanged)
	}
	if !d.ignoreLockCount && o.Object.LockCount != c.Object.LockCount {
		changes.set(LockCountChanged)
	}
	if o.Object.Next != c.Object.Next {
		changes.set(NextChanged)
	}
	if o.Object.Rpdesk1 != c.Object.Rpdesk1 {
		changes.set(Rpdesk1Changed)
	}
	if o.Object.Rpdesk2 != c.Object.Rpdesk2 {
		changes.set(Rpdesk2Changed)
	}
	if o.Object.ID != c.Object.ID {
		changes.set(IDChanged)
	}
	if o.Object.FuncOffset != c.Object.FuncOffset {
		changes.set(FuncOffsetChanged)
	}
	if o.Object.Flags != c.Object.Flags {
		changes.set(FlagsChanged)
	}
	if o.Object.ModuleAtom != c.Object.ModuleAtom {
		changes.set(ModuleAtomChanged)
	}
	return changes
}
