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

package snapshot

import (
	"errors"
	"expvar"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/sys"
	log "github.com/sirupsen/logrus"
)

var (
	collectPasses     = expvar.NewInt("snapshot.collect.passes")
	collectRetries    = expvar.NewInt("snapshot.collect.retries")
	hooksTruncated    = expvar.NewInt("snapshot.hooks.truncated")
	hooksOutsideHeaps = expvar.NewInt("snapshot.hooks.outside.heaps")
)

// Collector populates the desktop items of the snapshot with the hook
// objects referenced by the USER handle table.
type Collector struct {
	table   HandleTable
	mem     sys.MemReader
	ptrSize uintptr
	filter  *hook.Filter
	retry   RetryPolicy

	entries []hook.Entry
	buf     []byte
}

// NewCollector creates the hook collector. The memory reader must be
// able to read the user mappings of the attached desktop heaps.
func NewCollector(table HandleTable, mem sys.MemReader, ptrSize uintptr, filter *hook.Filter, retry RetryPolicy) *Collector {
	return &Collector{
		table:   table,
		mem:     mem,
		ptrSize: ptrSize,
		filter:  filter,
		retry:   retry,
		entries: make([]hook.Entry, 0, hook.MaxObjects),
		buf:     make([]byte, hook.ObjectSize(ptrSize)),
	}
}

// Collect gathers the hooks of all attached desktops. The handle table
// and the heaps change while they are being read, so the whole pass is
// repeated if the resulting hook arrays are inconsistent.
func (c *Collector) Collect(s *Store) error {
	return c.retry.Do(func() error {
		collectPasses.Add(1)
		if err := c.collect(s); err != nil {
			return err
		}
		for _, d := range s.Desktops {
			recs := d.Records()
			hook.Sort(recs)
			if err := validate(recs); err != nil {
				err = fmt.Errorf("%s desktop: %w", d.Name(), err)
				if errors.Is(err, kerrors.ErrNullHookAddress) {
					return backoff.Permanent(err)
				}
				return err
			}
		}
		return nil
	}, func(err error) {
		collectRetries.Add(1)
		log.Debugf("retrying hook collection: %v", err)
	})
}

func (c *Collector) collect(s *Store) error {
	s.resetHooks()

	var err error
	c.entries, err = c.table.Entries(c.entries[:0])
	if err != nil {
		return err
	}

	size := hook.ObjectSize(c.ptrSize)
	for _, e := range c.entries {
		if e.Type != hook.TypeHook {
			continue
		}
		d := s.Find(e.Head, size)
		if d == nil {
			// the hook lives in the heap of the desktop that isn't attached
			hooksOutsideHeaps.Add(1)
			continue
		}
		if d.Count >= len(d.Hooks) {
			d.Truncated++
			continue
		}
		if err := c.mem.ReadMemory(d.Desktop.ToUser(e.Head), c.buf); err != nil {
			return fmt.Errorf("couldn't read hook object at 0x%x: %v", e.Head, err)
		}
		rec := &d.Hooks[d.Count]
		rec.Entry = e
		rec.Object = hook.DecodeObject(c.buf, c.ptrSize)
		rec.Owner = s.Index.Lookup(e.Owner)
		rec.Origin = s.Index.Lookup(rec.Object.Origin)
		rec.Target = s.Index.Lookup(rec.Object.Target)
		rec.Ignore = c.filter != nil && c.filter.IsIgnored(rec)
		d.Count++
	}

	for _, d := range s.Desktops {
		if d.Truncated > 0 {
			hooksTruncated.Add(int64(d.Truncated))
			log.Errorf("%s desktop exceeded the capacity of %d hooks. %d hooks are not tracked", d.Name(), len(d.Hooks), d.Truncated)
		}
	}
	return nil
}

// validate checks the sorted records for null and duplicate object addresses.
// Duplicates appear when the object is freed and its address reused while
// the table is being read, so they are worth retrying. A null address is not.
func validate(recs []hook.Record) error {
	for i := range recs {
		if recs[i].Entry.Head == 0 {
			return kerrors.ErrNullHookAddress
		}
		if i > 0 && recs[i].Entry.Head == recs[i-1].Entry.Head {
			return fmt.Errorf("%w at 0x%x (handles 0x%x and 0x%x)", kerrors.ErrDuplicateHook,
				recs[i].Entry.Head, recs[i-1].Object.Handle, recs[i].Object.Handle)
		}
	}
	return nil
}

// IsDuplicate determines if the error is caused by duplicate hook objects.
func IsDuplicate(err error) bool { return errors.Is(err, kerrors.ErrDuplicateHook) }
