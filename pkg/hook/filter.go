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

	"github.com/bits-and-blooms/bitset"
	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/util/multierror"
	"github.com/rabbitstack/hookmon/pkg/util/wildcard"
)

// program matches threads by process name, process id or thread id
type program struct {
	name string
	id   uint32
	num  bool
}

func newProgram(s string) program {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		return program{id: uint32(n), num: true}
	}
	return program{name: s}
}

func (p program) match(t *gui.Thread) bool {
	if t == nil {
		return false
	}
	if !p.num {
		return wildcard.MatchFold(p.name, t.Name)
	}
	return t.PID == p.id || t.TID == p.id
}

// Filter decides whether hook records are reported. It is a pure function
// of the record and the filter configuration.
type Filter struct {
	c config.Filters

	includeIDs *bitset.BitSet
	excludeIDs *bitset.BitSet

	includePrograms []program
	excludePrograms []program
}

// NewFilter builds the filter from the configuration. It fails if any of
// the hook types can't be resolved.
func NewFilter(c config.Filters) (*Filter, error) {
	f := &Filter{c: c}
	var errs []error
	f.includeIDs, errs = parseIDs(c.Hooks.Include, errs)
	f.excludeIDs, errs = parseIDs(c.Hooks.Exclude, errs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid hook filter: %v", multierror.Wrap(errs...))
	}
	for _, s := range c.Programs.Include {
		f.includePrograms = append(f.includePrograms, newProgram(s))
	}
	for _, s := range c.Programs.Exclude {
		f.excludePrograms = append(f.excludePrograms, newProgram(s))
	}
	return f, nil
}

// bit positions are shifted by one to accommodate WH_MSGFILTER
func idBit(id ID) uint { return uint(id - MinID) }

func parseIDs(names []string, errs []error) (*bitset.BitSet, []error) {
	if len(names) == 0 {
		return nil, errs
	}
	ids := bitset.New(uint(MaxID-MinID) + 1)
	for _, name := range names {
		id, err := ParseID(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids.Set(idBit(id))
	}
	return ids, errs
}

// Config returns the filter configuration.
func (f *Filter) Config() config.Filters { return f.c }

// Accept determines whether the record is reported.
func (f *Filter) Accept(r *Record) bool { return !f.IsIgnored(r) }

// IsIgnored evaluates the rules in order and stops on the first exclusion.
func (f *Filter) IsIgnored(r *Record) bool {
	global := r.IsGlobal()

	if f.c.IgnoreInternal && !global &&
		r.Entry.Owner == r.Object.Origin && r.Object.Origin == r.Object.Target &&
		gui.SameIdentity(r.Owner, r.Origin) && gui.SameIdentity(r.Origin, r.Target) {
		return true
	}

	if f.c.IgnoreKnown && r.Owner != nil && r.Origin != nil &&
		(r.Target != nil || (global && r.Object.Target == 0)) {
		return true
	}

	if f.c.IgnoreTargeted && (r.Target != nil || r.Object.Target != 0) {
		return true
	}

	if len(f.includePrograms) > 0 && !matchPrograms(f.includePrograms, r) {
		return true
	}
	if len(f.excludePrograms) > 0 && matchPrograms(f.excludePrograms, r) {
		return true
	}

	id := r.Object.ID
	if f.includeIDs != nil && (!id.IsValid() || !f.includeIDs.Test(idBit(id))) {
		return true
	}
	if f.excludeIDs != nil && id.IsValid() && f.excludeIDs.Test(idBit(id)) {
		return true
	}

	return false
}

func matchPrograms(programs []program, r *Record) bool {
	for _, p := range programs {
		if p.match(r.Owner) || p.match(r.Origin) || p.match(r.Target) {
			return true
		}
	}
	return false
}
