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

package gui

import (
	"errors"
	"expvar"

	"github.com/golang/groupcache/lru"
	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/ps"
	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxThreads is the default upper bound of indexed GUI threads.
const DefaultMaxThreads = 65536

// deniedCacheSize bounds the number of remembered inaccessible processes
const deniedCacheSize = 4096

// ErrAccessDenied is returned by sources when the process can't be opened
// for memory reads due to insufficient rights.
var ErrAccessDenied = errors.New("access denied")

var (
	threadsIndexed   = expvar.NewInt("gui.threads.indexed")
	threadsTruncated = expvar.NewInt("gui.threads.truncated")
	procOpenErrors   = expvar.NewInt("gui.process.open.errors")
	tebReadErrors    = expvar.NewInt("gui.teb.read.errors")
	deniedSkips      = expvar.NewInt("gui.process.denied.skips")
)

// ProcessReader reads the address space of the opened process.
type ProcessReader interface {
	sys.MemReader
	Close() error
}

// Source provides access to processes and threads that are indexed.
type Source interface {
	// OpenProcess opens the process for memory reads.
	OpenProcess(pid uint32) (ProcessReader, error)
	// ThreadTeb returns the environment block address of the thread.
	ThreadTeb(tid uint32) (uintptr, error)
}

type deniedKey struct {
	pid        uint32
	createTime int64
}

// Builder creates GUI thread indices from process snapshots. The builder
// remembers processes that couldn't be opened, so they aren't retried on
// every snapshot.
type Builder struct {
	src     Source
	offsets *offsets.Offsets
	max     int
	denied  *lru.Cache
}

// NewBuilder constructs a new index builder. If max is not positive, the
// DefaultMaxThreads is used.
func NewBuilder(src Source, o *offsets.Offsets, max int) *Builder {
	if max <= 0 {
		max = DefaultMaxThreads
	}
	return &Builder{
		src:     src,
		offsets: o,
		max:     max,
		denied:  lru.New(deniedCacheSize),
	}
}

// Build walks the snapshot threads and reads the Win32ThreadInfo pointer of
// each of them. Threads without the pointer are not GUI threads and are
// skipped. When the maximum number of threads is reached, the walk stops
// and the index is capped. The returned index references the records of
// the snapshot.
func (b *Builder) Build(snap *ps.Snapshot) (*Index, error) {
	var (
		threads   = make([]Thread, 0, 1024)
		proc      ProcessReader
		pid       uint32
		truncated bool
	)
	closeProc := func() {
		if proc != nil {
			if err := proc.Close(); err != nil {
				log.Debugf("couldn't close process %d: %v", pid, err)
			}
			proc = nil
		}
	}
	defer closeProc()

	status := snap.Walk(func(p *ps.Process, t *ps.Thread, remaining int, flags ps.Flags) ps.Action {
		if t == nil {
			return ps.Continue
		}
		if proc == nil || pid != p.PID {
			closeProc()
			key := deniedKey{pid: p.PID, createTime: p.CreateTime}
			if _, ok := b.denied.Get(key); ok {
				deniedSkips.Add(1)
				return ps.SkipProcess
			}
			pid = p.PID
			var err error
			proc, err = b.src.OpenProcess(p.PID)
			if err != nil {
				procOpenErrors.Add(1)
				if errors.Is(err, ErrAccessDenied) {
					b.denied.Add(key, struct{}{})
				}
				if flags&ps.Debug != 0 {
					log.Debugf("couldn't open %s: %v", p, err)
				}
				proc = nil
				return ps.SkipProcess
			}
		}
		// release the process handle once its last thread is visited
		defer func() {
			if remaining == 0 {
				closeProc()
			}
		}()

		teb := t.TebBase
		if teb == 0 {
			var err error
			teb, err = b.src.ThreadTeb(t.TID)
			if err != nil || teb == 0 {
				tebReadErrors.Add(1)
				return ps.Continue
			}
		}
		ti, err := sys.ReadPointer(proc, teb+b.offsets.TebWin32ThreadInfo, b.offsets.PtrSize)
		if err != nil {
			tebReadErrors.Add(1)
			return ps.Continue
		}
		if ti == 0 {
			return ps.Continue
		}
		if len(threads) >= b.max {
			truncated = true
			return ps.Abort
		}
		threads = append(threads, Thread{
			Win32ThreadInfo: ti,
			TID:             t.TID,
			PID:             p.PID,
			Name:            p.Name,
			Process:         p,
			Thread:          t,
		})
		return ps.Continue
	})

	switch status {
	case ps.Success:
	case ps.CallbackAbort:
		if !truncated {
			return nil, ps.EnumError{Status: status}
		}
		threadsTruncated.Add(1)
		log.Errorf("%v: the index is capped at %d threads. Hooks of the remaining threads are unknown",
			kerrors.ErrTooManyThreads, b.max)
	default:
		return nil, ps.EnumError{Status: status}
	}

	threadsIndexed.Set(int64(len(threads)))

	ix := NewIndex(threads)
	ix.truncated = truncated
	return ix, nil
}

// DeniedCount returns the number of remembered inaccessible processes.
func (b *Builder) DeniedCount() int { return b.denied.Len() }
