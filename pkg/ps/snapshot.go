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

package ps

// defaultBufferSize is the initial size of the enumeration buffer.
const defaultBufferSize = 1024 * 1024

// Snapshot is the point-in-time capture of system processes and threads. The
// buffer is retained between captures, so the snapshot can be reused across
// polling cycles without reallocation.
type Snapshot struct {
	// Procs contains all captured process records.
	Procs []Process
	buf   []byte
	flags Flags
}

// NewSnapshot creates an empty snapshot with the given enumeration flags.
func NewSnapshot(flags Flags) *Snapshot {
	return &Snapshot{flags: flags}
}

// NewSnapshotFromProcs creates the snapshot from already captured process records.
func NewSnapshotFromProcs(procs []Process, flags Flags) *Snapshot {
	return &Snapshot{Procs: procs, flags: flags}
}

// Flags returns the enumeration flags.
func (s *Snapshot) Flags() Flags { return s.flags }

// Walk invokes the callback for every thread in the snapshot.
func (s *Snapshot) Walk(cb Callback) Status { return Walk(s.Procs, cb, s.flags) }

// ThreadCount returns the total number of threads in the snapshot.
func (s *Snapshot) ThreadCount() int {
	var n int
	for _, proc := range s.Procs {
		n += len(proc.Threads)
	}
	return n
}

// BufferSize returns the size of the underlying system information buffer.
func (s *Snapshot) BufferSize() int { return len(s.buf) }

// Reset discards captured records but retains the allocated storage.
func (s *Snapshot) Reset() {
	for i := range s.Procs {
		s.Procs[i].Threads = nil
	}
	s.Procs = s.Procs[:0]
}

// Querier fills the snapshot with the current set of system processes and threads.
type Querier interface {
	Query(snap *Snapshot) error
}

// StaticQuerier is the querier that populates snapshots from fixed process records.
// Primarily used in tests.
type StaticQuerier struct {
	Procs []Process
	// Err, if set, is returned instead of populating the snapshot.
	Err error
	// Calls counts the number of queries.
	Calls int
}

// Query copies the fixed process records into the snapshot.
func (q *StaticQuerier) Query(snap *Snapshot) error {
	q.Calls++
	if q.Err != nil {
		return q.Err
	}
	snap.Reset()
	for _, proc := range q.Procs {
		proc.Threads = append([]Thread(nil), proc.Threads...)
		snap.Procs = append(snap.Procs, proc)
	}
	return nil
}
