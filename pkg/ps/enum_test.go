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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func procs() []Process {
	return []Process{
		{PID: 4, Name: "System", Threads: []Thread{{TID: 8, PID: 4}, {TID: 12, PID: 4}}},
		{PID: 100, Name: "idle.exe"},
		{PID: 200, Name: "explorer.exe", Threads: []Thread{{TID: 204, PID: 200}, {TID: 208, PID: 200}, {TID: 212, PID: 200}}},
	}
}

func TestWalk(t *testing.T) {
	var tids []uint32
	var remaining []int
	status := Walk(procs(), func(proc *Process, thread *Thread, rem int, flags Flags) Action {
		require.NotNil(t, thread)
		assert.Equal(t, proc.PID, thread.PID)
		tids = append(tids, thread.TID)
		remaining = append(remaining, rem)
		return Continue
	}, 0)
	require.Equal(t, Success, status)
	assert.Equal(t, []uint32{8, 12, 204, 208, 212}, tids)
	assert.Equal(t, []int{1, 0, 2, 1, 0}, remaining)
}

func TestWalkZeroThreads(t *testing.T) {
	var calls int
	var threadless []uint32
	status := Walk(procs(), func(proc *Process, thread *Thread, rem int, flags Flags) Action {
		calls++
		if thread == nil {
			threadless = append(threadless, proc.PID)
		}
		return Continue
	}, ZeroThreadsOK)
	require.Equal(t, Success, status)
	assert.Equal(t, 6, calls)
	assert.Equal(t, []uint32{100}, threadless)
}

func TestWalkSkipAndAbort(t *testing.T) {
	var tids []uint32
	status := Walk(procs(), func(proc *Process, thread *Thread, rem int, flags Flags) Action {
		tids = append(tids, thread.TID)
		if proc.PID == 4 {
			return SkipProcess
		}
		if thread.TID == 208 {
			return Abort
		}
		return Continue
	}, Debug)
	assert.Equal(t, CallbackAbort, status)
	assert.Equal(t, []uint32{8, 204, 208}, tids)
}

func TestWalkNilCallback(t *testing.T) {
	assert.Equal(t, ParameterError, Walk(procs(), nil, 0))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "buffer too small", BufferTooSmall.String())
	assert.Equal(t, "unknown status (99)", Status(99).String())
	assert.Equal(t, "couldn't enumerate system processes: query error", EnumError{Status: QueryError}.Error())
}

func TestSnapshotStaticQuerier(t *testing.T) {
	q := &StaticQuerier{Procs: procs()}
	snap := NewSnapshot(Extended)
	require.NoError(t, q.Query(snap))
	require.NoError(t, q.Query(snap))
	assert.Len(t, snap.Procs, 3)
	assert.Equal(t, 5, snap.ThreadCount())
	assert.Equal(t, Extended, snap.Flags())

	// mutating the snapshot doesn't alter the querier source
	snap.Procs[0].Threads[0].TID = 1
	assert.Equal(t, uint32(8), q.Procs[0].Threads[0].TID)

	snap.Reset()
	assert.Len(t, snap.Procs, 0)
	assert.Equal(t, 2, q.Calls)
}
