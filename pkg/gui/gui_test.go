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
	"fmt"
	"testing"

	"github.com/rabbitstack/hookmon/pkg/ps"
	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
	"github.com/rabbitstack/hookmon/pkg/sys/systest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var x64 = &offsets.Offsets{PtrSize: 8, TebWin32ThreadInfo: 0x78}

type processMock struct {
	*systest.Memory
	closed int
}

func (p *processMock) Close() error {
	p.closed++
	return nil
}

type sourceMock struct {
	mock.Mock
	procs map[uint32]*processMock
}

func (s *sourceMock) OpenProcess(pid uint32) (ProcessReader, error) {
	args := s.Called(pid)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return s.procs[pid], nil
}

func (s *sourceMock) ThreadTeb(tid uint32) (uintptr, error) {
	args := s.Called(tid)
	return args.Get(0).(uintptr), args.Error(1)
}

// teb maps the environment block with the given thread info pointer
func teb(m *systest.Memory, addr, threadInfo uintptr) {
	b := make([]byte, 0x100)
	sys.EncodePointer(b[0x78:], threadInfo, 8)
	m.Map(addr, b)
}

func newSource() *sourceMock {
	src := &sourceMock{procs: make(map[uint32]*processMock)}

	explorer := &processMock{Memory: systest.NewMemory()}
	teb(explorer.Memory, 0x1000, 0xfffff90000001000)
	teb(explorer.Memory, 0x2000, 0) // not a GUI thread
	teb(explorer.Memory, 0x3000, 0xfffff90000003000)
	src.procs[200] = explorer

	notepad := &processMock{Memory: systest.NewMemory()}
	teb(notepad.Memory, 0x4000, 0xfffff90000002000)
	src.procs[300] = notepad

	return src
}

func snapshot() *ps.Snapshot {
	return ps.NewSnapshotFromProcs([]ps.Process{
		{PID: 4, Name: "System", Threads: []ps.Thread{{TID: 8, PID: 4}}},
		{PID: 200, Name: "explorer.exe", CreateTime: 1000, Threads: []ps.Thread{
			{TID: 204, PID: 200, TebBase: 0x1000},
			{TID: 208, PID: 200, TebBase: 0x2000},
			{TID: 212, PID: 200},
		}},
		{PID: 300, Name: "notepad.exe", Threads: []ps.Thread{{TID: 304, PID: 300, TebBase: 0x4000}}},
	}, ps.Extended)
}

func TestBuild(t *testing.T) {
	src := newSource()
	src.On("OpenProcess", uint32(4)).Return(fmt.Errorf("open System: %w", ErrAccessDenied))
	src.On("OpenProcess", uint32(200)).Return(nil)
	src.On("OpenProcess", uint32(300)).Return(nil)
	src.On("ThreadTeb", uint32(212)).Return(uintptr(0x3000), nil)

	b := NewBuilder(src, x64, 0)
	ix, err := b.Build(snapshot())
	require.NoError(t, err)

	require.Equal(t, 3, ix.Len())
	assert.Equal(t, 0, ix.Duplicates())
	assert.False(t, ix.Truncated())

	thread := ix.Lookup(0xfffff90000003000)
	require.NotNil(t, thread)
	assert.Equal(t, uint32(212), thread.TID)
	assert.Equal(t, uint32(200), thread.PID)
	assert.Equal(t, "explorer.exe", thread.Name)
	assert.True(t, thread.Unique)
	assert.Equal(t, uint32(212), thread.Thread.TID)
	assert.Equal(t, "explorer.exe", thread.Process.Name)
	assert.Equal(t, "explorer.exe (200:212)", thread.String())

	thread = ix.Lookup(0xfffff90000002000)
	require.NotNil(t, thread)
	assert.Equal(t, uint32(304), thread.TID)

	assert.Nil(t, ix.Lookup(0xfffff90000004000))
	assert.Nil(t, ix.Lookup(0))

	// one handle per process, released after the last thread
	assert.Equal(t, 1, src.procs[200].closed)
	assert.Equal(t, 1, src.procs[300].closed)

	// the inaccessible process isn't reopened
	assert.Equal(t, 1, b.DeniedCount())
	_, err = b.Build(snapshot())
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "OpenProcess", 5)
}

func TestBuildTooManyThreads(t *testing.T) {
	src := newSource()
	src.On("OpenProcess", uint32(4)).Return(ErrAccessDenied)
	src.On("OpenProcess", uint32(200)).Return(nil)
	src.On("ThreadTeb", uint32(212)).Return(uintptr(0x3000), nil)

	ix, err := NewBuilder(src, x64, 1).Build(snapshot())
	require.NoError(t, err)
	assert.True(t, ix.Truncated())
	require.Equal(t, 1, ix.Len())
	assert.NotNil(t, ix.Lookup(0xfffff90000001000))
	assert.Nil(t, ix.Lookup(0xfffff90000003000))
	// the walk stops before the remaining processes
	src.AssertNotCalled(t, "OpenProcess", uint32(300))
	// the handle is released on early exit
	assert.Equal(t, 1, src.procs[200].closed)
}

func TestBuildUnreadableTeb(t *testing.T) {
	src := newSource()
	src.On("OpenProcess", uint32(4)).Return(ErrAccessDenied)
	src.On("OpenProcess", uint32(200)).Return(nil)
	src.On("OpenProcess", uint32(300)).Return(nil)
	src.On("ThreadTeb", uint32(212)).Return(uintptr(0), fmt.Errorf("thread exited"))
	src.procs[300].Unmap(0x4000)

	ix, err := NewBuilder(src, x64, 0).Build(snapshot())
	require.NoError(t, err)
	require.Equal(t, 1, ix.Len())
	assert.NotNil(t, ix.Lookup(0xfffff90000001000))
}

func TestIndexDuplicates(t *testing.T) {
	ix := NewIndex([]Thread{
		{Win32ThreadInfo: 0x3000, TID: 3},
		{Win32ThreadInfo: 0x1000, TID: 1},
		{Win32ThreadInfo: 0x2000, TID: 2},
		{Win32ThreadInfo: 0x1000, TID: 4},
		{Win32ThreadInfo: 0x1000, TID: 5},
	})
	require.Equal(t, 5, ix.Len())
	assert.Equal(t, 3, ix.Duplicates())

	assert.Nil(t, ix.Lookup(0x1000))
	require.NotNil(t, ix.Lookup(0x2000))
	require.NotNil(t, ix.Lookup(0x3000))
	assert.Equal(t, uint32(3), ix.Lookup(0x3000).TID)

	for i, thread := range ix.Threads() {
		if i > 0 {
			assert.True(t, ix.Threads()[i-1].Win32ThreadInfo <= thread.Win32ThreadInfo)
		}
		assert.Equal(t, thread.Win32ThreadInfo != 0x1000, thread.Unique)
	}
}

func TestNilIndex(t *testing.T) {
	var ix *Index
	assert.Nil(t, ix.Lookup(0x1000))
	assert.Equal(t, 0, ix.Len())
	assert.False(t, ix.Truncated())
}

func TestSameIdentity(t *testing.T) {
	a := &Thread{Win32ThreadInfo: 0x1000, TID: 1, PID: 2, Name: "a.exe"}
	b := *a
	assert.True(t, SameIdentity(a, &b))
	assert.True(t, SameIdentity(nil, nil))
	assert.False(t, SameIdentity(a, nil))
	b.TID = 3
	assert.False(t, SameIdentity(a, &b))
	var unknown *Thread
	assert.Equal(t, "<unknown>", unknown.String())
}
