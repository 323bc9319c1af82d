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
	"expvar"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

const (
	systemProcessInformation         = 5
	systemExtendedProcessInformation = 57
	// maxBufferSize caps the growth of the enumeration buffer
	maxBufferSize = 256 * 1024 * 1024
)

var (
	enumQueryFailures = expvar.NewInt("ps.enum.query.failures")
	enumBufferSize    = expvar.NewInt("ps.enum.buffer.size")
)

type systemProcessInfo struct {
	NextEntryOffset              uint32
	NumberOfThreads              uint32
	WorkingSetPrivateSize        int64
	HardFaultCount               uint32
	NumberOfThreadsHighWatermark uint32
	CycleTime                    uint64
	CreateTime                   int64
	UserTime                     int64
	KernelTime                   int64
	ImageName                    windows.NTUnicodeString
	BasePriority                 int32
	UniqueProcessID              uintptr
	InheritedFromUniqueProcessID uintptr
	HandleCount                  uint32
	SessionID                    uint32
	UniqueProcessKey             uintptr
	PeakVirtualSize              uintptr
	VirtualSize                  uintptr
	PageFaultCount               uint32
	PeakWorkingSetSize           uintptr
	WorkingSetSize               uintptr
	QuotaPeakPagedPoolUsage      uintptr
	QuotaPagedPoolUsage          uintptr
	QuotaPeakNonPagedPoolUsage   uintptr
	QuotaNonPagedPoolUsage       uintptr
	PagefileUsage                uintptr
	PeakPagefileUsage            uintptr
	PrivatePageCount             uintptr
	ReadOperationCount           int64
	WriteOperationCount          int64
	OtherOperationCount          int64
	ReadTransferCount            int64
	WriteTransferCount           int64
	OtherTransferCount           int64
}

type clientID struct {
	UniqueProcess uintptr
	UniqueThread  uintptr
}

type systemThreadInfo struct {
	KernelTime      int64
	UserTime        int64
	CreateTime      int64
	WaitTime        uint32
	StartAddress    uintptr
	ClientID        clientID
	Priority        int32
	BasePriority    int32
	ContextSwitches uint32
	ThreadState     uint32
	WaitReason      uint32
}

type systemExtendedThreadInfo struct {
	ThreadInfo        systemThreadInfo
	StackBase         uintptr
	StackLimit        uintptr
	Win32StartAddress uintptr
	TebBase           uintptr
	Reserved2         uintptr
	Reserved3         uintptr
	Reserved4         uintptr
}

// Enumerate queries the system processes and threads into the buffer, and
// invokes the callback for every thread. If the buffer is too small to
// accommodate the system information, BufferTooSmall is returned and the
// caller is expected to retry with the larger buffer.
func Enumerate(cb Callback, buf []byte, flags Flags) Status {
	if cb == nil || len(buf) == 0 {
		return ParameterError
	}
	procs, status, _ := query(buf, flags, nil)
	if status != Success {
		return status
	}
	return Walk(procs, cb, flags)
}

func query(buf []byte, flags Flags, procs []Process) ([]Process, Status, uint32) {
	class := int32(systemProcessInformation)
	if flags&Extended != 0 {
		class = systemExtendedProcessInformation
	}
	var n uint32
	err := windows.NtQuerySystemInformation(class, unsafe.Pointer(&buf[0]), uint32(len(buf)), &n)
	switch err {
	case nil:
	case windows.STATUS_INFO_LENGTH_MISMATCH, windows.STATUS_BUFFER_TOO_SMALL, windows.STATUS_BUFFER_OVERFLOW:
		return procs, BufferTooSmall, n
	default:
		enumQueryFailures.Add(1)
		if flags&Debug != 0 {
			log.Debugf("NtQuerySystemInformation failed: %v", err)
		}
		return procs, QueryError, n
	}
	if n == 0 || n > uint32(len(buf)) {
		n = uint32(len(buf))
	}
	return parse(buf[:n], flags, procs)
}

func parse(buf []byte, flags Flags, procs []Process) ([]Process, Status, uint32) {
	var (
		procSize   = unsafe.Sizeof(systemProcessInfo{})
		threadSize = unsafe.Sizeof(systemThreadInfo{})
		extended   = flags&Extended != 0
		size       = uintptr(len(buf))
		off        uintptr
	)
	if extended {
		threadSize = unsafe.Sizeof(systemExtendedThreadInfo{})
	}
	for {
		if off%unsafe.Alignof(uintptr(0)) != 0 {
			return procs, AlignmentError, uint32(size)
		}
		if off+procSize > size {
			return procs, CalculationError, uint32(size)
		}
		info := (*systemProcessInfo)(unsafe.Pointer(&buf[off]))
		if off+procSize+uintptr(info.NumberOfThreads)*threadSize > size {
			return procs, CalculationError, uint32(size)
		}
		proc := Process{
			PID:        uint32(info.UniqueProcessID),
			PPID:       uint32(info.InheritedFromUniqueProcessID),
			SessionID:  info.SessionID,
			CreateTime: info.CreateTime,
			Threads:    make([]Thread, 0, info.NumberOfThreads),
		}
		if info.ImageName.Buffer != nil && info.ImageName.Length > 0 {
			proc.Name = windows.UTF16ToString(unsafe.Slice(info.ImageName.Buffer, info.ImageName.Length/2))
		}
		for i := uintptr(0); i < uintptr(info.NumberOfThreads); i++ {
			p := unsafe.Pointer(&buf[off+procSize+i*threadSize])
			var thread Thread
			if extended {
				ti := (*systemExtendedThreadInfo)(p)
				thread = newThread(&ti.ThreadInfo)
				thread.TebBase = ti.TebBase
			} else {
				thread = newThread((*systemThreadInfo)(p))
			}
			proc.Threads = append(proc.Threads, thread)
		}
		procs = append(procs, proc)
		if info.NextEntryOffset == 0 {
			break
		}
		off += uintptr(info.NextEntryOffset)
	}
	return procs, Success, uint32(size)
}

func newThread(ti *systemThreadInfo) Thread {
	return Thread{
		TID:          uint32(ti.ClientID.UniqueThread),
		PID:          uint32(ti.ClientID.UniqueProcess),
		StartAddress: ti.StartAddress,
		State:        ti.ThreadState,
		WaitReason:   ti.WaitReason,
	}
}

// SystemQuerier populates snapshots from the system process information.
type SystemQuerier struct{}

// NewQuerier returns the querier backed by the system process information.
func NewQuerier() Querier { return SystemQuerier{} }

// Query captures the system processes and threads. The snapshot buffer is grown
// until it fits the system information.
func (SystemQuerier) Query(snap *Snapshot) error {
	if len(snap.buf) == 0 {
		snap.buf = make([]byte, defaultBufferSize)
	}
	for {
		snap.Reset()
		procs, status, n := query(snap.buf, snap.flags, snap.Procs)
		snap.Procs = procs
		switch status {
		case Success:
			enumBufferSize.Set(int64(len(snap.buf)))
			return nil
		case BufferTooSmall:
			size := len(snap.buf) * 2
			if int(n) > size {
				size = int(n) + 64*1024
			}
			if size > maxBufferSize {
				return EnumError{Status: status}
			}
			snap.buf = make([]byte, size)
		default:
			return EnumError{Status: status}
		}
	}
}
