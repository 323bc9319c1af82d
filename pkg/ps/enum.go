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
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Flags alter the behaviour of the process/thread enumeration.
type Flags uint8

const (
	// Extended requests the richer per-thread data, including the TEB address.
	Extended Flags = 1 << iota
	// Debug enables verbose tracing of the enumeration.
	Debug
	// ZeroThreadsOK invokes the callback once for processes without threads.
	ZeroThreadsOK
)

// Action is returned by the enumeration callback to steer the traversal.
type Action uint8

const (
	// Continue proceeds with the next thread.
	Continue Action = iota
	// SkipProcess skips the remaining threads of the current process.
	SkipProcess
	// Abort stops the enumeration.
	Abort
)

// Status is the outcome of the enumeration.
type Status uint8

const (
	// Success indicates the enumeration completed.
	Success Status = iota
	// BufferTooSmall indicates the buffer can't fit the system information.
	BufferTooSmall
	// AlignmentError indicates a misaligned record in the system information buffer.
	AlignmentError
	// QueryError indicates the system information query failed.
	QueryError
	// CalculationError indicates a record that extends past the buffer boundary.
	CalculationError
	// CallbackAbort indicates the callback aborted the enumeration.
	CallbackAbort
	// ParameterError indicates invalid enumeration parameters.
	ParameterError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case BufferTooSmall:
		return "buffer too small"
	case AlignmentError:
		return "alignment error"
	case QueryError:
		return "query error"
	case CalculationError:
		return "calculation error"
	case CallbackAbort:
		return "callback abort"
	case ParameterError:
		return "parameter error"
	default:
		return fmt.Sprintf("unknown status (%d)", uint8(s))
	}
}

// EnumError wraps the non-successful enumeration status.
type EnumError struct {
	Status Status
}

func (e EnumError) Error() string {
	return "couldn't enumerate system processes: " + e.Status.String()
}

// Process is the process record produced by the enumeration.
type Process struct {
	// PID is the process identifier.
	PID uint32
	// PPID is the identifier of the process that created this process.
	PPID uint32
	// SessionID is the terminal services session identifier.
	SessionID uint32
	// Name is the process image name.
	Name string
	// CreateTime is the process creation time in 100ns intervals since 1601.
	CreateTime int64
	// Threads contains the threads running in this process.
	Threads []Thread
}

// Thread is the thread record produced by the enumeration.
type Thread struct {
	// TID is the thread identifier.
	TID uint32
	// PID is the identifier of the process owning this thread.
	PID uint32
	// StartAddress is the thread start address.
	StartAddress uintptr
	// TebBase is the address of the thread environment block. Populated
	// only by the extended enumeration.
	TebBase uintptr
	// State is the thread scheduler state.
	State uint32
	// WaitReason is the reason the thread is waiting.
	WaitReason uint32
}

func (p *Process) String() string {
	return fmt.Sprintf("%s (%d)", p.Name, p.PID)
}

// Callback is invoked for every enumerated thread. The remaining argument is
// the number of threads left in the process after the current one. For
// processes without threads, the thread argument is nil and the callback is
// only invoked when ZeroThreadsOK is set.
type Callback func(proc *Process, thread *Thread, remaining int, flags Flags) Action

// Walk traverses the process records and invokes the callback for each thread.
func Walk(procs []Process, cb Callback, flags Flags) Status {
	if cb == nil {
		return ParameterError
	}
	for i := range procs {
		proc := &procs[i]
		if flags&Debug != 0 {
			log.Debugf("enumerating %d thread(s) of %s", len(proc.Threads), proc)
		}
		if len(proc.Threads) == 0 {
			if flags&ZeroThreadsOK == 0 {
				continue
			}
			if cb(proc, nil, 0, flags) == Abort {
				return CallbackAbort
			}
			continue
		}
	threads:
		for j := range proc.Threads {
			switch cb(proc, &proc.Threads[j], len(proc.Threads)-j-1, flags) {
			case SkipProcess:
				break threads
			case Abort:
				return CallbackAbort
			}
		}
	}
	return Success
}
