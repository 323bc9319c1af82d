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

package sys

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// ThreadBasicInformationClass is the information class that returns the basic thread information.
const ThreadBasicInformationClass = 0

// ThreadQueryLimitedInformation is the access right for querying limited thread information.
const ThreadQueryLimitedInformation = 0x0800

// ClientID identifies the thread and the process it belongs to.
type ClientID struct {
	UniqueProcess uintptr
	UniqueThread  uintptr
}

// ThreadBasicInformation contains the basic thread information.
type ThreadBasicInformation struct {
	ExitStatus     uint32
	TebBaseAddress uintptr
	ClientID       ClientID
	AffinityMask   uintptr
	Priority       int32
	BasePriority   int32
}

// QueryTebAddress returns the address of the thread environment block.
func QueryTebAddress(thread windows.Handle) (uintptr, error) {
	var tbi ThreadBasicInformation
	err := NtQueryInformationThread(thread, ThreadBasicInformationClass, unsafe.Pointer(&tbi), uint32(unsafe.Sizeof(tbi)), nil)
	if err != nil {
		return 0, err
	}
	return tbi.TebBaseAddress, nil
}

// ThreadTebAddress opens the thread with the given identifier and returns its TEB address.
func ThreadTebAddress(tid uint32) (uintptr, error) {
	thread, err := windows.OpenThread(ThreadQueryLimitedInformation, false, tid)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(thread)
	return QueryTebAddress(thread)
}

// CurrentTebAddress returns the TEB address of the calling OS thread.
func CurrentTebAddress() (uintptr, error) {
	return QueryTebAddress(windows.CurrentThread())
}
