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
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Hdesk is the desktop handle type.
type Hdesk windows.Handle

// Hwinsta is the window station handle type.
type Hwinsta windows.Handle

const (
	// DesktopReadObjects is the access right required to read objects on the desktop.
	DesktopReadObjects = 0x0001
	// UOIName is the information index for retrieving the name of the user object.
	UOIName = 2
)

// Close closes the desktop handle.
func (d Hdesk) Close() error { return CloseDesktop(d) }

var (
	enumMu       sync.Mutex
	enumNames    []string
	enumDesktops = windows.NewCallback(func(name *uint16, param uintptr) uintptr {
		enumNames = append(enumNames, windows.UTF16PtrToString(name))
		return 1
	})
)

// EnumDesktopNames returns the names of all desktops in the window station.
func EnumDesktopNames(winsta Hwinsta) ([]string, error) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumNames = nil
	if err := EnumDesktops(winsta, enumDesktops, 0); err != nil {
		return nil, err
	}
	names := enumNames
	enumNames = nil
	return names, nil
}

// UserObjectName returns the name of the desktop or window station object.
func UserObjectName(obj windows.Handle) (string, error) {
	var n uint32
	err := GetUserObjectInformation(obj, UOIName, nil, 0, &n)
	if err != nil && err != windows.ERROR_INSUFFICIENT_BUFFER {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := make([]uint16, n/2+1)
	if err := GetUserObjectInformation(obj, UOIName, unsafe.Pointer(&b[0]), uint32(len(b)*2), &n); err != nil {
		return "", err
	}
	return windows.UTF16ToString(b), nil
}

// SharedInfoAddress returns the address of the gSharedInfo structure exported
// by user32.dll. The structure gives access to the USER handle table which is
// mapped read-only into every GUI process.
func SharedInfoAddress() (uintptr, error) {
	if err := procSharedInfo.Find(); err != nil {
		return 0, err
	}
	return procSharedInfo.Addr(), nil
}

var procSharedInfo = moduser32.NewProc("gSharedInfo")
