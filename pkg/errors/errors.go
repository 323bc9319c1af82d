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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDesktopRequired is returned when an explicitly requested desktop couldn't be attached
	ErrDesktopRequired = errors.New("couldn't attach to the required desktop")
	// ErrNoDesktops signals that none of the desktops could be attached
	ErrNoDesktops = errors.New("no desktops are attached")
	// ErrDesktopMismatch is returned when the snapshots being compared don't have the same desktops
	ErrDesktopMismatch = errors.New("desktop count mismatch between snapshots")
	// ErrDuplicateHook signals the hook object table kept changing while it was being read
	ErrDuplicateHook = errors.New("duplicate hook objects persisted in the snapshot")
	// ErrNullHookAddress is returned when the handle entry references a null hook object
	ErrNullHookAddress = errors.New("hook object has a null kernel address")
	// ErrTooManyThreads signals the number of GUI threads exceeded the configured maximum
	ErrTooManyThreads = errors.New("too many GUI threads")
	// ErrHandleTableUnavailable is returned when the user handle table couldn't be located
	ErrHandleTableUnavailable = errors.New("user handle table is not available")
)

// ErrInvalidHeap is returned when the desktop heap information read from the
// attached thread doesn't describe a valid mapping.
type ErrInvalidHeap struct {
	Desktop string
	Reason  string
}

// Error returns the error message.
func (e ErrInvalidHeap) Error() string {
	return fmt.Sprintf("invalid heap for %s desktop: %s", e.Desktop, e.Reason)
}

// IsInvalidHeap returns true if the error is ErrInvalidHeap.
func IsInvalidHeap(err error) bool {
	var e ErrInvalidHeap
	return errors.As(err, &e)
}
