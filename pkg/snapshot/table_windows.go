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

package snapshot

import (
	"fmt"

	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
)

// OpenHandleTable locates the USER handle table of the session through the
// gSharedInfo export of user32.dll.
func OpenHandleTable(o *offsets.Offsets) (HandleTable, error) {
	addr, err := sys.SharedInfoAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrHandleTableUnavailable, err)
	}
	table, err := NewHandleTable(sys.CurrentProcessReader(), addr, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrHandleTableUnavailable, err)
	}
	return table, nil
}
