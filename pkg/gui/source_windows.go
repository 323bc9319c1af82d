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
	"fmt"

	"github.com/rabbitstack/hookmon/pkg/sys"
	"golang.org/x/sys/windows"
)

type systemSource struct{}

// NewSource returns the source that opens live system processes and threads.
func NewSource() Source { return systemSource{} }

func (systemSource) OpenProcess(pid uint32) (ProcessReader, error) {
	r, err := sys.OpenProcessReader(pid)
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return nil, err
	}
	return r, nil
}

func (systemSource) ThreadTeb(tid uint32) (uintptr, error) {
	return sys.ThreadTebAddress(tid)
}
