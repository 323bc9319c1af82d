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

package spinner

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner renders progress of long-running CLI operations.
type Spinner struct {
	s *spinner.Spinner
}

// Show creates a new spinner writing to the given writer and starts it.
// A nil writer yields a spinner that renders nothing.
func Show(w io.Writer, prefix string) *Spinner {
	if w == nil {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = "> " + prefix + " "
	s.HideCursor = true
	s.Start()
	return &Spinner{s: s}
}

// Update changes the text displayed alongside the spinner.
func (s *Spinner) Update(suffix string) {
	if s.s == nil {
		return
	}
	s.s.Lock()
	s.s.Suffix = " " + suffix
	s.s.Unlock()
}

// Stop stops the spinner and prints the final message, if any.
func (s *Spinner) Stop(final string) {
	if s.s == nil {
		return
	}
	if final != "" {
		s.s.FinalMSG = final + "\n"
	}
	s.s.Stop()
}
