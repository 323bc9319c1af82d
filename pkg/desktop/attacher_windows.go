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

package desktop

import (
	"fmt"
	"runtime"

	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

type systemAttacher struct {
	offsets *offsets.Offsets
}

// NewAttacher returns the attacher that binds dedicated OS threads to desktops.
func NewAttacher(o *offsets.Offsets) Attacher {
	return &systemAttacher{offsets: o}
}

func (a *systemAttacher) Enumerate() ([]string, error) {
	winsta, err := sys.GetProcessWindowStation()
	if err != nil {
		return nil, err
	}
	return sys.EnumDesktopNames(winsta)
}

func (a *systemAttacher) Attach(name string) (*Attachment, error) {
	w := &worker{
		name:  name,
		ready: make(chan error, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.run(a.offsets)
	if err := <-w.ready; err != nil {
		<-w.done
		return nil, err
	}
	return &Attachment{Name: w.name, Heap: w.heap, Closer: w}, nil
}

// worker owns the OS thread assigned to the desktop. The thread is never
// released to the scheduler, so it is destroyed when the worker exits.
type worker struct {
	name  string
	heap  Heap
	ready chan error
	quit  chan struct{}
	done  chan struct{}
}

func (w *worker) run(o *offsets.Offsets) {
	runtime.LockOSThread()
	defer close(w.done)

	var desk sys.Hdesk
	if w.name != "" {
		name, err := windows.UTF16PtrFromString(w.name)
		if err != nil {
			w.ready <- err
			return
		}
		desk, err = sys.OpenDesktop(name, 0, false, sys.DesktopReadObjects)
		if err != nil {
			w.ready <- fmt.Errorf("OpenDesktop: %v", err)
			return
		}
		defer func() {
			if err := desk.Close(); err != nil {
				log.Debugf("couldn't close %s desktop: %v", w.name, err)
			}
		}()
		if err := sys.SetThreadDesktop(desk); err != nil {
			w.ready <- fmt.Errorf("SetThreadDesktop: %v", err)
			return
		}
	} else {
		var err error
		desk, err = sys.GetThreadDesktop(windows.GetCurrentThreadId())
		if err != nil {
			w.ready <- fmt.Errorf("GetThreadDesktop: %v", err)
			return
		}
		w.name, err = sys.UserObjectName(windows.Handle(desk))
		if err != nil {
			w.ready <- fmt.Errorf("couldn't resolve the current desktop name: %v", err)
			return
		}
	}

	// converting to the GUI thread populates the client information
	sys.IsGUIThread(true)

	teb, err := sys.CurrentTebAddress()
	if err != nil {
		w.ready <- fmt.Errorf("couldn't query TEB address: %v", err)
		return
	}
	w.heap, err = ReadHeap(sys.CurrentProcessReader(), teb, o)
	if err != nil {
		w.ready <- err
		return
	}
	w.ready <- nil

	<-w.quit
}

// Close signals the worker to exit and waits for it.
func (w *worker) Close() error {
	close(w.quit)
	<-w.done
	return nil
}
