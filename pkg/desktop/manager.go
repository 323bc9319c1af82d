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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rabbitstack/hookmon/pkg/config"
	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/util/multierror"
	"github.com/rabbitstack/hookmon/pkg/util/wildcard"
	log "github.com/sirupsen/logrus"
)

// Attachment is the result of attaching to the desktop.
type Attachment struct {
	// Name is the desktop name. It is resolved by the attacher when the
	// current desktop is requested.
	Name string
	// Heap is the heap mapping as observed by the attached thread.
	Heap Heap
	// Closer releases the attached thread.
	Closer io.Closer
}

// Attacher binds threads to desktops.
type Attacher interface {
	// Attach attaches to the desktop with the given name. An empty name
	// denotes the current desktop of the process.
	Attach(name string) (*Attachment, error)
	// Enumerate returns the desktop names of the process window station.
	Enumerate() ([]string, error)
}

// Manager keeps track of attached desktops. The desktops are kept in the
// order they were attached.
type Manager struct {
	attacher Attacher
	handles  []*Handle
	// OnAttach is called after every attach attempt.
	OnAttach func(name string, err error)
}

// NewManager creates the desktop manager.
func NewManager(a Attacher) *Manager {
	return &Manager{attacher: a}
}

func (m *Manager) find(name string) *Handle {
	for _, h := range m.handles {
		if strings.EqualFold(h.Name, name) {
			return h
		}
	}
	return nil
}

// Attach attaches to the desktop. Attaching to an already attached
// desktop returns the existing handle.
func (m *Manager) Attach(name string) (*Handle, error) {
	if name != "" {
		if h := m.find(name); h != nil {
			return h, nil
		}
	}
	a, err := m.attacher.Attach(name)
	if m.OnAttach != nil {
		m.OnAttach(name, err)
	}
	if err != nil {
		if name == "" {
			return nil, fmt.Errorf("couldn't attach to the current desktop: %v", err)
		}
		return nil, fmt.Errorf("couldn't attach to %s desktop: %v", name, err)
	}
	if name == "" {
		name = a.Name
	}
	if err := a.Heap.validate(name); err != nil {
		if a.Closer != nil {
			if err := a.Closer.Close(); err != nil {
				log.Warnf("couldn't detach from %s desktop: %v", name, err)
			}
		}
		return nil, err
	}
	if h := m.find(name); h != nil {
		// the current desktop resolved to an attached one
		if a.Closer != nil {
			_ = a.Closer.Close()
		}
		return h, nil
	}
	h := &Handle{Name: name, Heap: a.Heap, closer: a.Closer}
	m.handles = append(m.handles, h)
	log.Infof("attached to %s desktop [base=0x%x limit=0x%x delta=0x%x]", name, h.Base, h.Limit, h.Delta)
	return h, nil
}

// Setup attaches the desktops selected by the filter. An empty include
// list selects the current desktop and all desktops of the window station.
func (m *Manager) Setup(filter config.ListFilter) error {
	if len(filter.Include) > 0 {
		return m.AttachAll(filter.Include)
	}
	return m.AttachEnumerated(filter.Exclude)
}

// AttachAll attaches the explicitly requested desktops. The dot name
// denotes the current desktop. Failing to attach any of them is fatal.
func (m *Manager) AttachAll(names []string) error {
	for _, name := range names {
		if name == "." {
			name = ""
		}
		if _, err := m.Attach(name); err != nil {
			return fmt.Errorf("%w: %v", kerrors.ErrDesktopRequired, err)
		}
	}
	return nil
}

// AttachEnumerated attaches the current desktop and every desktop of the
// window station that isn't matched by the exclude patterns. Failing to
// attach any of them is only logged, but at least one desktop must be
// attached.
func (m *Manager) AttachEnumerated(exclude []string) error {
	names, err := m.attacher.Enumerate()
	if err != nil {
		return fmt.Errorf("couldn't enumerate desktops: %v", err)
	}

	var errs []error
	if _, err := m.Attach(""); err != nil {
		log.Warn(err)
		errs = append(errs, err)
	}
	for _, name := range names {
		if excluded(exclude, name) {
			log.Debugf("skipping excluded %s desktop", name)
			continue
		}
		if _, err := m.Attach(name); err != nil {
			log.Warn(err)
			errs = append(errs, err)
		}
	}
	if len(m.handles) == 0 {
		return fmt.Errorf("%w: %v", kerrors.ErrNoDesktops, multierror.Wrap(errs...))
	}
	return nil
}

func excluded(patterns []string, name string) bool {
	for _, p := range patterns {
		if wildcard.MatchFold(p, name) {
			return true
		}
	}
	return false
}

// Handles returns the attached desktops.
func (m *Manager) Handles() []*Handle { return m.handles }

// Enumerate returns the desktop names of the process window station.
func (m *Manager) Enumerate() ([]string, error) { return m.attacher.Enumerate() }

// Close detaches from all desktops.
func (m *Manager) Close() error {
	var errs []error
	for _, h := range m.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
		}
	}
	m.handles = nil
	return multierror.Wrap(errs...)
}

// IsRequired determines if the error stems from the failure to attach
// the explicitly requested desktop.
func IsRequired(err error) bool { return errors.Is(err, kerrors.ErrDesktopRequired) }
