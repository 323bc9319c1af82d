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
	"time"

	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/ps"
	log "github.com/sirupsen/logrus"
)

// Snapshotter takes snapshots by enumerating the system threads, indexing
// the GUI threads and collecting the hooks, in that order.
type Snapshotter struct {
	querier   ps.Querier
	builder   *gui.Builder
	collector *Collector
	retry     RetryPolicy
	now       func() time.Time
}

// NewSnapshotter creates a new snapshotter.
func NewSnapshotter(querier ps.Querier, builder *gui.Builder, collector *Collector, retry RetryPolicy) *Snapshotter {
	return &Snapshotter{
		querier:   querier,
		builder:   builder,
		collector: collector,
		retry:     retry,
		now:       time.Now,
	}
}

// Take resets the store and captures the new snapshot into it. The store
// is valid only if no error is returned.
func (s *Snapshotter) Take(store *Store) error {
	store.Reset()

	err := s.retry.Do(func() error { return s.querier.Query(store.Procs) }, func(err error) {
		log.Debugf("retrying thread enumeration: %v", err)
	})
	if err != nil {
		return fmt.Errorf("couldn't enumerate threads: %w", err)
	}
	store.ThreadsInit = s.now()

	store.Index, err = s.builder.Build(store.Procs)
	if err != nil {
		return fmt.Errorf("couldn't build GUI thread index: %w", err)
	}
	store.IndexInit = s.now()

	if err := s.collector.Collect(store); err != nil {
		return fmt.Errorf("couldn't collect hooks: %w", err)
	}
	store.Init = s.now()

	return nil
}
