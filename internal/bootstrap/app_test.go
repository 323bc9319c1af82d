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

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/desktop"
	"github.com/rabbitstack/hookmon/pkg/diff"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/snapshot"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var desktops = []*desktop.Handle{
	desktop.NewHandle("Default", desktop.Heap{Base: 0xaa000000, Limit: 0xaa100000, Delta: 0xa0000000}),
}

func newConfig(t *testing.T) *config.Config {
	cfg := config.NewWithOpts(config.WithRun())
	cfg.MustViperize(&cobra.Command{})
	require.NoError(t, cfg.Init())
	cfg.Snapshot.Interval = time.Millisecond
	return cfg
}

func hookAt(head uintptr, id hook.ID) hook.Record {
	return hook.Record{
		Entry:  hook.Entry{Head: head, Type: hook.TypeHook},
		Object: hook.Object{Handle: head & 0xffff, ID: id},
	}
}

// snapshotterMock fills the store with the hooks of consecutive cycles. The
// last cycle is repeated.
type snapshotterMock struct {
	cycles [][]hook.Record
	calls  int
	err    error
	// done is invoked after the given number of calls
	done  func()
	after int
}

func (s *snapshotterMock) Take(store *snapshot.Store) error {
	store.Reset()
	s.calls++
	if s.done != nil && s.calls == s.after {
		defer s.done()
	}
	if s.err != nil {
		return s.err
	}
	recs := s.cycles[len(s.cycles)-1]
	if s.calls <= len(s.cycles) {
		recs = s.cycles[s.calls-1]
	}
	d := store.Desktops[0]
	d.Count = copy(d.Hooks, recs)
	hook.Sort(d.Records())
	now := time.Now()
	store.ThreadsInit, store.IndexInit, store.Init = now, now, now
	return nil
}

type outputMock struct {
	kinds   []diff.Kind
	ids     []hook.ID
	flushes int
	closed  bool
}

func (o *outputMock) Notify(e *diff.Event) error {
	o.kinds = append(o.kinds, e.Kind)
	o.ids = append(o.ids, e.Record().Object.ID)
	return nil
}

func (o *outputMock) Flush() error {
	o.flushes++
	return nil
}

func (o *outputMock) Close() error {
	o.closed = true
	return nil
}

type closerMock struct{ closed bool }

func (c *closerMock) Close() error {
	c.closed = true
	return nil
}

func TestRunOnce(t *testing.T) {
	cfg := newConfig(t)
	cfg.Snapshot.Once = true

	snap := &snapshotterMock{cycles: [][]hook.Record{{hookAt(0xaa000200, hook.Mouse), hookAt(0xaa000100, hook.Keyboard)}}}
	out := &outputMock{}
	app := newApp(cfg, desktops, nil, snap, out, nil, opts{})

	require.NoError(t, app.Run(context.Background()))
	assert.Equal(t, 1, snap.calls)
	assert.Equal(t, []diff.Kind{diff.Found, diff.Found}, out.kinds)
	assert.Equal(t, []hook.ID{hook.Keyboard, hook.Mouse}, out.ids)
	assert.Equal(t, 1, out.flushes)
}

func TestRunPolling(t *testing.T) {
	cfg := newConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := &snapshotterMock{
		cycles: [][]hook.Record{
			{hookAt(0xaa000100, hook.Keyboard)},
			{hookAt(0xaa000100, hook.Keyboard), hookAt(0xaa000200, hook.Mouse)},
			{hookAt(0xaa000200, hook.Mouse)},
		},
		done:  cancel,
		after: 4,
	}
	out := &outputMock{}
	closer := &closerMock{}
	app := newApp(cfg, desktops, closer, snap, out, nil, opts{})

	require.NoError(t, app.Run(ctx))
	// the ticker may race with the cancellation
	assert.True(t, snap.calls >= 4)
	assert.Equal(t, []diff.Kind{diff.Found, diff.Added, diff.Removed}, out.kinds)
	assert.Equal(t, []hook.ID{hook.Keyboard, hook.Mouse, hook.Keyboard}, out.ids)

	require.NoError(t, app.Shutdown())
	assert.True(t, out.closed)
	assert.True(t, closer.closed)
}

func TestRunNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		cfg := newConfig(t)
		cfg.Snapshot.Interval = interval

		snap := &snapshotterMock{cycles: [][]hook.Record{{hookAt(0xaa000100, hook.Keyboard)}}}
		app := newApp(cfg, desktops, nil, snap, &outputMock{}, nil, opts{})
		assert.Equal(t, DefaultInterval, app.interval)

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
		assert.NotPanics(t, func() { require.NoError(t, app.Run(ctx)) })
		cancel()
		// the default interval outlasts the deadline
		assert.Equal(t, 1, snap.calls)
	}
}

func TestRunSignal(t *testing.T) {
	cfg := newConfig(t)
	sigs := make(chan struct{}, 1)

	snap := &snapshotterMock{
		cycles: [][]hook.Record{{hookAt(0xaa000100, hook.Keyboard)}},
		done:   func() { sigs <- struct{}{} },
		after:  2,
	}
	app := newApp(cfg, desktops, nil, snap, &outputMock{}, sigs, opts{})
	require.NoError(t, app.Run(context.Background()))
	assert.True(t, snap.calls >= 2)
}

func TestRunCompletelyPassive(t *testing.T) {
	cfg := newConfig(t)
	cfg.Snapshot.Once = true
	cfg.Filters.CompletelyPassive = true

	out := &outputMock{}
	snap := &snapshotterMock{cycles: [][]hook.Record{{hookAt(0xaa000100, hook.Keyboard)}}}
	app := newApp(cfg, desktops, nil, snap, out, nil, opts{})

	require.NoError(t, app.Run(context.Background()))
	assert.Empty(t, out.kinds)
	assert.Equal(t, 0, out.flushes)
}

func TestRunSnapshotFailure(t *testing.T) {
	cfg := newConfig(t)
	snap := &snapshotterMock{err: errors.New("duplicate hook address")}
	app := newApp(cfg, desktops, nil, snap, &outputMock{}, nil, opts{})

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot #1 failed")
}

func TestVerboseStats(t *testing.T) {
	cfg := newConfig(t)
	cfg.Snapshot.Once = true
	cfg.Verbose = true

	var stats bytes.Buffer
	hooks := make([]hook.Record, 0, 1200)
	for i := uintptr(0); i < 1200; i++ {
		hooks = append(hooks, hookAt(0xaa000100+i*0x100, hook.CBT))
	}
	snap := &snapshotterMock{cycles: [][]hook.Record{hooks}}
	o := opts{}
	WithStatsWriter(&stats)(&o)
	app := newApp(cfg, desktops, nil, snap, &outputMock{}, nil, o)

	require.NoError(t, app.Run(context.Background()))
	assert.Contains(t, stats.String(), "snapshot #1:")
	assert.Contains(t, stats.String(), "1,200 hooks collected")
	assert.Contains(t, stats.String(), "Default: 1,200 hooks")
}
