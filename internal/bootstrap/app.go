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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/desktop"
	"github.com/rabbitstack/hookmon/pkg/diff"
	kerrors "github.com/rabbitstack/hookmon/pkg/errors"
	"github.com/rabbitstack/hookmon/pkg/ps"
	"github.com/rabbitstack/hookmon/pkg/snapshot"
	"github.com/rabbitstack/hookmon/pkg/util/multierror"
	"github.com/rabbitstack/hookmon/pkg/util/version"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrUnsupportedOS is returned when the app is bootstrapped outside of Windows.
// DefaultInterval replaces a non-positive polling interval.
const DefaultInterval = time.Second

var ErrUnsupportedOS = errors.New("hookmon can only be run on Windows operating systems")

// Snapshotter captures the hooks of attached desktops into the store.
type Snapshotter interface {
	Take(store *snapshot.Store) error
}

// Output is the sink of hook notices.
type Output interface {
	diff.Notifier
	Flush() error
	Close() error
}

// Option enables changing the behaviour of the bootstrap application.
type Option func(*opts)

type opts struct {
	setDebugPrivilege bool
	installSignals    bool
	stats             io.Writer
}

// WithSignals installs signal handlers.
func WithSignals() Option {
	return func(o *opts) {
		o.installSignals = true
	}
}

// WithDebugPrivilege injects the SeDebugPrivilege in the process access token.
func WithDebugPrivilege() Option {
	return func(o *opts) {
		o.setDebugPrivilege = true
	}
}

// WithStatsWriter sets the writer of verbose snapshot statistics. Statistics
// go to the standard error by default.
func WithStatsWriter(w io.Writer) Option {
	return func(o *opts) {
		o.stats = w
	}
}

// App ties together desktop attachment, the snapshot polling loop, the
// differ and the output. Two snapshot stores are alternated, so the current
// snapshot is always compared against the previous one.
type App struct {
	config      *config.Config
	closer      io.Closer
	snapshotter Snapshotter
	differ      *diff.Differ
	output      Output
	prev, cur   *snapshot.Store
	warns       *rate.Limiter
	signals     chan struct{}
	stats       io.Writer
	cycles      int
	interval    time.Duration
}

func newApp(cfg *config.Config, desktops []*desktop.Handle, closer io.Closer, snapshotter Snapshotter, output Output, sigs chan struct{}, o opts) *App {
	warnInterval := cfg.Log.WarnInterval
	if warnInterval <= 0 {
		warnInterval = time.Second * 30
	}
	interval := cfg.Snapshot.Interval
	if interval <= 0 {
		log.Warnf("snapshot interval %v is not positive. Using %v", interval, DefaultInterval)
		interval = DefaultInterval
	}
	stats := o.stats
	if stats == nil {
		stats = os.Stderr
	}
	return &App{
		config:      cfg,
		closer:      closer,
		snapshotter: snapshotter,
		differ:      diff.NewDiffer(cfg.Filters),
		output:      output,
		prev:        snapshot.New(desktops, ps.Extended),
		cur:         snapshot.New(desktops, ps.Extended),
		interval:    interval,
		warns:       rate.NewLimiter(rate.Every(warnInterval), 1),
		signals:     sigs,
		stats:       stats,
	}
}

// Run takes snapshots until the context is canceled, the termination signal
// arrives or the fatal error occurs. If the single snapshot is requested,
// Run returns after the first snapshot is reported.
func (a *App) Run(ctx context.Context) error {
	log.Infof("bootstrapping with pid %d. Version: %s", os.Getpid(), version.Get())
	log.Infof("configuration dump %s", a.config.Print())

	if err := a.cycle(); err != nil {
		return err
	}
	if a.config.Snapshot.Once {
		return nil
	}

	tick := time.NewTicker(a.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.signals:
			return nil
		case <-tick.C:
			if err := a.cycle(); err != nil {
				return err
			}
		}
	}
}

// cycle takes the snapshot into the current store, reports differences from
// the previous one and swaps the stores.
func (a *App) cycle() error {
	a.cycles++
	start := time.Now()
	if err := a.snapshotter.Take(a.cur); err != nil {
		return fmt.Errorf("snapshot #%d failed: %w", a.cycles, err)
	}
	if a.config.Verbose {
		a.printStats(start)
	}
	if !a.config.Filters.CompletelyPassive {
		if err := a.differ.Compare(a.prev, a.cur, a.output); err != nil {
			if errors.Is(err, kerrors.ErrDesktopMismatch) {
				return err
			}
			a.warn("couldn't deliver hook notices: %v", err)
		}
		if err := a.output.Flush(); err != nil {
			a.warn("couldn't flush hook notices: %v", err)
		}
	}
	a.prev, a.cur = a.cur, a.prev
	return nil
}

func (a *App) warn(format string, args ...interface{}) {
	if a.warns.Allow() {
		log.Warnf(format, args...)
	}
}

func (a *App) printStats(start time.Time) {
	s := a.cur
	procs := s.Procs
	_, _ = fmt.Fprintf(a.stats, "snapshot #%s: %s processes, %s threads (%s buffer) enumerated in %v\n",
		humanize.Comma(int64(a.cycles)),
		humanize.Comma(int64(len(procs.Procs))),
		humanize.Comma(int64(procs.ThreadCount())),
		humanize.Bytes(uint64(procs.BufferSize())),
		s.ThreadsInit.Sub(start).Round(time.Microsecond))
	capped := ""
	if s.Index.Truncated() {
		capped = ", capped"
	}
	_, _ = fmt.Fprintf(a.stats, "  %s GUI threads (%d ambiguous%s) indexed in %v\n",
		humanize.Comma(int64(s.Index.Len())), s.Index.Duplicates(), capped,
		s.IndexInit.Sub(s.ThreadsInit).Round(time.Microsecond))
	_, _ = fmt.Fprintf(a.stats, "  %s hooks collected in %v\n",
		humanize.Comma(int64(s.HookCount())), s.Init.Sub(s.IndexInit).Round(time.Microsecond))
	for _, d := range s.Desktops {
		_, _ = fmt.Fprintf(a.stats, "    %s: %s hooks", d.Name(), humanize.Comma(int64(d.Count)))
		if d.Truncated > 0 {
			_, _ = fmt.Fprintf(a.stats, " (%d truncated)", d.Truncated)
		}
		_, _ = fmt.Fprintln(a.stats)
	}
}

// Wait waits for the app to receive the termination signal.
func (a *App) Wait() {
	if a.signals != nil {
		<-a.signals
	}
}

// Shutdown flushes the output and detaches from desktops.
func (a *App) Shutdown() error {
	errs := make([]error, 0)
	if a.output != nil {
		if err := a.output.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return multierror.Wrap(errs...)
}
