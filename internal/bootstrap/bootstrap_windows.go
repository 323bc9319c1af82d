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
	"os"

	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/desktop"
	"github.com/rabbitstack/hookmon/pkg/gui"
	"github.com/rabbitstack/hookmon/pkg/hook"
	"github.com/rabbitstack/hookmon/pkg/outputs/console"
	"github.com/rabbitstack/hookmon/pkg/ps"
	"github.com/rabbitstack/hookmon/pkg/snapshot"
	"github.com/rabbitstack/hookmon/pkg/sys"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
	"github.com/rabbitstack/hookmon/pkg/util/multierror"
	"github.com/rabbitstack/hookmon/pkg/util/signals"
	"github.com/rabbitstack/hookmon/pkg/util/spinner"
	log "github.com/sirupsen/logrus"
)

// NewApp constructs a new bootstrap application with the specified configuration
// and a list of options. The configuration is passed from individual command work
// functions. Desktops are attached before NewApp returns.
func NewApp(cfg *config.Config, options ...Option) (*App, error) {
	if err := InitConfigAndLogger(cfg); err != nil {
		return nil, err
	}
	var opts opts
	var sigs chan struct{}
	for _, opt := range options {
		opt(&opts)
	}
	if cfg.DebugPrivilege && opts.setDebugPrivilege {
		if err := sys.SetDebugPrivilege(); err != nil {
			log.Warnf("couldn't enable debug privilege: %v", err)
		}
	}
	if opts.installSignals {
		sigs = signals.Install()
	}

	o, err := offsets.Current()
	if err != nil {
		return nil, err
	}
	filter, err := hook.NewFilter(cfg.Filters)
	if err != nil {
		return nil, err
	}
	output, err := console.New(cfg.Output)
	if err != nil {
		return nil, err
	}

	manager, err := attachDesktops(cfg, o)
	if err != nil {
		return nil, err
	}
	table, err := snapshot.OpenHandleTable(o)
	if err != nil {
		return nil, multierror.Wrap(err, manager.Close())
	}

	retry := snapshot.RetryPolicy{
		Timeout:  cfg.Snapshot.RetryTimeout,
		Interval: cfg.Snapshot.RetryInterval,
		Forever:  cfg.Filters.IgnoreFailedQueries,
	}
	snapshotter := snapshot.NewSnapshotter(
		ps.NewQuerier(),
		gui.NewBuilder(gui.NewSource(), o, cfg.Snapshot.MaxThreads),
		snapshot.NewCollector(table, sys.CurrentProcessReader(), o.PtrSize, filter, retry),
		retry,
	)

	return newApp(cfg, manager.Handles(), manager, snapshotter, output, sigs, opts), nil
}

// AttachDesktops initializes the configuration and attaches to the desktops
// it selects. The caller is responsible for closing the manager.
func AttachDesktops(cfg *config.Config) (*desktop.Manager, error) {
	if err := InitConfigAndLogger(cfg); err != nil {
		return nil, err
	}
	o, err := offsets.Current()
	if err != nil {
		return nil, err
	}
	return attachDesktops(cfg, o)
}

// attachDesktops attaches to the desktops selected by the configuration while
// showing the progress in the terminal.
func attachDesktops(cfg *config.Config, o *offsets.Offsets) (*desktop.Manager, error) {
	spin := spinner.Show(os.Stderr, "Attaching desktops")
	manager := desktop.NewManager(desktop.NewAttacher(o))
	manager.OnAttach = func(name string, err error) {
		if name == "" {
			name = "current"
		}
		if err != nil {
			log.Warnf("couldn't attach to %s desktop: %v", name, err)
			return
		}
		spin.Update(name)
	}
	if err := manager.Setup(cfg.Desktops); err != nil {
		spin.Stop("")
		return nil, multierror.Wrap(err, manager.Close())
	}
	spin.Stop("")
	return manager, nil
}
