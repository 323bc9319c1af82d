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

package app

import (
	"context"

	"github.com/rabbitstack/hookmon/internal/bootstrap"
	"github.com/rabbitstack/hookmon/pkg/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Monitor hooks for changes",
	Aliases: []string{"start"},
	RunE:    run,
	Example: `
	# Report hooks every second
	hookmon run

	# Only watch low-level keyboard and mouse hooks on the Default desktop
	hookmon run --desktops.include=Default --filters.hooks.include=WH_KEYBOARD_LL,WH_MOUSE_LL

	# Ignore hooks set by explorer and emit JSON
	hookmon run --filters.programs.exclude=explorer.exe --output.console.format=json
	`,
}

var (
	// the run command config
	cfg = config.NewWithOpts(config.WithRun())
)

func init() {
	cfg.MustViperize(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	return monitor(cfg)
}

// monitor bootstraps the app and runs the snapshot loop until the
// termination signal is received or the single snapshot completes.
func monitor(c *config.Config) error {
	app, err := bootstrap.NewApp(c, bootstrap.WithSignals(), bootstrap.WithDebugPrivilege())
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			log.Warnf("shutdown failed: %v", err)
		}
	}()
	return app.Run(context.Background())
}
