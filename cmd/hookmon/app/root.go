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
	"errors"
	"runtime"

	"github.com/rabbitstack/hookmon/cmd/hookmon/app/config"
	"github.com/spf13/cobra"
)

// RootCmd is the entrance to hookmon CLI
var RootCmd = &cobra.Command{
	Use:   "hookmon",
	Short: "Windows hook enumeration and monitoring",
	Long: `
	hookmon enumerates the windows hooks installed on accessible desktops and
	monitors them for changes. Every hook is attributed to the thread owning
	the hook object, the thread that set the hook and the hooked thread. Hooks
	that appear, disappear or change between consecutive snapshots are reported.
	`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if runtime.GOOS != "windows" {
			return errors.New("hookmon can only be run on Windows operating systems")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(snapshotCmd)
	RootCmd.AddCommand(desktopsCmd)
	RootCmd.AddCommand(config.Command)
	RootCmd.AddCommand(versionCmd)
}
