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
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rabbitstack/hookmon/internal/bootstrap"
	"github.com/rabbitstack/hookmon/pkg/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var desktopsCmd = &cobra.Command{
	Use:   "desktops",
	Short: "Show the attachable desktops and their heaps",
	RunE:  listDesktops,
}

var desktopsConfig = config.NewWithOpts(config.WithDesktops())

func init() {
	desktopsConfig.MustViperize(desktopsCmd)
}

// listDesktops renders a table with heap bounds of attached desktops.
func listDesktops(cmd *cobra.Command, args []string) error {
	manager, err := bootstrap.AttachDesktops(desktopsConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Warnf("couldn't detach desktops: %v", err)
		}
	}()

	names, err := manager.Enumerate()
	if err != nil {
		log.Warnf("couldn't enumerate desktops: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Desktop", "Heap base", "Heap limit", "Size", "Delta", "Attached"})

	attached := make(map[string]bool)
	for _, h := range manager.Handles() {
		attached[strings.ToLower(h.Name)] = true
		t.AppendRow(table.Row{
			h.Name,
			fmt.Sprintf("0x%x", h.Base),
			fmt.Sprintf("0x%x", h.Limit),
			humanize.IBytes(uint64(h.Size())),
			fmt.Sprintf("0x%x", h.Delta),
			"yes",
		})
	}
	for _, name := range names {
		if attached[strings.ToLower(name)] {
			continue
		}
		t.AppendRow(table.Row{name, "", "", "", "", "no"})
	}
	t.Render()

	return nil
}
