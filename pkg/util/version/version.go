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

package version

import (
	"fmt"
	"io"
	"runtime"

	semver "github.com/hashicorp/go-version"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Info describes the build that produced the binary.
type Info struct {
	// Version is the parsed release version. It is nil for dev builds.
	Version *semver.Version
	Commit  string
	Date    string
}

var build string

// Set initializes the build version string.
func Set(v string) { build = v }

// Get returns the version string.
func Get() string {
	if IsDev() {
		return "dev"
	}
	return build
}

// IsDev determines if this is a dev build.
func IsDev() bool { return build == "" || build == "0.0.0" }

// New parses the version string and returns the build information.
func New(v, commit, date string) (Info, error) {
	info := Info{Commit: commit, Date: date}
	if v == "" || v == "0.0.0" {
		return info, nil
	}
	ver, err := semver.NewSemver(v)
	if err != nil {
		return info, fmt.Errorf("invalid release version %q: %v", v, err)
	}
	info.Version = ver
	return info, nil
}

// String returns the release version or dev for unreleased builds.
func (i Info) String() string {
	if i.Version == nil {
		return "dev"
	}
	return i.Version.String()
}

// Render writes the build information table to the writer. Extra rows are
// appended after the separator.
func (i Info) Render(w io.Writer, extra ...table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Version", i.String()})
	t.AppendRow(table.Row{"Commit", i.Commit})
	t.AppendRow(table.Row{"Build date", i.Date})

	t.AppendSeparator()

	t.AppendRow(table.Row{"Go compiler", runtime.Version()})
	t.AppendRow(table.Row{"Architecture", runtime.GOARCH})
	for _, row := range extra {
		t.AppendRow(row)
	}

	t.Render()
}
