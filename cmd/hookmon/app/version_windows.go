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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rabbitstack/hookmon/pkg/sys/offsets"
	"golang.org/x/sys/windows"
)

func osRows() []table.Row {
	v := windows.RtlGetVersion()
	rows := []table.Row{{"OS build", fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)}}
	if _, err := offsets.Current(); err != nil {
		rows = append(rows, table.Row{"Supported", err.Error()})
	} else {
		rows = append(rows, table.Row{"Supported", "yes"})
	}
	return rows
}
