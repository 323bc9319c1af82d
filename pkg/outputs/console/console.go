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

package console

import (
	"bufio"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/diff"
)

var consoleErrors = expvar.NewInt("output.console.errors")

// Template is the default template used in pretty rendering mode.
const Template = `{{ .Timestamp | date "2006-01-02 15:04:05.000" }} {{ kind .Kind }} [{{ .Desktop }}] {{ .Hook.ID }} {{ .Hook.Handle }} at {{ .Hook.Address }}` +
	`{{ if .Hook.Global }} global{{ end }} owner: {{ .Hook.Owner }} origin: {{ .Hook.Origin }} target: {{ .Hook.Target }}` +
	`{{ if .Changes }} ({{ join ", " .Changes }}){{ end }}`

// Console writes hook notices to the terminal or any other writer.
type Console struct {
	writer *bufio.Writer
	format config.ConsoleFormat
	tmpl   *template.Template
	enc    *json.Encoder
	colors map[diff.Kind]*color.Color
}

// New creates the console notifier that writes to standard output.
func New(c config.ConsoleConfig) (*Console, error) {
	return NewWithWriter(c, colorable.NewColorableStdout())
}

// NewWithWriter creates the console notifier that writes to the given writer.
func NewWithWriter(c config.ConsoleConfig, w io.Writer) (*Console, error) {
	console := &Console{
		writer: bufio.NewWriterSize(w, 8*1024),
		format: c.Format,
		colors: map[diff.Kind]*color.Color{
			diff.Found:    color.New(color.FgCyan),
			diff.Added:    color.New(color.FgGreen, color.Bold),
			diff.Removed:  color.New(color.FgRed, color.Bold),
			diff.Modified: color.New(color.FgYellow, color.Bold),
		},
	}
	if c.NoColor {
		for _, col := range console.colors {
			col.DisableColor()
		}
	}

	switch c.Format {
	case config.JSON:
		console.enc = json.NewEncoder(console.writer)
	case config.Pretty, "":
		console.format = config.Pretty
		text := c.Template
		if text == "" {
			text = Template
		}
		funcmap := sprig.TxtFuncMap()
		funcmap["kind"] = console.kind
		tmpl, err := template.New("notice").Funcs(funcmap).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid console template: %v", err)
		}
		console.tmpl = tmpl
	default:
		return nil, fmt.Errorf("unknown console format %q", c.Format)
	}

	return console, nil
}

func (c *Console) kind(s string) string {
	for k, col := range c.colors {
		if k.String() == s {
			return col.Sprint(s)
		}
	}
	return s
}

// Notify renders the diff event. The output is buffered until Flush is called.
func (c *Console) Notify(e *diff.Event) error {
	n := newNotice(e)
	switch c.format {
	case config.JSON:
		if err := c.enc.Encode(n); err != nil {
			consoleErrors.Add(1)
			return err
		}
	default:
		if err := c.tmpl.Execute(c.writer, n); err != nil {
			consoleErrors.Add(1)
			return err
		}
		if err := c.writer.WriteByte('\n'); err != nil {
			consoleErrors.Add(1)
			return err
		}
	}
	return nil
}

// Flush writes the buffered notices.
func (c *Console) Flush() error {
	if err := c.writer.Flush(); err != nil {
		consoleErrors.Add(1)
		return err
	}
	return nil
}

// Close flushes pending notices.
func (c *Console) Close() error { return c.Flush() }
