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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newFromFile(t *testing.T, file string, args ...string) *Config {
	c := NewWithOpts(WithRun())
	require.NoError(t, c.flags.Parse(append([]string{"--config-file=" + file}, args...)))
	require.NoError(t, c.viper.BindPFlags(c.flags))
	require.NoError(t, c.TryLoadFile(c.File()))
	return c
}

func TestNewFromYamlFile(t *testing.T) {
	c := newFromFile(t, "_fixtures/hookmon.yml")
	require.NoError(t, c.Init())
	require.NoError(t, c.Validate())

	assert.False(t, c.DebugPrivilege)
	assert.Equal(t, []string{"Default"}, c.Desktops.Include)
	assert.Equal(t, []string{"Winlogon"}, c.Desktops.Exclude)

	assert.Equal(t, time.Millisecond*500, c.Snapshot.Interval)
	assert.Equal(t, time.Second*2, c.Snapshot.RetryTimeout)
	assert.Equal(t, time.Millisecond, c.Snapshot.RetryInterval)
	assert.Equal(t, 32768, c.Snapshot.MaxThreads)
	assert.False(t, c.Snapshot.Once)

	assert.Equal(t, []string{"WH_MOUSE", "WH_KEYBOARD_LL"}, c.Filters.Hooks.Include)
	assert.Empty(t, c.Filters.Hooks.Exclude)
	assert.Equal(t, []string{"explorer.exe", "1032"}, c.Filters.Programs.Exclude)
	assert.True(t, c.Filters.Programs.IsActive())
	assert.True(t, c.Filters.IgnoreInternal)
	assert.True(t, c.Filters.IgnoreLockCountChanges)
	assert.False(t, c.Filters.IgnoreKnown)
	assert.False(t, c.Filters.IgnoreFailedQueries)

	assert.Equal(t, JSON, c.Output.Format)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "text", c.Log.Formatter)
	assert.Equal(t, 5, c.Log.MaxBackups)
	assert.Equal(t, 100, c.Log.MaxSize)
}

func TestNewFromJsonFile(t *testing.T) {
	c := newFromFile(t, "_fixtures/hookmon.json")
	require.NoError(t, c.Init())
	require.NoError(t, c.Validate())

	assert.True(t, c.DebugPrivilege)
	assert.Equal(t, time.Second*2, c.Snapshot.Interval)
	assert.True(t, c.Snapshot.Once)
	assert.Equal(t, []string{"WH_CBT"}, c.Filters.Hooks.Exclude)
	assert.False(t, c.Filters.Programs.IsActive())
	assert.True(t, c.Filters.IgnoreKnown)
	assert.True(t, c.Filters.IgnoreFailedQueries)
	assert.Equal(t, Pretty, c.Output.Format)
	assert.Equal(t, "{{ .Kind }} {{ .Desktop }}", c.Output.Template)
}

func TestFlagsOverrideFile(t *testing.T) {
	c := newFromFile(t, "_fixtures/hookmon.yml",
		"--filters.hooks.include=WH_CBT,WH_SHELL",
		"--filters.ignore-targeted",
		"--snapshot.interval=3s",
	)
	require.NoError(t, c.Init())

	assert.Equal(t, []string{"WH_CBT", "WH_SHELL"}, c.Filters.Hooks.Include)
	assert.True(t, c.Filters.IgnoreTargeted)
	// untouched flags keep the file values
	assert.True(t, c.Filters.IgnoreInternal)
	assert.Equal(t, time.Second*3, c.Snapshot.Interval)
}

func TestSnapshotOptions(t *testing.T) {
	c := NewWithOpts(WithSnapshot())
	require.NoError(t, c.flags.Parse([]string{}))
	require.NoError(t, c.viper.BindPFlags(c.flags))
	require.NoError(t, c.Init())

	assert.True(t, c.Snapshot.Once)
	assert.Nil(t, c.flags.Lookup(snapshotInterval))
	assert.NotNil(t, c.flags.Lookup(ignoreKnown))
	assert.Equal(t, time.Second, c.Snapshot.RetryTimeout)
	assert.Equal(t, 65536, c.Snapshot.MaxThreads)

	c = NewWithOpts(WithDesktops())
	assert.Nil(t, c.flags.Lookup(ignoreKnown))
	assert.Nil(t, c.flags.Lookup(snapshotMaxThreads))
	assert.NotNil(t, c.flags.Lookup(desktopsInclude))
}

func TestInvalidFile(t *testing.T) {
	c := newFromFile(t, "_fixtures/invalid.yml")
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestInvalidConsoleFormat(t *testing.T) {
	c := NewWithOpts(WithRun())
	require.NoError(t, c.flags.Parse([]string{"--output.console.format=xml"}))
	require.NoError(t, c.viper.BindPFlags(c.flags))
	require.Error(t, c.Init())
}

func TestNonPositiveIntervals(t *testing.T) {
	var tests = []struct {
		args []string
		flag string
	}{
		{[]string{"--snapshot.interval=0s"}, snapshotInterval},
		{[]string{"--snapshot.interval=-1s"}, snapshotInterval},
		{[]string{"--snapshot.retry-interval=0s"}, snapshotRetryInterval},
	}

	for _, tt := range tests {
		c := NewWithOpts(WithRun())
		require.NoError(t, c.flags.Parse(tt.args))
		require.NoError(t, c.viper.BindPFlags(c.flags))
		err := c.Init()
		require.Error(t, err, tt.args)
		assert.Contains(t, err.Error(), tt.flag)
	}

	// the polling interval is not registered for one-shot snapshots
	c := NewWithOpts(WithSnapshot())
	require.NoError(t, c.flags.Parse([]string{"--snapshot.retry-timeout=0s"}))
	require.NoError(t, c.viper.BindPFlags(c.flags))
	require.NoError(t, c.Init())
}

func TestValidate(t *testing.T) {
	var tests = []struct {
		text  string
		valid bool
		errs  int
	}{
		{text: `snapshot:
                 interval: 1s
                 retry-timeout: 500ms`, valid: true},
		{text: `snapshot:
                 interval: 1
                 retry-timeout: 1s`, valid: false, errs: 1},
		{text: `snapshot:
                 intervl: 1s
                 max-threads: 0`, valid: false, errs: 2},
		{text: `filters:
                 hooks:
                  include:
                   - WH_MOUSE
                 programs:
                  exclude:
                   - explorer.exe
                 ignore-known: true`, valid: true},
		{text: `filters:
                 hooks:
                  include: WH_MOUSE
                 ignore-known: "yes"`, valid: false, errs: 2},
		{text: `output:
                 console:
                  format: xml`, valid: false, errs: 1},
		{text: `desktops:
                 include:
                  - ""`, valid: false, errs: 1},
	}

	for i, tt := range tests {
		var m interface{}
		require.NoError(t, yaml.Unmarshal([]byte(tt.text), &m), i)
		valid, errs := validate(m)
		assert.Equal(t, tt.valid, valid, "%d: %v", i, errs)
		assert.Len(t, errs, tt.errs, "%d: %v", i, errs)
	}
}

func TestPrint(t *testing.T) {
	c := newFromFile(t, "_fixtures/hookmon.yml")
	out := c.Print()
	assert.Contains(t, out, "filters.hooks.include")
	assert.Contains(t, out, "WH_MOUSE,WH_KEYBOARD_LL")
	assert.Contains(t, out, "snapshot.interval")
}

func TestDecodeHooks(t *testing.T) {
	var f Filters
	require.NoError(t, decode(map[string]interface{}{
		"hooks": map[string]interface{}{
			"include": "WH_MOUSE, WH_KEYBOARD_LL,",
			"exclude": []interface{}{" WH_CBT ", ""},
		},
	}, &f))
	assert.Equal(t, []string{"WH_MOUSE", "WH_KEYBOARD_LL"}, f.Hooks.Include)
	assert.Equal(t, []string{"WH_CBT"}, f.Hooks.Exclude)

	var c ConsoleConfig
	require.NoError(t, decode(map[string]interface{}{"format": " JSON"}, &c))
	assert.Equal(t, JSON, c.Format)
}
