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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rabbitstack/hookmon/pkg/util/log"
	"github.com/rabbitstack/hookmon/pkg/util/multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configFile     = "config-file"
	debugPrivilege = "debug-privilege"
	verbose        = "verbose"

	desktopsInclude = "desktops.include"
	desktopsExclude = "desktops.exclude"

	snapshotInterval      = "snapshot.interval"
	snapshotRetryTimeout  = "snapshot.retry-timeout"
	snapshotRetryInterval = "snapshot.retry-interval"
	snapshotMaxThreads    = "snapshot.max-threads"
	snapshotOnce          = "snapshot.once"
)

// Config stores configuration options for fine-tuning the behaviour of the hook monitor.
type Config struct {
	// Desktops determines which desktops are attached. If the include list
	// is empty, all desktops of the window station are attached.
	Desktops ListFilter `json:"desktops" yaml:"desktops"`
	// Snapshot contains the settings of the snapshot polling loop.
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	// Filters contains the hook filtering policy.
	Filters Filters `json:"filters" yaml:"filters"`
	// Output contains the console output settings.
	Output ConsoleConfig `json:"output" yaml:"output"`
	// Log contains log-specific configuration options.
	Log log.Config `json:"logging" yaml:"logging"`
	// DebugPrivilege dictates if the SeDebugPrivilege is injected into
	// the process' access token.
	DebugPrivilege bool `json:"debug-privilege" yaml:"debug-privilege"`
	// Verbose enables printing of per-snapshot statistics.
	Verbose bool `json:"verbose" yaml:"verbose"`

	flags *pflag.FlagSet
	viper *viper.Viper
	opts  *Options
}

// SnapshotConfig contains the settings that influence snapshot capturing.
type SnapshotConfig struct {
	// Interval is the time between two consecutive snapshots.
	Interval time.Duration `json:"interval" yaml:"interval"`
	// RetryTimeout bounds the time spent retrying the inconsistent hook collection.
	RetryTimeout time.Duration `json:"retry-timeout" yaml:"retry-timeout"`
	// RetryInterval is the pause between collection retries.
	RetryInterval time.Duration `json:"retry-interval" yaml:"retry-interval"`
	// MaxThreads is the maximum number of indexed GUI threads.
	MaxThreads int `json:"max-threads" yaml:"max-threads"`
	// Once indicates only a single snapshot is taken.
	Once bool `json:"once" yaml:"once"`
}

// validate rejects the durations that would stall or spin the polling loop.
// Only the durations registered for the command are checked.
func (s SnapshotConfig) validate(opts *Options) error {
	if opts.run && s.Interval <= 0 {
		return fmt.Errorf("%s must be positive, got %v", snapshotInterval, s.Interval)
	}
	if !opts.desktops && s.RetryInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %v", snapshotRetryInterval, s.RetryInterval)
	}
	return nil
}

// Options determines which config flags are toggled depending on the command type.
type Options struct {
	run      bool
	snapshot bool
	desktops bool
}

// Option is the type alias for the config option.
type Option func(*Options)

// WithRun determines the monitoring command is executed.
func WithRun() Option {
	return func(o *Options) {
		o.run = true
	}
}

// WithSnapshot determines the one-shot snapshot command is executed.
func WithSnapshot() Option {
	return func(o *Options) {
		o.snapshot = true
	}
}

// WithDesktops determines the desktop listing command is executed.
func WithDesktops() Option {
	return func(o *Options) {
		o.desktops = true
	}
}

// NewWithOpts builds a new configuration store from a variety of sources such as configuration files,
// environment variables or command line flags.
func NewWithOpts(options ...Option) *Config {
	opts := &Options{}

	for _, opt := range options {
		opt(opts)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvPrefix("hookmon")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	c := &Config{
		viper: v,
		flags: new(pflag.FlagSet),
		opts:  opts,
	}

	c.addFlags()

	return c
}

// MustViperize adds the flag set to the Cobra command and binds them within the Viper flags.
func (c *Config) MustViperize(cmd *cobra.Command) {
	cmd.PersistentFlags().AddFlagSet(c.flags)
	if err := c.viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		panic(err)
	}
}

// Init setups the configuration state from Viper.
func (c *Config) Init() error {
	c.Log.InitFromViper(c.viper)

	c.DebugPrivilege = c.viper.GetBool(debugPrivilege)
	c.Verbose = c.viper.GetBool(verbose)

	c.Desktops = ListFilter{
		Include: c.viper.GetStringSlice(desktopsInclude),
		Exclude: c.viper.GetStringSlice(desktopsExclude),
	}

	c.Snapshot = SnapshotConfig{
		Interval:      c.viper.GetDuration(snapshotInterval),
		RetryTimeout:  c.viper.GetDuration(snapshotRetryTimeout),
		RetryInterval: c.viper.GetDuration(snapshotRetryInterval),
		MaxThreads:    c.viper.GetInt(snapshotMaxThreads),
		Once:          c.viper.GetBool(snapshotOnce) || c.opts.snapshot,
	}
	if err := c.Snapshot.validate(c.opts); err != nil {
		return err
	}

	if err := c.Filters.initFromViper(c.viper); err != nil {
		return err
	}
	return c.Output.initFromViper(c.viper)
}

// TryLoadFile attempts to load the configuration file from specified path on the file system.
func (c *Config) TryLoadFile(file string) error {
	c.viper.SetConfigFile(file)
	return c.viper.ReadInConfig()
}

// File returns the config file path.
func (c *Config) File() string { return c.viper.GetString(configFile) }

// Validate ensures that all configuration options provided by user have the expected values. It returns
// a list of validation errors prefixed with the offending configuration property/flag.
func (c *Config) Validate() error {
	file := c.File()
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if err == nil {
			var out interface{}
			switch filepath.Ext(file) {
			case ".yaml", ".yml":
				err = yaml.Unmarshal(b, &out)
			case ".json":
				err = json.Unmarshal(b, &out)
			default:
				return fmt.Errorf("%s is not a supported config file extension", filepath.Ext(file))
			}
			if err != nil {
				return fmt.Errorf("couldn't read the config file: %v", err)
			}
			if out != nil {
				valid, errs := validate(out)
				if !valid || len(errs) > 0 {
					return fmt.Errorf("invalid config: %v", multierror.Wrap(errs...))
				}
			}
		}
	}
	// now validate the Viper config flags
	valid, errs := validate(c.viper.AllSettings())
	if !valid || len(errs) > 0 {
		return fmt.Errorf("invalid config: %v", multierror.Wrap(errs...))
	}
	return nil
}

func (c *Config) addFlags() {
	c.flags.String(configFile, defaultConfigFile(), "Indicates the location of the configuration file")
	c.flags.Bool(debugPrivilege, true, "Dictates if the SeDebugPrivilege is injected into the process' access token")
	c.flags.StringSlice(desktopsInclude, []string{}, "Comma-separated list of desktop names to attach. All desktops of the window station are attached by default")
	c.flags.StringSlice(desktopsExclude, []string{}, "Comma-separated list of desktop names that are not attached")

	if c.opts.desktops {
		c.Log.AddFlags(c.flags)
		return
	}

	c.flags.Int(snapshotMaxThreads, 65536, "Specifies the maximum number of GUI threads indexed per snapshot")
	c.flags.Duration(snapshotRetryTimeout, time.Second, "Determines how long the inconsistent hook collection is retried")
	c.flags.Duration(snapshotRetryInterval, time.Millisecond, "Specifies the pause between hook collection retries")

	if c.opts.run || c.opts.snapshot {
		c.flags.BoolP(verbose, "v", false, "Prints snapshot statistics")
		c.Filters.addFlags(c.flags)
		c.Output.addFlags(c.flags)
	}
	if c.opts.run {
		c.flags.Duration(snapshotInterval, time.Second, "Specifies the time between consecutive snapshots")
		c.flags.Bool(snapshotOnce, false, "Indicates only the initial snapshot is taken")
	}
	c.Log.AddFlags(c.flags)
}

func defaultConfigFile() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join(os.Getenv("PROGRAMFILES"), "hookmon", "config", "hookmon.yml")
	}
	return filepath.Join(filepath.Dir(exe), "..", "config", "hookmon.yml")
}
