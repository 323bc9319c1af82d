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
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	consoleFormat   = "output.console.format"
	consoleTemplate = "output.console.template"
	consoleNoColor  = "output.console.no-color"
)

// ConsoleFormat is the format of the hook notices.
type ConsoleFormat string

const (
	// Pretty renders notices through the template.
	Pretty ConsoleFormat = "pretty"
	// JSON renders notices as JSON documents.
	JSON ConsoleFormat = "json"
)

// ConsoleConfig contains the tweaks that influence the behaviour of the console output.
type ConsoleConfig struct {
	Format   ConsoleFormat `json:"format" yaml:"format" mapstructure:"format"`
	Template string        `json:"template" yaml:"template" mapstructure:"template"`
	NoColor  bool          `json:"no-color" yaml:"no-color" mapstructure:"no-color"`
}

func (c *ConsoleConfig) initFromViper(v *viper.Viper) error {
	m := prune(map[string]interface{}{
		"format":   v.Get(consoleFormat),
		"template": v.Get(consoleTemplate),
		"no-color": v.Get(consoleNoColor),
	})
	if err := decode(m, c); err != nil {
		return fmt.Errorf("console output invalid config: %v", err)
	}
	if c.Format == "" {
		c.Format = Pretty
	}
	switch c.Format {
	case Pretty, JSON:
	default:
		return fmt.Errorf("console output invalid config: unknown format %q", c.Format)
	}
	return nil
}

func (c *ConsoleConfig) addFlags(flags *pflag.FlagSet) {
	flags.String(consoleFormat, string(Pretty), "Specifies the hook notice format. Choose between pretty|json")
	flags.String(consoleTemplate, "", "Hook notice formatting template")
	flags.Bool(consoleNoColor, false, "Disables colored hook notices")
}
