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
	"fmt"
	"os"

	"github.com/rabbitstack/hookmon/pkg/config"
	"github.com/rabbitstack/hookmon/pkg/util/log"
	"github.com/sirupsen/logrus"
)

// logFile is the name of the rotated log file
const logFile = "hookmon.log"

// InitConfigAndLogger loads the config file, initializes the configuration
// and sets up the logger. The config file is optional. If it doesn't exist
// or can't be parsed, the flag defaults apply and the problem is logged as
// soon as the logger is ready. A config file that parses but breaks the
// schema is fatal.
func InitConfigAndLogger(cfg *config.Config) error {
	file := cfg.File()
	var loadErr error
	if file != "" {
		loadErr = cfg.TryLoadFile(file)
	}
	if err := cfg.Init(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if file != "" && loadErr == nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := log.InitFromConfig(cfg.Log, logFile); err != nil {
		return fmt.Errorf("couldn't initialize the logger: %w", err)
	}
	switch {
	case file == "":
	case loadErr == nil:
		logrus.Infof("loaded configuration from %s", file)
	case os.IsNotExist(loadErr):
		logrus.Debugf("%s config file doesn't exist. Using default settings", file)
	default:
		logrus.Warnf("unable to load configuration from %s file: %v. "+
			"Falling back to default settings...", file, loadErr)
	}
	return nil
}
