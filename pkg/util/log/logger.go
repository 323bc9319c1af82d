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

package log

import (
	"errors"
	"expvar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rabbitstack/hookmon/pkg/util/log/rotate"
	fs "github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

var loggerErrors = expvar.NewMap("logger.errors")

// InitFromConfig initializes the Logrus standard logger from config options.
// Log lines are written to the file with the given name inside the logs
// directory. Every entry is tagged with the session identifier.
func InitFromConfig(c Config, filename string) error {
	path := c.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return errors.New("got an empty logs directory path")
		}
		path = filepath.Join(filepath.Dir(exe), "logs")
	}
	if _, err := os.Stat(path); err != nil {
		if err := os.MkdirAll(path, os.ModePerm); err != nil {
			return fmt.Errorf("unable to create the %s logs directory: %v", path, err)
		}
	}
	file := filepath.Join(path, filename)

	var formatter logrus.Formatter
	switch c.Formatter {
	case "text":
		formatter = &logrus.TextFormatter{}
	default:
		formatter = &logrus.JSONFormatter{}
	}
	logrus.SetFormatter(formatter)

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if !c.LogStdout {
		logrus.SetOutput(io.Discard)
	} else {
		logrus.SetOutput(os.Stderr)
	}

	logrus.AddHook(NewSessionHook(uuid.New()))

	rhook, err := rotate.NewHook(rotate.Config{
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		MaxSize:    c.MaxSize,
		Level:      level,
		Formatter:  formatter,
		Filename:   file,
	})
	if err != nil {
		loggerErrors.Add(err.Error(), 1)
		// fallback on plain file hook
		pathMap := make(fs.PathMap)
		for _, lvl := range logrus.AllLevels {
			pathMap[lvl] = file
		}
		logrus.AddHook(fs.NewHook(pathMap, formatter))
		logrus.Warnf("unable to initialize rotate file hook: %v", err)
		return nil
	}
	logrus.AddHook(rhook)

	return nil
}

// SessionHook tags every log entry with the identifier of the current run.
type SessionHook struct {
	id uuid.UUID
}

// NewSessionHook creates the session hook for the given identifier.
func NewSessionHook(id uuid.UUID) *SessionHook { return &SessionHook{id: id} }

// ID returns the session identifier.
func (h *SessionHook) ID() uuid.UUID { return h.id }

// Levels returns all log levels.
func (h *SessionHook) Levels() []logrus.Level { return logrus.AllLevels }

// Fire adds the session field to the entry.
func (h *SessionHook) Fire(e *logrus.Entry) error {
	e.Data["session"] = h.id.String()
	return nil
}
