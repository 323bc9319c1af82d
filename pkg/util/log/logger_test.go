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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFromConfig(t *testing.T) {
	// the rotated file stays open, so the directory isn't removed afterwards
	dir, err := os.MkdirTemp("", "hookmon-logs")
	require.NoError(t, err)
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	require.Error(t, InitFromConfig(Config{Path: dir, Level: "verbose"}, "hookmon.log"))
	require.NoError(t, InitFromConfig(Config{Path: dir, Level: "info", Formatter: "text", MaxSize: 1}, "hookmon.log"))

	logrus.Info("hookmon initialized")

	b, err := os.ReadFile(filepath.Join(dir, "hookmon.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "hookmon initialized")
	assert.Contains(t, string(b), "session=")
}

func TestSessionHook(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	id := uuid.New()
	logger.AddHook(NewSessionHook(id))

	logger.Warn("duplicate hook objects")

	assert.Contains(t, buf.String(), id.String())
}
