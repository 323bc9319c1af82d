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
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

func printValue(value interface{}) string {
	if value == nil {
		return ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = fmt.Sprintf("%v", rv.Index(i).Interface())
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprintf("%v", value)
	}
}

// flatten turns the nested settings into dotted keys
func flatten(prefix string, m map[string]interface{}, out map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// Print returns the string with all the config options pretty-printed.
func (c *Config) Print() string {
	opts := make(map[string]interface{})
	flatten("", c.viper.AllSettings(), opts)

	keys := make([]string, 0, len(opts))
	maxKeyLen := 20
	for key := range opts {
		if len(key) > maxKeyLen {
			maxKeyLen = len(key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buffer bytes.Buffer
	for _, key := range keys {
		value := printValue(opts[key])
		if value == "" {
			continue
		}
		buffer.WriteString("\n\t")
		buffer.WriteString(key)
		buffer.WriteString(" ")
		buffer.WriteString(strings.Repeat(".", maxKeyLen-len(key)+5))
		buffer.WriteString(" ")
		buffer.WriteString(value)
	}

	return buffer.String()
}
