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
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var (
	stringSliceType   = reflect.TypeOf([]string{})
	consoleFormatType = reflect.TypeOf(ConsoleFormat(""))
)

// trimListHook drops blank entries and surrounding spaces from name lists,
// so "WH_MOUSE, WH_KEYBOARD_LL," yields two hook types.
func trimListHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != stringSliceType {
		return data, nil
	}
	var items []string
	switch v := data.(type) {
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return data, nil
			}
			items = append(items, s)
		}
	default:
		return data, nil
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			list = append(list, s)
		}
	}
	return list, nil
}

// formatHook lowercases the console format name.
func formatHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != consoleFormatType || from.Kind() != reflect.String {
		return data, nil
	}
	return strings.ToLower(strings.TrimSpace(reflect.ValueOf(data).String())), nil
}

func decode(input, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			trimListHook,
			formatHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
