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

var schema = `
{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"definitions": {
		"list": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"listfilter": {
			"type": "object",
			"properties": {
				"include": {"$ref": "#/definitions/list"},
				"exclude": {"$ref": "#/definitions/list"}
			},
			"additionalProperties": false
		},
		"duration": {"type": "string", "minLength": 2, "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"}
	},

	"type": "object",
	"properties": {
		"config-file":		{"type": "string"},
		"debug-privilege":	{"type": "boolean"},
		"verbose":			{"type": "boolean"},
		"desktops":			{"$ref": "#/definitions/listfilter"},
		"snapshot": {
			"type": "object",
			"properties": {
				"interval":			{"$ref": "#/definitions/duration"},
				"retry-timeout":	{"$ref": "#/definitions/duration"},
				"retry-interval":	{"$ref": "#/definitions/duration"},
				"max-threads":		{"type": "integer", "minimum": 1, "maximum": 1048576},
				"once":				{"type": "boolean"}
			},
			"additionalProperties": false
		},
		"filters": {
			"type": "object",
			"properties": {
				"hooks": 						{"$ref": "#/definitions/listfilter"},
				"programs": 					{"$ref": "#/definitions/listfilter"},
				"ignore-internal":				{"type": "boolean"},
				"ignore-known":					{"type": "boolean"},
				"ignore-targeted":				{"type": "boolean"},
				"ignore-lock-count-changes":	{"type": "boolean"},
				"completely-passive":			{"type": "boolean"},
				"ignore-failed-queries":		{"type": "boolean"}
			},
			"additionalProperties": false
		},
		"output": {
			"type": "object",
			"properties": {
				"console": {
					"type": "object",
					"properties": {
						"format":	{"type": "string", "enum": ["pretty", "json"]},
						"template":	{"type": "string"},
						"no-color":	{"type": "boolean"}
					},
					"additionalProperties": false
				}
			},
			"additionalProperties": false
		},
		"logging": {
			"type": "object",
			"properties": {
				"level": 			{"type": "string", "enum": ["debug", "info", "warn", "warning", "error", "DEBUG", "INFO", "WARN", "WARNING", "ERROR"]},
				"max-age":			{"type": "integer", "minimum": 0},
				"max-backups":		{"type": "integer", "minimum": 1},
				"max-size":			{"type": "integer", "minimum": 1},
				"formatter":		{"type": "string", "enum": ["json", "text"]},
				"path":				{"type": "string"},
				"log-stdout":		{"type": "boolean"},
				"warn-interval":	{"$ref": "#/definitions/duration"}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}
`
