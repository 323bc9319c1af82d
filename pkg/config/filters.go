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
	hooksInclude           = "filters.hooks.include"
	hooksExclude           = "filters.hooks.exclude"
	programsInclude        = "filters.programs.include"
	programsExclude        = "filters.programs.exclude"
	ignoreInternal         = "filters.ignore-internal"
	ignoreKnown            = "filters.ignore-known"
	ignoreTargeted         = "filters.ignore-targeted"
	ignoreLockCountChanges = "filters.ignore-lock-count-changes"
	completelyPassive      = "filters.completely-passive"
	ignoreFailedQueries    = "filters.ignore-failed-queries"
)

// ListFilter is the pair of include/exclude lists. An empty include list
// includes everything.
type ListFilter struct {
	Include []string `json:"include" yaml:"include" mapstructure:"include"`
	Exclude []string `json:"exclude" yaml:"exclude" mapstructure:"exclude"`
}

// IsActive determines if any of the lists is populated.
func (l ListFilter) IsActive() bool { return len(l.Include) > 0 || len(l.Exclude) > 0 }

// Filters contains the policy deciding which hooks are reported.
type Filters struct {
	// Hooks filters by hook type name or number.
	Hooks ListFilter `json:"hooks" yaml:"hooks" mapstructure:"hooks"`
	// Programs filters by process name, process id or thread id of any of
	// the threads the hook is attributed to.
	Programs ListFilter `json:"programs" yaml:"programs" mapstructure:"programs"`
	// IgnoreInternal ignores non-global hooks owned, set and targeting the same thread.
	IgnoreInternal bool `json:"ignore-internal" yaml:"ignore-internal" mapstructure:"ignore-internal"`
	// IgnoreKnown ignores hooks whose owner, origin and target are all resolved.
	IgnoreKnown bool `json:"ignore-known" yaml:"ignore-known" mapstructure:"ignore-known"`
	// IgnoreTargeted ignores hooks that have a target thread.
	IgnoreTargeted bool `json:"ignore-targeted" yaml:"ignore-targeted" mapstructure:"ignore-targeted"`
	// IgnoreLockCountChanges doesn't report hooks whose only change is the lock count.
	IgnoreLockCountChanges bool `json:"ignore-lock-count-changes" yaml:"ignore-lock-count-changes" mapstructure:"ignore-lock-count-changes"`
	// CompletelyPassive suppresses all hook notices.
	CompletelyPassive bool `json:"completely-passive" yaml:"completely-passive" mapstructure:"completely-passive"`
	// IgnoreFailedQueries retries the inconsistent hook collection indefinitely.
	IgnoreFailedQueries bool `json:"ignore-failed-queries" yaml:"ignore-failed-queries" mapstructure:"ignore-failed-queries"`
}

func (f *Filters) initFromViper(v *viper.Viper) error {
	// the keys are resolved one by one, since the nested filters map
	// doesn't reflect the flag and env overrides
	m := map[string]interface{}{
		"hooks": map[string]interface{}{
			"include": v.Get(hooksInclude),
			"exclude": v.Get(hooksExclude),
		},
		"programs": map[string]interface{}{
			"include": v.Get(programsInclude),
			"exclude": v.Get(programsExclude),
		},
		"ignore-internal":           v.Get(ignoreInternal),
		"ignore-known":              v.Get(ignoreKnown),
		"ignore-targeted":           v.Get(ignoreTargeted),
		"ignore-lock-count-changes": v.Get(ignoreLockCountChanges),
		"completely-passive":        v.Get(completelyPassive),
		"ignore-failed-queries":     v.Get(ignoreFailedQueries),
	}
	if err := decode(prune(m), f); err != nil {
		return fmt.Errorf("couldn't decode filters: %v", err)
	}
	return nil
}

// prune removes nil values so they don't override decoded fields
func prune(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]interface{}:
			if len(prune(val)) == 0 {
				delete(m, k)
			}
		}
	}
	return m
}

func (f *Filters) addFlags(flags *pflag.FlagSet) {
	flags.StringSlice(hooksInclude, []string{}, "Comma-separated list of hook types (e.g. WH_MOUSE or 7) that are reported")
	flags.StringSlice(hooksExclude, []string{}, "Comma-separated list of hook types that are not reported")
	flags.StringSlice(programsInclude, []string{}, "Comma-separated list of process names, process or thread ids whose hooks are reported")
	flags.StringSlice(programsExclude, []string{}, "Comma-separated list of process names, process or thread ids whose hooks are not reported")
	flags.Bool(ignoreInternal, false, "Ignores non-global hooks owned, set and targeting the same thread")
	flags.Bool(ignoreKnown, false, "Ignores hooks whose owner, origin and target threads are resolved")
	flags.Bool(ignoreTargeted, false, "Ignores hooks that target a specific thread")
	flags.Bool(ignoreLockCountChanges, false, "Doesn't report hooks whose lock count is the only change")
	flags.Bool(completelyPassive, false, "Suppresses all hook notices")
	flags.Bool(ignoreFailedQueries, false, "Retries the inconsistent hook collection indefinitely instead of failing")
}
