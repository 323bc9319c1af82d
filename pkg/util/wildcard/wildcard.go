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

// Package wildcard implements the glob-like matching used by the program and
// desktop name filters. The star matches any sequence of characters and the
// question mark matches exactly one character.
package wildcard

import (
	"unicode"
	"unicode/utf8"
)

// Match matches the string against the pattern with case sensitivity.
func Match(pattern, s string) bool {
	return match(pattern, s, func(a, b rune) bool { return a == b })
}

// MatchFold matches the string against the pattern under Unicode case folding.
func MatchFold(pattern, s string) bool {
	return match(pattern, s, equalFold)
}

// IsPattern determines whether the string contains wildcard characters.
func IsPattern(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '*' || s[i] == '?' {
			return true
		}
	}
	return false
}

func match(pattern, s string, eq func(a, b rune) bool) bool {
	var (
		p, i      int
		star      = -1
		backtrack int
	)
	for i < len(s) {
		if p < len(pattern) {
			pr, psize := utf8.DecodeRuneInString(pattern[p:])
			sr, ssize := utf8.DecodeRuneInString(s[i:])
			switch {
			case pr == '*':
				star = p
				backtrack = i
				p += psize
				continue
			case pr == '?' || eq(pr, sr):
				p += psize
				i += ssize
				continue
			}
		}
		if star == -1 {
			return false
		}
		// resume right after the last star, consuming one more rune
		p = star + 1
		_, size := utf8.DecodeRuneInString(s[backtrack:])
		backtrack += size
		i = backtrack
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
