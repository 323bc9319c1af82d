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

// Package multierror aggregates multiple errors into a single error value.
package multierror

import "strings"

// Error holds a list of errors.
type Error struct {
	errs []error
}

// Wrap combines the non-nil errors into a single error. It returns nil if
// none of the errors is set, or the error itself when there is only one.
func Wrap(errs ...error) error {
	var e Error
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		return &e
	}
}

// Error joins the error messages.
func (e *Error) Error() string {
	if len(e.errs) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, err := range e.errs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns the aggregated errors so errors.Is and errors.As can
// inspect every one of them.
func (e *Error) Unwrap() []error { return e.errs }

// Errors returns the aggregated errors.
func (e *Error) Errors() []error { return e.errs }
