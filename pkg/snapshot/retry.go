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

package snapshot

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy dictates how the inconsistent snapshot stages are retried.
type RetryPolicy struct {
	// Timeout bounds the time spent retrying.
	Timeout time.Duration
	// Interval is the pause between attempts. Non-positive values fall back
	// to the default interval.
	Interval time.Duration
	// Forever keeps retrying until the operation succeeds or fails permanently.
	Forever bool
	// Clock measures the elapsed time. The system clock is used if nil.
	Clock backoff.Clock
}

// DefaultRetryPolicy retries for one second with one millisecond pauses.
var DefaultRetryPolicy = RetryPolicy{Timeout: time.Second, Interval: time.Millisecond}

func (p RetryPolicy) backoff() backoff.BackOff {
	if p.Timeout <= 0 && !p.Forever {
		return &backoff.StopBackOff{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultRetryPolicy.Interval
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = interval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = p.Timeout
	if p.Forever {
		b.MaxElapsedTime = 0
	}
	if p.Clock != nil {
		b.Clock = p.Clock
	}
	b.Reset()
	return b
}

// Do runs the operation until it succeeds, fails permanently or the retry
// window elapses. The notify function is called on every failed attempt
// that is going to be retried.
func (p RetryPolicy) Do(op func() error, notify func(error)) error {
	return backoff.RetryNotify(op, p.backoff(), func(err error, _ time.Duration) {
		if notify != nil {
			notify(err)
		}
	})
}
