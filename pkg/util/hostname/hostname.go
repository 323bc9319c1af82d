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

package hostname

import (
	"expvar"
	"os"
	"sync"
)

var (
	hostname string
	once     sync.Once
	// hostnameErrors exposes host/fqdn resolution errors
	hostnameErrors = expvar.NewMap("hostname.errors")
)

// Get returns the FQDN of the machine, or the host name if the FQDN can't
// be resolved. The name is resolved once and cached.
func Get() string {
	once.Do(func() {
		name, err := fqdn()
		if err == nil && name != "" {
			hostname = name
			return
		}
		if err != nil {
			hostnameErrors.Add(err.Error(), 1)
		}
		hostname, err = os.Hostname()
		if err != nil {
			hostnameErrors.Add(err.Error(), 1)
			hostname = "unknown"
		}
	})
	return hostname
}
