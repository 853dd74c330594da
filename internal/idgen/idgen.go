// Copyright 2022 The codesjoy Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package idgen hands out process-unique identities for subchannels, load
// balancers and request-queue entries.
package idgen

import "sync/atomic"

var counter uint64

// Next returns a monotonically increasing, process-unique id. The first id
// returned is 1; zero is reserved to mean "unset".
func Next() uint64 {
	return atomic.AddUint64(&counter, 1)
}
