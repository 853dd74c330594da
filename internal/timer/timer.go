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

// Package timer provides a scoped timer that replaces its own prior
// scheduling, used for the idle and keepalive timers on the Connection
// Lifecycle Machine.
package timer

import (
	"sync"
	"time"
)

// Timer schedules a single task at a time. Scheduling again before the
// previous task has fired cancels it; Cancel is idempotent and safe to call
// from any goroutine, including from within the scheduled task itself.
type Timer struct {
	mu sync.Mutex
	t  *time.Timer
}

// New returns a Timer with nothing scheduled.
func New() *Timer {
	return &Timer{}
}

// Schedule replaces any prior scheduling with a new one that runs task
// after delay.
func (s *Timer) Schedule(delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t != nil {
		s.t.Stop()
	}
	s.t = time.AfterFunc(delay, task)
}

// Cancel stops any pending task. It is a no-op if nothing is scheduled or
// the task has already fired.
func (s *Timer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}
