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

// Package queue holds RPCs that are blocked waiting for a pick to become
// available, so that they can be bulk-cancelled (on channel close) or
// selectively failed (when a non-wait-for-ready RPC should not survive a
// transient-failure picker) without relying on each caller's own context
// deadline.
package queue

import "sync"

// Continuation is resumed out-of-band when its queue entry is removed by
// something other than the caller that appended it.
type Continuation func()

type entry struct {
	waitForReady bool
	cont         Continuation
}

// Queue is a FIFO of pending pick continuations keyed by id.
type Queue struct {
	mu      sync.Mutex
	order   []uint64
	entries map[uint64]entry
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{entries: make(map[uint64]entry)}
}

// Append inserts a continuation at the back of the queue under id. id must
// not already be present.
func (q *Queue) Append(id uint64, waitForReady bool, cont Continuation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; ok {
		return
	}
	q.order = append(q.order, id)
	q.entries[id] = entry{waitForReady: waitForReady, cont: cont}
}

// RemoveEntry removes and returns the continuation registered under id. The
// caller uses this to unregister itself once its own pick resolves normally;
// the bool is false if id was already removed (e.g. by RemoveAll).
func (q *Queue) RemoveEntry(id uint64) (Continuation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return nil, false
	}
	q.deleteLocked(id)
	return e.cont, true
}

// RemoveFastFailing removes and returns, in FIFO order, every entry that was
// appended with waitForReady false.
func (q *Queue) RemoveFastFailing() []Continuation {
	q.mu.Lock()
	defer q.mu.Unlock()
	var conts []Continuation
	var remaining []uint64
	for _, id := range q.order {
		e := q.entries[id]
		if e.waitForReady {
			remaining = append(remaining, id)
			continue
		}
		conts = append(conts, e.cont)
		delete(q.entries, id)
	}
	q.order = remaining
	return conts
}

// RemoveAll removes every entry and returns their continuations in FIFO
// order.
func (q *Queue) RemoveAll() []Continuation {
	q.mu.Lock()
	defer q.mu.Unlock()
	conts := make([]Continuation, 0, len(q.order))
	for _, id := range q.order {
		conts = append(conts, q.entries[id].cont)
	}
	q.order = nil
	q.entries = make(map[uint64]entry)
	return conts
}

func (q *Queue) deleteLocked(id uint64) {
	delete(q.entries, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
