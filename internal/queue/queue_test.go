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

package queue

import "testing"

func TestRemoveEntry(t *testing.T) {
	q := New()
	var fired bool
	q.Append(1, true, func() { fired = true })

	cont, ok := q.RemoveEntry(1)
	if !ok {
		t.Fatal("expected entry 1 to be present")
	}
	cont()
	if !fired {
		t.Fatal("continuation was not the one appended")
	}

	if _, ok := q.RemoveEntry(1); ok {
		t.Fatal("expected entry 1 to already be removed")
	}
}

func TestRemoveFastFailingLeavesWaitForReady(t *testing.T) {
	q := New()
	var order []int
	q.Append(1, true, func() { order = append(order, 1) })
	q.Append(2, false, func() { order = append(order, 2) })
	q.Append(3, false, func() { order = append(order, 3) })
	q.Append(4, true, func() { order = append(order, 4) })

	conts := q.RemoveFastFailing()
	if len(conts) != 2 {
		t.Fatalf("expected 2 fast-failing entries, got %d", len(conts))
	}
	for _, c := range conts {
		c()
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 3 {
		t.Fatalf("expected FIFO order [2 3], got %v", order)
	}

	// entries 1 and 4 (wait-for-ready) must still be present.
	if _, ok := q.RemoveEntry(1); !ok {
		t.Fatal("expected entry 1 to survive RemoveFastFailing")
	}
	if _, ok := q.RemoveEntry(4); !ok {
		t.Fatal("expected entry 4 to survive RemoveFastFailing")
	}
}

func TestRemoveAllFIFOOrder(t *testing.T) {
	q := New()
	var order []int
	for i := 1; i <= 5; i++ {
		id := uint64(i)
		n := i
		q.Append(id, n%2 == 0, func() { order = append(order, n) })
	}

	conts := q.RemoveAll()
	if len(conts) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(conts))
	}
	for _, c := range conts {
		c()
	}
	for i, n := range order {
		if n != i+1 {
			t.Fatalf("expected FIFO order 1..5, got %v", order)
		}
	}

	if conts := q.RemoveAll(); len(conts) != 0 {
		t.Fatalf("expected empty queue after RemoveAll, got %d entries", len(conts))
	}
}

func TestAppendDuplicateIDIgnored(t *testing.T) {
	q := New()
	var calls int
	q.Append(1, true, func() { calls++ })
	q.Append(1, true, func() { calls += 100 })

	conts := q.RemoveAll()
	if len(conts) != 1 {
		t.Fatalf("expected duplicate append to be ignored, got %d entries", len(conts))
	}
	conts[0]()
	if calls != 1 {
		t.Fatalf("expected original continuation to be kept, got calls=%d", calls)
	}
}
