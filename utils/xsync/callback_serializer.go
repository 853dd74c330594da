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

package xsync

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// CallbackSerializer provides a mechanism to schedule callbacks in a
// synchronized manner. Callbacks scheduled via a call to ScheduleOr() are
// executed in the order they were scheduled, on a single goroutine owned by
// the serializer. ScheduleOr() can be called concurrently.
type CallbackSerializer struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	callbacks []func(context.Context)
	wakeup    chan struct{}
	closed    bool
}

// NewCallbackSerializer returns a new CallbackSerializer. Once ctx is
// cancelled no new callbacks are accepted. The Done() channel closes when ctx
// is cancelled; callbacks scheduled before that may still be running.
func NewCallbackSerializer(ctx context.Context) *CallbackSerializer {
	cbCtx, cancel := context.WithCancel(ctx)
	cs := &CallbackSerializer{
		ctx:    cbCtx,
		cancel: cancel,
		wakeup: make(chan struct{}, 1),
	}
	go cs.run()
	return cs
}

// ScheduleOr schedules f to be run on the serializer. If the serializer has
// already been closed, onSchedFail is run instead, from the caller's
// goroutine. ScheduleOr returns true if f was scheduled to run.
func (cs *CallbackSerializer) ScheduleOr(f func(ctx context.Context), onSchedFail func()) bool {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		onSchedFail()
		return false
	}
	cs.callbacks = append(cs.callbacks, f)
	cs.mu.Unlock()

	select {
	case cs.wakeup <- struct{}{}:
	default:
	}
	return true
}

func (cs *CallbackSerializer) run() {
	defer cs.cancel()
	for {
		cs.mu.Lock()
		if len(cs.callbacks) == 0 {
			cs.mu.Unlock()
			select {
			case <-cs.wakeup:
				continue
			case <-cs.ctx.Done():
				cs.mu.Lock()
				cs.closed = true
				cs.mu.Unlock()
				return
			}
		}
		cb := cs.callbacks[0]
		cs.callbacks = cs.callbacks[1:]
		cs.mu.Unlock()

		cs.runCallback(cb)

		select {
		case <-cs.ctx.Done():
			cs.mu.Lock()
			cs.closed = true
			remaining := cs.callbacks
			cs.callbacks = nil
			cs.mu.Unlock()
			for _, cb := range remaining {
				cs.runCallback(cb)
			}
			return
		default:
		}
	}
}

func (cs *CallbackSerializer) runCallback(cb func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("callback serializer: callback panic",
				slog.Any("msg", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	cb(cs.ctx)
}

// Done returns a channel that is closed once the serializer's context is
// cancelled. It does not wait for callbacks scheduled before the
// cancellation to finish.
func (cs *CallbackSerializer) Done() <-chan struct{} {
	return cs.ctx.Done()
}
