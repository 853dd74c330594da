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

package client

import (
	"log/slog"

	"github.com/codesjoy/grpccore/balancer"
	"github.com/codesjoy/grpccore/utils/xsync"
)

// serviceConfigAttrKey is the resolver.State attribute key a resolver
// implementation uses to carry a *ServiceConfig alongside its endpoints.
const serviceConfigAttrKey = "service_config"

// lbGeneration identifies one balancer instance for the lifetime of the
// channel. onBalancerUpdateState uses pointer identity to tell a picker
// update coming from the current or next balancer apart from one coming from
// a balancer that has already been replaced.
type lbGeneration struct {
	name string
}

// lbSlot pairs a running balancer with the generation token its
// balancerClient adapter was built with.
type lbSlot struct {
	name string
	lb   balancer.Balancer
	gen  *lbGeneration
}

// switchBalancer is a no-op if name already names the current or
// next-in-line balancer. Otherwise it builds a new balancer instance for
// name and installs it as lbNext, running in parallel with lbCurrent until
// it produces its first picker (see onBalancerUpdateState). The very first
// balancer a channel ever creates is installed directly as current, since
// there is nothing yet to switch from. Replacing an lbNext that never made
// it to current closes it immediately; it never served traffic.
func (c *client) switchBalancer(name string) error {
	c.lbMu.Lock()
	defer c.lbMu.Unlock()

	if c.lbCurrent != nil && c.lbCurrent.name == name {
		return nil
	}
	if c.lbNext != nil && c.lbNext.name == name {
		return nil
	}

	builder, err := balancer.GetBuilder(name)
	if err != nil {
		return err
	}
	gen := &lbGeneration{name: name}
	lb, err := builder(c.appName, &balancerClient{
		cli:        c,
		gen:        gen,
		serializer: xsync.NewCallbackSerializer(c.ctx),
	})
	if err != nil {
		return err
	}
	slot := &lbSlot{name: name, lb: lb, gen: gen}

	if c.lbCurrent == nil {
		c.lbCurrent = slot
		return nil
	}

	if c.lbNext != nil {
		stale := c.lbNext
		go func() {
			if err := stale.lb.Close(); err != nil {
				slog.Warn("superseded balancer close failed", "name", stale.name, "err", err)
			}
		}()
	}
	c.lbNext = slot
	return nil
}

// onBalancerUpdateState routes a picker update from gen to the global
// picker, promoting lbNext to lbCurrent the first time the warming-up
// balancer reports one. A gen matching neither slot belongs to a balancer
// that has already been superseded and is dropped.
func (c *client) onBalancerUpdateState(gen *lbGeneration, state balancer.State) {
	c.lbMu.Lock()
	switch {
	case c.lbCurrent != nil && c.lbCurrent.gen == gen:
		c.lbMu.Unlock()
		c.updatePicker(state.Picker)
	case c.lbNext != nil && c.lbNext.gen == gen:
		old := c.lbCurrent
		c.lbCurrent = c.lbNext
		c.lbNext = nil
		c.lbMu.Unlock()
		if old != nil {
			if err := old.lb.Close(); err != nil {
				slog.Warn("replaced balancer close failed", "name", old.name, "err", err)
			}
		}
		c.updatePicker(state.Picker)
	default:
		c.lbMu.Unlock()
	}
}
