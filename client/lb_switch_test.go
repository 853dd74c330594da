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
	"context"
	"testing"

	"github.com/codesjoy/grpccore/balancer"
	"github.com/codesjoy/grpccore/resolver"
)

// fakeBalancer never produces a picker on its own; the test drives
// onBalancerUpdateState directly to simulate one becoming ready.
type fakeBalancer struct {
	name string
}

func newFakeBalancerBuilder(policyName string) balancer.Builder {
	return func(_ string, _ balancer.Client) (balancer.Balancer, error) {
		return &fakeBalancer{name: policyName}, nil
	}
}

func (b *fakeBalancer) UpdateState(resolver.State) {}
func (b *fakeBalancer) Close() error                { return nil }
func (b *fakeBalancer) Name() string                { return b.name }

type fakePicker struct{}

func (fakePicker) Next(balancer.RPCInfo) (balancer.PickResult, error) {
	return nil, balancer.ErrNoAvailableInstance
}

func newSwitchTestClient() *client {
	c := &client{appName: "test-app"}
	c.ctx = context.Background()
	c.pickerSnap.Store(&pickerSnap{blockingCh: make(chan struct{})})
	return c
}

func TestSwitchBalancerInstallsFirstAsCurrent(t *testing.T) {
	balancer.RegisterBuilder("test-lb-first", newFakeBalancerBuilder("test-lb-first"))
	c := newSwitchTestClient()

	if err := c.switchBalancer("test-lb-first"); err != nil {
		t.Fatalf("switchBalancer: %v", err)
	}
	if c.lbCurrent == nil || c.lbCurrent.name != "test-lb-first" {
		t.Fatalf("expected the first balancer installed directly as current, got %+v", c.lbCurrent)
	}
	if c.lbNext != nil {
		t.Fatal("expected no next balancer after the very first install")
	}
}

func TestSwitchBalancerInstallsSecondAsNext(t *testing.T) {
	balancer.RegisterBuilder("test-lb-a", newFakeBalancerBuilder("test-lb-a"))
	balancer.RegisterBuilder("test-lb-b", newFakeBalancerBuilder("test-lb-b"))
	c := newSwitchTestClient()

	if err := c.switchBalancer("test-lb-a"); err != nil {
		t.Fatalf("switchBalancer a: %v", err)
	}
	current := c.lbCurrent
	if err := c.switchBalancer("test-lb-b"); err != nil {
		t.Fatalf("switchBalancer b: %v", err)
	}

	if c.lbCurrent != current {
		t.Fatal("expected current to keep serving until the replacement is ready")
	}
	if c.lbNext == nil || c.lbNext.name != "test-lb-b" {
		t.Fatalf("expected test-lb-b installed as next, got %+v", c.lbNext)
	}
}

func TestSwitchBalancerSameNameIsNoop(t *testing.T) {
	balancer.RegisterBuilder("test-lb-same", newFakeBalancerBuilder("test-lb-same"))
	c := newSwitchTestClient()

	if err := c.switchBalancer("test-lb-same"); err != nil {
		t.Fatalf("switchBalancer: %v", err)
	}
	first := c.lbCurrent
	if err := c.switchBalancer("test-lb-same"); err != nil {
		t.Fatalf("switchBalancer (repeat): %v", err)
	}
	if c.lbCurrent != first {
		t.Fatal("expected switching to the already-current policy to be a no-op")
	}
	if c.lbNext != nil {
		t.Fatal("expected no next balancer from a no-op switch")
	}
}

func TestOnBalancerUpdateStatePromotesNextOnFirstPicker(t *testing.T) {
	balancer.RegisterBuilder("test-lb-c", newFakeBalancerBuilder("test-lb-c"))
	balancer.RegisterBuilder("test-lb-d", newFakeBalancerBuilder("test-lb-d"))
	c := newSwitchTestClient()
	_ = c.switchBalancer("test-lb-c")
	_ = c.switchBalancer("test-lb-d")
	nextGen := c.lbNext.gen

	c.onBalancerUpdateState(nextGen, balancer.State{Picker: fakePicker{}})

	if c.lbCurrent == nil || c.lbCurrent.gen != nextGen {
		t.Fatal("expected the next balancer to be promoted to current")
	}
	if c.lbNext != nil {
		t.Fatal("expected next to be cleared after promotion")
	}
	if c.pickerSnap.Load().picker == nil {
		t.Fatal("expected the promoted balancer's picker to reach the global picker")
	}
}

func TestOnBalancerUpdateStateForwardsFromCurrent(t *testing.T) {
	balancer.RegisterBuilder("test-lb-e", newFakeBalancerBuilder("test-lb-e"))
	c := newSwitchTestClient()
	_ = c.switchBalancer("test-lb-e")
	curGen := c.lbCurrent.gen

	c.onBalancerUpdateState(curGen, balancer.State{Picker: fakePicker{}})

	if c.pickerSnap.Load().picker == nil {
		t.Fatal("expected the current balancer's picker to reach the global picker")
	}
}

func TestOnBalancerUpdateStateDropsStaleGeneration(t *testing.T) {
	balancer.RegisterBuilder("test-lb-f", newFakeBalancerBuilder("test-lb-f"))
	c := newSwitchTestClient()
	_ = c.switchBalancer("test-lb-f")

	stale := &lbGeneration{name: "test-lb-f-old"}
	c.onBalancerUpdateState(stale, balancer.State{Picker: fakePicker{}})

	if c.pickerSnap.Load().picker != nil {
		t.Fatal("expected an update from a superseded generation to be dropped")
	}
}
