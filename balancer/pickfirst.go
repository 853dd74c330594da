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

package balancer

import (
	"log/slog"
	"sync"

	"github.com/codesjoy/grpccore/remote"
	"github.com/codesjoy/grpccore/resolver"
	"github.com/codesjoy/grpccore/status"
	"google.golang.org/genproto/googleapis/rpc/code"
)

const pickFirstName = "pick_first"

func init() {
	RegisterBuilder(pickFirstName, newPickFirst)
}

// pfBalancer is the pick-first policy. It operates on a single endpoint at a
// time: the first endpoint returned by the resolver. The underlying
// remote.Client is responsible for cycling through that endpoint's addresses
// and applying backoff once every address has been tried.
type pfBalancer struct {
	cli Client

	mu     sync.RWMutex
	active remote.Client
	name   string
}

func newPickFirst(_ string, cli Client) (Balancer, error) {
	return &pfBalancer{cli: cli}, nil
}

// UpdateState updates the balancer with the current endpoint set, keeping
// (and reusing) the connection to the first endpoint if it is unchanged.
func (b *pfBalancer) UpdateState(state resolver.State) {
	endpoints := state.GetEndpoints()

	b.mu.Lock()
	if b.active == nil && len(endpoints) == 0 {
		b.mu.Unlock()
		return
	}

	var first resolver.Endpoint
	if len(endpoints) > 0 {
		first = endpoints[0]
	}

	if first == nil {
		old := b.active
		b.active = nil
		b.name = ""
		picker := b.buildPicker()
		b.mu.Unlock()
		b.cli.UpdateState(State{Picker: picker})
		if old != nil {
			if err := old.Close(); err != nil {
				slog.Warn("pick_first: close remote client error", slog.Any("error", err))
			}
		}
		return
	}

	if b.active != nil && b.name == first.Name() {
		b.mu.Unlock()
		return
	}

	old := b.active
	cli, err := b.cli.NewRemoteClient(first, NewRemoteClientOptions{StateListener: b.updateRemoteClientState})
	if err != nil {
		b.mu.Unlock()
		slog.Error("pick_first: new remote client error", slog.Any("error", err))
		return
	}
	b.active = cli
	b.name = first.Name()
	picker := b.buildPicker()
	b.mu.Unlock()

	cli.Connect()
	b.cli.UpdateState(State{Picker: picker})

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("pick_first: close remote client error", slog.Any("error", err))
		}
	}
}

func (b *pfBalancer) updateRemoteClientState(_ remote.ClientState) {
	b.mu.RLock()
	picker := b.buildPicker()
	b.mu.RUnlock()
	b.cli.UpdateState(State{Picker: picker})
}

// Close closes the active connection, if any.
func (b *pfBalancer) Close() error {
	b.mu.Lock()
	old := b.active
	b.active = nil
	b.name = ""
	picker := b.buildPicker()
	b.mu.Unlock()
	b.cli.UpdateState(State{Picker: picker})
	if old == nil {
		return nil
	}
	return old.Close()
}

// Name returns the name of the balancer.
func (b *pfBalancer) Name() string {
	return pickFirstName
}

// buildPicker must be called with at least a read lock held.
func (b *pfBalancer) buildPicker() *pfPicker {
	if b.active == nil || b.active.State() != remote.Ready {
		return &pfPicker{}
	}
	return &pfPicker{endpoint: b.active}
}

type pfPicker struct {
	endpoint remote.Client
}

// Next returns the single active remote client, or an error if none is ready.
func (p *pfPicker) Next(ri RPCInfo) (PickResult, error) {
	if p.endpoint == nil {
		return nil, status.New(code.Code_UNAVAILABLE, "pick_first: no ready endpoint")
	}
	return &pickResult{endpoint: p.endpoint, ctx: ri.Ctx}, nil
}
