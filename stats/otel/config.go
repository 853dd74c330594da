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

// Package otel wires an OpenTelemetry tracing/metrics stats.Handler into the
// channel and per-RPC stats hooks.
package otel

import (
	"github.com/codesjoy/grpccore/config"
)

// Config controls what the handler records.
type Config struct {
	ReceivedEvent bool `default:"true"`
	SentEvent     bool `default:"true"`
	EnableMetrics bool `default:"true"`
}

func getCfg() *Config {
	cfg := &Config{}
	key := config.Join(config.KeyBase, "stats", "otel")
	_ = config.Get(key).Scan(cfg)
	return cfg
}
