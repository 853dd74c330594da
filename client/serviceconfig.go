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
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RetryThrottlePolicy is the shared token-bucket object a service config may
// carry. The core only stores and exposes it; the decision of whether a
// given retry is allowed by the bucket is made by the call-site, not here.
type RetryThrottlePolicy struct {
	// MaxTokens bounds the bucket.
	MaxTokens float64
	// TokenRatio is added to the bucket on every successful call and
	// subtracted on every failure.
	TokenRatio float64
}

// MethodConfig is the per-method policy a service config may specify.
type MethodConfig struct {
	Timeout         time.Duration
	WaitForReady    bool
	Compressor      string
	MaxSendMsgSize  int
	MaxRecvMsgSize  int
}

// ServiceConfig is the policy document received from the resolver (or
// configured as a default), read-heavy and rarely updated.
type ServiceConfig struct {
	// LoadBalancingPolicies lists candidate LB policy names in preference
	// order; the supervisor retains the first one it has a builder for.
	LoadBalancingPolicies []string
	// MethodConfigs maps a full method name (or a "/service/" prefix) to its
	// policy.
	MethodConfigs map[string]MethodConfig
	// RetryThrottle, if non-nil, is shared by every call on this channel.
	RetryThrottle *RetryThrottlePolicy
}

// methodConfigCache memoizes the (service config, full method) -> resolved
// MethodConfig lookup, since it sits on every call's hot path but the
// service config itself changes rarely. Independently lock-protected from
// the rest of the client per the read-heavy/write-rare shared resource
// policy.
type methodConfigCache struct {
	mu     sync.RWMutex
	cfg    *ServiceConfig
	lookup *lru.Cache[string, MethodConfig]
}

func newMethodConfigCache() *methodConfigCache {
	c, _ := lru.New[string, MethodConfig](256)
	return &methodConfigCache{lookup: c}
}

// setServiceConfig installs a new service config, invalidating every cached
// lookup since method policies may have changed.
func (m *methodConfigCache) setServiceConfig(cfg *ServiceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.lookup.Purge()
}

// get resolves the MethodConfig for method, trying an exact match, then the
// method's service-level wildcard ("/service/"), then the zero value.
func (m *methodConfigCache) get(method string) MethodConfig {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	if cfg == nil || cfg.MethodConfigs == nil {
		return MethodConfig{}
	}

	if mc, ok := m.lookup.Get(method); ok {
		return mc
	}

	mc, ok := cfg.MethodConfigs[method]
	if !ok {
		mc, ok = cfg.MethodConfigs[serviceWildcard(method)]
	}
	if !ok {
		mc = MethodConfig{}
	}
	m.lookup.Add(method, mc)
	return mc
}

// retryThrottle returns the shared retry-throttle object, or nil.
func (m *methodConfigCache) retryThrottle() *RetryThrottlePolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil
	}
	return m.cfg.RetryThrottle
}

// serviceWildcard turns "/pkg.Service/Method" into "/pkg.Service/", the
// service-level method-config key.
func serviceWildcard(method string) string {
	for i := len(method) - 1; i > 0; i-- {
		if method[i] == '/' {
			return method[:i+1]
		}
	}
	return method
}
