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

// Package env provides functionality for reading configuration from the process environment.
package env

import (
	"os"
	"strings"

	"github.com/codesjoy/grpccore/config/source"
)

type env struct {
	prefix     string
	delimiter  string
	parseArray bool
	arraySep   string
}

// NewSource returns a new environment variable source. Keys are derived from
// variable names by lower-casing them and splitting on delimiter (default "_").
// Only variables starting with prefix are considered, with the prefix stripped.
func NewSource(prefix string, opts ...Option) source.Source {
	e := &env{prefix: prefix, delimiter: "_"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *env) Name() string {
	return "env"
}

func (e *env) Changeable() bool {
	return false
}

func (e *env) Watch() (<-chan source.Data, error) {
	return nil, nil
}

func (e *env) Close() error {
	return nil
}

func (e *env) Read() (source.Data, error) {
	data := map[string]interface{}{}
	prefix := e.prefix
	if prefix != "" {
		prefix = strings.ToUpper(prefix) + e.delimiter
	}
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			key = key[len(prefix):]
		}
		key = strings.ToLower(key)
		parts := strings.Split(key, strings.ToLower(e.delimiter))
		set(data, parts, e.value(val))
	}
	return source.NewMapSourceData(source.PriorityEnv, data), nil
}

func (e *env) value(val string) interface{} {
	if e.parseArray && strings.Contains(val, e.arraySep) {
		items := strings.Split(val, e.arraySep)
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out
	}
	return val
}

func set(m map[string]interface{}, keys []string, val interface{}) {
	if len(keys) == 1 {
		m[keys[0]] = val
		return
	}
	next, ok := m[keys[0]].(map[string]interface{})
	if !ok {
		next = map[string]interface{}{}
		m[keys[0]] = next
	}
	set(next, keys[1:], val)
}
