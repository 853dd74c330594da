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

package config

import (
	"time"

	"github.com/codesjoy/grpccore/config/source"
)

// Config is the merged view over every loaded source, plus the ability to
// load more sources and watch keys for changes.
type Config interface {
	Values
	LoadSource(...source.Source) error
	AddWatcher(string, func(WatchEvent)) error
	DelWatcher(string, func(WatchEvent)) error
	ValueToValues(Value) Values
}

// WatchEventType is the kind of change a WatchEvent describes.
type WatchEventType uint32

const (
	_ WatchEventType = iota
	// WatchEventUpd is an update to an existing key.
	WatchEventUpd
	// WatchEventAdd is a newly-set key.
	WatchEventAdd
	// WatchEventDel is a removed key.
	WatchEventDel
)

// WatchEvent is delivered to a watcher callback when its key's value changes.
type WatchEvent interface {
	Type() WatchEventType
	Value() Value
	Version() uint64
}

// Values is a read/write view over a nested key-value tree.
type Values interface {
	Get(key string) Value
	GetMulti(keys ...string) Value
	Set(key string, val interface{}) error
	SetMulti(keys []string, values []interface{}) error
	Del(key string) error
	Map() map[string]interface{}
	Scan(v interface{}) error
	Bytes() []byte
}

// Value is a single config entry, convertible to the scalar/collection types
// commonly needed by callers.
type Value interface {
	Bool(def ...bool) bool
	Int(def ...int) int
	Int64(def ...int64) int64
	String(def ...string) string
	Float64(def ...float64) float64
	Duration(def ...time.Duration) time.Duration
	StringSlice(def ...[]string) []string
	StringMap(def ...map[string]string) map[string]string
	Map(def ...map[string]interface{}) map[string]interface{}
	Scan(val interface{}) error
	Bytes(def ...[]byte) []byte
}
