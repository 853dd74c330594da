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

// Package config provides a layered, watchable key-value configuration tree
// merged from any number of prioritized sources.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/codesjoy/grpccore/config/source"
	"github.com/codesjoy/grpccore/utils/xgo"
	"github.com/codesjoy/grpccore/utils/xmap"
)

const keyDelimiter = "."

var cfg = newConfigImpl()

type sourceEntry struct {
	src      source.Source
	priority source.Priority
	data     map[string]interface{}
}

type configImpl struct {
	mu  sync.RWMutex
	cur *values

	srcMu   sync.Mutex
	entries []*sourceEntry

	watchMu  sync.Mutex
	watchers map[string][]func(WatchEvent)
	version  uint64
}

func newConfigImpl() *configImpl {
	return &configImpl{
		cur:      newValues(keyDelimiter, nil),
		watchers: map[string][]func(WatchEvent){},
	}
}

// LoadSource reads every given source, merges it into the config tree by
// priority (higher priority wins on key conflicts), and starts watching any
// source that reports itself as changeable.
func (c *configImpl) LoadSource(sources ...source.Source) error {
	c.srcMu.Lock()
	for _, src := range sources {
		data, err := src.Read()
		if err != nil {
			c.srcMu.Unlock()
			return fmt.Errorf("config: load source %s: %w", src.Name(), err)
		}
		m := map[string]interface{}{}
		if err := data.Unmarshal(&m); err != nil {
			c.srcMu.Unlock()
			return fmt.Errorf("config: unmarshal source %s: %w", src.Name(), err)
		}
		entry := &sourceEntry{src: src, priority: data.Priority(), data: m}
		c.entries = append(c.entries, entry)

		if src.Changeable() {
			ch, err := src.Watch()
			if err != nil {
				c.srcMu.Unlock()
				return fmt.Errorf("config: watch source %s: %w", src.Name(), err)
			}
			if ch != nil {
				xgo.Go(func() { c.watchSource(entry, ch) })
			}
		}
	}
	c.srcMu.Unlock()

	c.merge()
	return nil
}

func (c *configImpl) watchSource(entry *sourceEntry, ch <-chan source.Data) {
	for data := range ch {
		m := map[string]interface{}{}
		if err := data.Unmarshal(&m); err != nil {
			slog.Error("config: fault to unmarshal changed source", slog.String("source", entry.src.Name()), slog.Any("error", err))
			continue
		}
		c.srcMu.Lock()
		entry.data = m
		c.srcMu.Unlock()
		c.merge()
	}
}

func (c *configImpl) merge() {
	c.srcMu.Lock()
	entries := append([]*sourceEntry(nil), c.entries...)
	c.srcMu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })

	merged := map[string]interface{}{}
	for _, e := range entries {
		xmap.MergeStringMap(merged, e.data)
	}

	c.mu.Lock()
	old := c.cur
	c.cur = newValues(keyDelimiter, merged)
	c.version++
	version := c.version
	c.mu.Unlock()

	c.notify(old, c.cur, version)
}

func (c *configImpl) notify(old, cur *values, version uint64) {
	c.watchMu.Lock()
	watched := make(map[string][]func(WatchEvent), len(c.watchers))
	for key, fns := range c.watchers {
		watched[key] = append([]func(WatchEvent)(nil), fns...)
	}
	c.watchMu.Unlock()

	for key, fns := range watched {
		oldBytes := old.Get(key).Bytes()
		newBytes := cur.Get(key).Bytes()
		if bytes.Equal(oldBytes, newBytes) {
			continue
		}
		typ := WatchEventUpd
		switch {
		case len(oldBytes) == 0:
			typ = WatchEventAdd
		case len(newBytes) == 0:
			typ = WatchEventDel
		}
		ev := &watchEvent{typ: typ, val: cur.Get(key), version: version}
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// AddWatcher registers f to be called whenever the merged value at key changes.
func (c *configImpl) AddWatcher(key string, f func(WatchEvent)) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.watchers[key] = append(c.watchers[key], f)
	return nil
}

// DelWatcher removes a watcher previously registered with AddWatcher.
func (c *configImpl) DelWatcher(key string, f func(WatchEvent)) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	fns := c.watchers[key]
	target := reflect.ValueOf(f).Pointer()
	out := fns[:0]
	for _, fn := range fns {
		if reflect.ValueOf(fn).Pointer() != target {
			out = append(out, fn)
		}
	}
	if len(out) == 0 {
		delete(c.watchers, key)
	} else {
		c.watchers[key] = out
	}
	return nil
}

// ValueToValues treats a Value holding a nested map as its own Values tree.
func (c *configImpl) ValueToValues(v Value) Values {
	return newValues(keyDelimiter, v.Map())
}

func (c *configImpl) Get(key string) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Get(key)
}

func (c *configImpl) GetMulti(keys ...string) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.GetMulti(keys...)
}

func (c *configImpl) Set(key string, val interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.Set(key, val)
}

func (c *configImpl) SetMulti(keys []string, values []interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.SetMulti(keys, values)
}

func (c *configImpl) Del(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.Del(key)
}

func (c *configImpl) Map() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Map()
}

func (c *configImpl) Scan(v interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Scan(v)
}

func (c *configImpl) Bytes() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Bytes()
}

type watchEvent struct {
	typ     WatchEventType
	val     Value
	version uint64
}

func (e *watchEvent) Type() WatchEventType { return e.typ }
func (e *watchEvent) Value() Value         { return e.val }
func (e *watchEvent) Version() uint64      { return e.version }

// Get returns the value of the specified key.
func Get(key string) Value {
	return cfg.Get(key)
}

// GetMulti returns the merged value of the specified keys.
func GetMulti(keys ...string) Value {
	return cfg.GetMulti(keys...)
}

// ValueToValues converts a Value to Values.
func ValueToValues(v Value) Values {
	return cfg.ValueToValues(v)
}

// Set sets the value of the specified key.
func Set(key string, val interface{}) error {
	return cfg.Set(key, val)
}

// SetMulti sets the values of the specified keys.
func SetMulti(keys []string, values []interface{}) error {
	return cfg.SetMulti(keys, values)
}

// Del deletes the specified key.
func Del(key string) error {
	return cfg.Del(key)
}

// Bytes returns the JSON-encoded configuration tree.
func Bytes() []byte {
	return cfg.Bytes()
}

// Scan decodes the value of the specified key into val.
func Scan(key string, val interface{}) error {
	return cfg.Get(key).Scan(val)
}

// LoadSource loads the given sources into the global configuration.
func LoadSource(sources ...source.Source) error {
	return cfg.LoadSource(sources...)
}

// AddWatcher adds a watcher for the specified key.
func AddWatcher(key string, f func(WatchEvent)) error {
	return cfg.AddWatcher(key, f)
}

// DelWatcher deletes the watcher for the specified key.
func DelWatcher(key string, f func(WatchEvent)) error {
	return cfg.DelWatcher(key, f)
}
