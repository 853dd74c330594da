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

package env

import (
	"testing"
)

func TestReadPrefixedVars(t *testing.T) {
	t.Setenv("GRPCCORE_CLIENT_TIMEOUT", "5s")
	t.Setenv("GRPCCORE_CLIENT_RETRIES", "3")
	t.Setenv("OTHER_VAR", "ignored")

	src := NewSource("grpccore")
	data, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var out map[string]interface{}
	if err := data.Unmarshal(&out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	client, ok := out["client"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a nested client map, got %#v", out["client"])
	}
	if client["timeout"] != "5s" {
		t.Fatalf("expected timeout=5s, got %v", client["timeout"])
	}
	if _, ok := out["other_var"]; ok {
		t.Fatal("unprefixed variable should have been skipped")
	}
}

func TestReadParsesArrayWithSeparator(t *testing.T) {
	t.Setenv("GRPCCORE_TAGS", "a,b,c")

	src := NewSource("grpccore", WithParseArray(","))
	data, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var out map[string]interface{}
	if err := data.Unmarshal(&out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	tags, ok := out["tags"].([]interface{})
	if !ok || len(tags) != 3 {
		t.Fatalf("expected a 3-element array, got %#v", out["tags"])
	}
}

func TestNotChangeable(t *testing.T) {
	src := NewSource("grpccore")
	if src.Changeable() {
		t.Fatal("env source should not be changeable")
	}
	ch, err := src.Watch()
	if err != nil || ch != nil {
		t.Fatalf("expected (nil, nil) from Watch, got (%v, %v)", ch, err)
	}
}
