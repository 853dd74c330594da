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

package grpc

import (
	"testing"

	"github.com/codesjoy/grpccore/remote/protocol/grpc/encoding"
)

func TestSetCallInfoCodecDefaultsToProto(t *testing.T) {
	c := defaultCallInfo()
	if err := setCallInfoCodec(c); err != nil {
		t.Fatalf("setCallInfoCodec: %v", err)
	}
	if c.codec == nil || c.codec.Name() != "proto" {
		t.Fatalf("expected proto codec by default, got %v", c.codec)
	}
}

func TestSetCallInfoCodecHonorsExisting(t *testing.T) {
	existing := encoding.GetCodec("proto")
	c := &callInfo{codec: existing}
	if err := setCallInfoCodec(c); err != nil {
		t.Fatalf("setCallInfoCodec: %v", err)
	}
	if c.codec != existing {
		t.Fatal("expected a pre-set codec to be left untouched")
	}
}

func TestSetCallInfoCodecUnknownSubtypeFallsBackToProto(t *testing.T) {
	c := &callInfo{contentSubtype: "does-not-exist"}
	if err := setCallInfoCodec(c); err != nil {
		t.Fatalf("setCallInfoCodec: %v", err)
	}
	if c.codec == nil || c.codec.Name() != "proto" {
		t.Fatalf("expected fallback to proto codec, got %v", c.codec)
	}
}
