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
	"github.com/codesjoy/grpccore/remote/protocol/grpc/encoding"
)

// callInfo holds the per-RPC settings resolved before a stream is opened.
type callInfo struct {
	maxSendMessageSize    *int
	maxReceiveMessageSize *int
	minCompressSize       int
	codec                 encoding.Codec
	contentSubtype        string
}

func defaultCallInfo() *callInfo {
	return &callInfo{}
}

// setCallInfoCodec fills in c.codec, if it hasn't already been set by a
// per-call option, with the codec registered for c.contentSubtype, falling
// back to the proto codec when the subtype is empty or unregistered.
// c.contentSubtype itself is left unchanged.
func setCallInfoCodec(c *callInfo) error {
	if c.codec != nil {
		return nil
	}
	if c.contentSubtype == "" {
		c.codec = encoding.GetCodec("proto")
		return nil
	}
	c.codec = encoding.GetCodec(c.contentSubtype)
	if c.codec == nil {
		c.codec = encoding.GetCodec("proto")
	}
	return nil
}
