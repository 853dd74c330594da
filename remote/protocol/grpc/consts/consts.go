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

// Package consts holds the wire-level constants of the gRPC-on-HTTP/2
// protocol: header names, content-type, and message framing sizes.
package consts

// HeaderLen is the size in bytes of the gRPC message length-prefix:
// a 1-byte compressed flag followed by a 4-byte big-endian length.
const HeaderLen = 5

// Scheme identifiers reported by a client transport, matching the HTTP/2
// connection scheme.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Wire header and pseudo-header names.
const (
	HeaderContentType    = "content-type"
	HeaderTE             = "te"
	HeaderGRPCEncoding   = "grpc-encoding"
	HeaderGRPCAcceptEnc  = "grpc-accept-encoding"
	HeaderGRPCStatus     = "grpc-status"
	HeaderGRPCMessage    = "grpc-message"
	HeaderUserAgent      = "user-agent"
	HeaderGRPCTimeout    = "grpc-timeout"
	PseudoHeaderMethod   = ":method"
	PseudoHeaderScheme   = ":scheme"
	PseudoHeaderPath     = ":path"
	PseudoHeaderAuthority = ":authority"
	PseudoHeaderStatus   = ":status"
)

// ContentType is the value this client always emits on outbound requests.
// Responses are accepted as long as they begin with "application/grpc".
const ContentType = "application/grpc"

// TEValue is the required value of the "te" request header.
const TEValue = "trailers"

// MethodPost is the only HTTP method gRPC uses.
const MethodPost = "POST"

// BinHeaderSuffix marks a metadata key as carrying base64-encoded binary
// content.
const BinHeaderSuffix = "-bin"

// DefaultMaxHeaderListSize is the default MAX_HEADER_LIST_SIZE advertised
// in the initial SETTINGS frame.
const DefaultMaxHeaderListSize = 16 * 1024

// MinMaxFrameSize and MaxMaxFrameSize bound the HTTP/2 MAX_FRAME_SIZE
// setting, per RFC 7540 §6.5.2.
const (
	MinMaxFrameSize = 1 << 14
	MaxMaxFrameSize = 1<<24 - 1
)

// MaxWindowSize bounds INITIAL_WINDOW_SIZE, per RFC 7540 §6.5.2.
const MaxWindowSize = 1<<31 - 1
