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

// Package stream defines the per-RPC stream abstractions shared by the
// client transport, the balancer pickers and the interceptor chains.
package stream

import (
	"context"

	"github.com/codesjoy/grpccore/metadata"
)

// Desc describes an RPC method independent of its transport, recording
// whether either side of the call streams messages.
type Desc struct {
	StreamName    string
	ClientStreams bool
	ServerStreams bool
}

// ClientStream defines the client-side behavior of a stream once it has
// been created by a transport.
type ClientStream interface {
	// Header returns the header metadata received from the server, if any.
	// It blocks until the metadata is received or the stream completes.
	Header() (metadata.MD, error)
	// Trailer returns the trailer metadata sent by the server. It must only
	// be called after SendMsg/RecvMsg have returned a non-nil error.
	Trailer() metadata.MD
	// CloseSend closes the send direction of the stream.
	CloseSend() error
	// Context returns the context for this stream.
	Context() context.Context
	// SendMsg sends a message on the stream.
	SendMsg(m any) error
	// RecvMsg reads a message from the stream into m.
	RecvMsg(m any) error
}

// ServerStream defines the server-side behavior of a stream.
type ServerStream interface {
	// Context returns the context for this stream.
	Context() context.Context
	// RecvMsg reads a message from the stream into m.
	RecvMsg(m any) error
	// SendMsg sends a message on the stream.
	SendMsg(m any) error
	// SetHeader sets the header metadata to be sent. It must be called
	// before any response is sent.
	SetHeader(md metadata.MD) error
	// SendHeader sends the header metadata immediately.
	SendHeader(md metadata.MD) error
	// SetTrailer sets the trailer metadata that will be sent when the
	// stream completes.
	SetTrailer(md metadata.MD)
}

// Handler defines the function a server calls to process a streaming RPC.
type Handler func(srv any, stream ServerStream) error
