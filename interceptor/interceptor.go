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

// Package interceptor provides client and server interceptor chaining,
// registered by name so that channel and service configuration can select
// interceptors without importing them directly.
package interceptor

import (
	"context"
	"sync"

	"github.com/codesjoy/grpccore/stream"
)

// UnaryInvoker is called by UnaryClientInterceptor to complete an RPC.
type UnaryInvoker func(ctx context.Context, method string, req, reply any) error

// UnaryClientInterceptor intercepts the execution of a unary RPC on the
// client side.
type UnaryClientInterceptor func(ctx context.Context, method string, req, reply any, invoker UnaryInvoker) error

// UnaryClientIntBuilder builds a UnaryClientInterceptor scoped to the given
// service name.
type UnaryClientIntBuilder func(serviceName string) UnaryClientInterceptor

// Streamer is called by StreamClientInterceptor to create a stream.
type Streamer func(ctx context.Context, desc *stream.Desc, method string) (stream.ClientStream, error)

// StreamClientInterceptor intercepts the creation of a streaming RPC on the
// client side.
type StreamClientInterceptor func(
	ctx context.Context,
	desc *stream.Desc,
	method string,
	streamer Streamer,
) (stream.ClientStream, error)

// StreamClientIntBuilder builds a StreamClientInterceptor scoped to the
// given service name.
type StreamClientIntBuilder func(serviceName string) StreamClientInterceptor

// UnaryServerInfo consists of various information about a unary RPC on
// server side. All per-rpc information may be mutated by the interceptor.
type UnaryServerInfo struct {
	// Server is the service implementation the user provides.
	Server any
	// FullMethod is the full RPC method string, i.e., /package.service/method.
	FullMethod string
}

// UnaryHandler defines the handler invoked by UnaryServerInterceptor to
// complete the normal execution of a unary RPC.
type UnaryHandler func(ctx context.Context, req any) (any, error)

// UnaryServerInterceptor provides a hook to intercept the execution of a
// unary RPC on the server side.
type UnaryServerInterceptor func(ctx context.Context, req any, info *UnaryServerInfo, handler UnaryHandler) (any, error)

// UnaryServerIntBuilder builds a UnaryServerInterceptor.
type UnaryServerIntBuilder func() UnaryServerInterceptor

// StreamServerInfo consists of various information about a streaming RPC on
// server side.
type StreamServerInfo struct {
	FullMethod     string
	IsClientStream bool
	IsServerStream bool
}

// StreamServerInterceptor provides a hook to intercept the execution of a
// streaming RPC on the server side.
type StreamServerInterceptor func(srv any, ss stream.ServerStream, info *StreamServerInfo, handler stream.Handler) error

// StreamServerIntBuilder builds a StreamServerInterceptor.
type StreamServerIntBuilder func() StreamServerInterceptor

var (
	mu sync.RWMutex

	unaryClientBuilder  = map[string]UnaryClientIntBuilder{}
	unaryServerBuilder  = map[string]UnaryServerIntBuilder{}
	streamClientBuilder = map[string]StreamClientIntBuilder{}
	streamServerBuilder = map[string]StreamServerIntBuilder{}
)

// RegisterUnaryClientIntBuilder registers a UnaryClientIntBuilder under name,
// overwriting any builder previously registered under the same name.
func RegisterUnaryClientIntBuilder(name string, builder UnaryClientIntBuilder) {
	mu.Lock()
	defer mu.Unlock()
	unaryClientBuilder[name] = builder
}

func getUnaryClientIntBuilder(name string) UnaryClientIntBuilder {
	mu.RLock()
	defer mu.RUnlock()
	return unaryClientBuilder[name]
}

// RegisterUnaryServerIntBuilder registers a UnaryServerIntBuilder under name,
// overwriting any builder previously registered under the same name.
func RegisterUnaryServerIntBuilder(name string, builder UnaryServerIntBuilder) {
	mu.Lock()
	defer mu.Unlock()
	unaryServerBuilder[name] = builder
}

func getUnaryServerIntBuilder(name string) UnaryServerIntBuilder {
	mu.RLock()
	defer mu.RUnlock()
	return unaryServerBuilder[name]
}

// RegisterStreamClientIntBuilder registers a StreamClientIntBuilder under
// name, overwriting any builder previously registered under the same name.
func RegisterStreamClientIntBuilder(name string, builder StreamClientIntBuilder) {
	mu.Lock()
	defer mu.Unlock()
	streamClientBuilder[name] = builder
}

func getStreamClientIntBuilder(name string) StreamClientIntBuilder {
	mu.RLock()
	defer mu.RUnlock()
	return streamClientBuilder[name]
}

// RegisterStreamServerIntBuilder registers a StreamServerIntBuilder under
// name, overwriting any builder previously registered under the same name.
func RegisterStreamServerIntBuilder(name string, builder StreamServerIntBuilder) {
	mu.Lock()
	defer mu.Unlock()
	streamServerBuilder[name] = builder
}

func getStreamServerIntBuilder(name string) StreamServerIntBuilder {
	mu.RLock()
	defer mu.RUnlock()
	return streamServerBuilder[name]
}

// ChainUnaryClientInterceptors builds a single UnaryClientInterceptor out of
// the interceptors registered under names, in order. Names with no
// registered builder are skipped. An empty chain is a passthrough to the
// invoker.
func ChainUnaryClientInterceptors(serviceName string, names []string) UnaryClientInterceptor {
	ints := make([]UnaryClientInterceptor, 0, len(names))
	for _, name := range names {
		builder := getUnaryClientIntBuilder(name)
		if builder == nil {
			continue
		}
		ints = append(ints, builder(serviceName))
	}

	return func(ctx context.Context, method string, req, reply any, invoker UnaryInvoker) error {
		chained := invoker
		for i := len(ints) - 1; i >= 0; i-- {
			chained = bindUnaryClientInterceptor(ints[i], chained)
		}
		return chained(ctx, method, req, reply)
	}
}

func bindUnaryClientInterceptor(i UnaryClientInterceptor, next UnaryInvoker) UnaryInvoker {
	return func(ctx context.Context, method string, req, reply any) error {
		return i(ctx, method, req, reply, next)
	}
}

// ChainStreamClientInterceptors builds a single StreamClientInterceptor out
// of the interceptors registered under names, in order. Names with no
// registered builder are skipped.
func ChainStreamClientInterceptors(serviceName string, names []string) StreamClientInterceptor {
	ints := make([]StreamClientInterceptor, 0, len(names))
	for _, name := range names {
		builder := getStreamClientIntBuilder(name)
		if builder == nil {
			continue
		}
		ints = append(ints, builder(serviceName))
	}

	return func(ctx context.Context, desc *stream.Desc, method string, streamer Streamer) (stream.ClientStream, error) {
		chained := streamer
		for i := len(ints) - 1; i >= 0; i-- {
			chained = bindStreamClientInterceptor(ints[i], chained)
		}
		return chained(ctx, desc, method)
	}
}

func bindStreamClientInterceptor(i StreamClientInterceptor, next Streamer) Streamer {
	return func(ctx context.Context, desc *stream.Desc, method string) (stream.ClientStream, error) {
		return i(ctx, desc, method, next)
	}
}

// ChainUnaryServerInterceptors builds a single UnaryServerInterceptor out of
// the interceptors registered under names, in order. Names with no
// registered builder are skipped.
func ChainUnaryServerInterceptors(names []string) UnaryServerInterceptor {
	ints := make([]UnaryServerInterceptor, 0, len(names))
	for _, name := range names {
		builder := getUnaryServerIntBuilder(name)
		if builder == nil {
			continue
		}
		ints = append(ints, builder())
	}

	return func(ctx context.Context, req any, info *UnaryServerInfo, handler UnaryHandler) (any, error) {
		chained := handler
		for i := len(ints) - 1; i >= 0; i-- {
			chained = bindUnaryServerInterceptor(ints[i], info, chained)
		}
		return chained(ctx, req)
	}
}

func bindUnaryServerInterceptor(i UnaryServerInterceptor, info *UnaryServerInfo, next UnaryHandler) UnaryHandler {
	return func(ctx context.Context, req any) (any, error) {
		return i(ctx, req, info, next)
	}
}

// ChainStreamServerInterceptors builds a single StreamServerInterceptor out
// of the interceptors registered under names, in order. Names with no
// registered builder are skipped.
func ChainStreamServerInterceptors(names []string) StreamServerInterceptor {
	ints := make([]StreamServerInterceptor, 0, len(names))
	for _, name := range names {
		builder := getStreamServerIntBuilder(name)
		if builder == nil {
			continue
		}
		ints = append(ints, builder())
	}

	return func(srv any, ss stream.ServerStream, info *StreamServerInfo, handler stream.Handler) error {
		chained := handler
		for i := len(ints) - 1; i >= 0; i-- {
			chained = bindStreamServerInterceptor(ints[i], info, chained)
		}
		return chained(srv, ss)
	}
}

func bindStreamServerInterceptor(i StreamServerInterceptor, info *StreamServerInfo, next stream.Handler) stream.Handler {
	return func(srv any, ss stream.ServerStream) error {
		return i(srv, ss, info, next)
	}
}
