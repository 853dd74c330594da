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

package otel

import (
	"context"

	"github.com/codesjoy/grpccore/stats"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

type clientHandler struct {
	handler
}

func newCliHandler() stats.Handler {
	return &clientHandler{handler: newHandler(false)}
}

// TagRPC starts a client span for the RPC and propagates it onto the outgoing metadata.
func (h *clientHandler) TagRPC(ctx context.Context, info stats.RPCTagInfo) context.Context {
	spanName, attrs := parseFullMethod(info.GetFullMethod())
	attrs = append(attrs, semconv.RPCSystemKey.String("grpc"))
	ctx, _ = h.tracer.Start(
		ctx,
		spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	rctx := rpcContext{metricAttrs: attrs}
	return inject(context.WithValue(ctx, rpcContextKey{}, &rctx), otel.GetTextMapPropagator())
}

// HandleRPC records a client-side RPC stats event against the tagged span.
func (h *clientHandler) HandleRPC(ctx context.Context, rs stats.RPCStats) {
	h.handleRPC(ctx, rs, false)
}

// TagChannel leaves the channel context untouched; per-channel spans are not modeled.
func (h *clientHandler) TagChannel(ctx context.Context, _ stats.ChanTagInfo) context.Context {
	return ctx
}

// HandleChannel is a no-op; channel lifecycle is reported through logging, not tracing.
func (h *clientHandler) HandleChannel(context.Context, stats.ChanStats) {
}
