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
	"github.com/codesjoy/grpccore/status"

	gotel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genproto/googleapis/rpc/code"
)

const instrumentationName = "github.com/codesjoy/grpccore/stats/otel"

type rpcContextKey struct{}

// rpcContext carries the attributes derived from TagRPC through to the
// payload/metrics callbacks for the lifetime of one RPC.
type rpcContext struct {
	metricAttrs []attribute.KeyValue
}

// handler is the shared implementation behind the client and server
// stats.Handler variants; only TagRPC/TagChannel differ between the two.
type handler struct {
	cfg    *Config
	tracer trace.Tracer
	meter  metric.Meter

	sentBytes     metric.Int64Histogram
	receivedBytes metric.Int64Histogram
	duration      metric.Float64Histogram
}

func newHandler(isServer bool) handler {
	meter := gotel.Meter(instrumentationName)

	h := handler{
		cfg:    getCfg(),
		tracer: gotel.Tracer(instrumentationName),
		meter:  meter,
	}

	prefix := "rpc.client"
	if isServer {
		prefix = "rpc.server"
	}
	h.sentBytes, _ = meter.Int64Histogram(prefix+".request.size", metric.WithUnit("By"))
	h.receivedBytes, _ = meter.Int64Histogram(prefix+".response.size", metric.WithUnit("By"))
	h.duration, _ = meter.Float64Histogram(prefix+".duration", metric.WithUnit("ms"))

	return h
}

// handleRPC routes payload events to handleWithMetrics and every other
// stats.RPCStats event to handleWithOutMetrics.
func (h *handler) handleRPC(ctx context.Context, rs stats.RPCStats, isServer bool) {
	switch rs.(type) {
	case stats.RPCInPayload, stats.RPCOutPayload:
		h.handleWithMetrics(ctx, rs, isServer)
	default:
		h.handleWithOutMetrics(ctx, rs, isServer)
	}
}

// handleWithOutMetrics acts only on stats.RPCEnd: it records the RPC
// duration, sets the span status when the RPC failed, and ends the span.
// Every other event is ignored.
func (h *handler) handleWithOutMetrics(ctx context.Context, rs stats.RPCStats, isServer bool) {
	span := trace.SpanFromContext(ctx)

	end, ok := rs.(stats.RPCEnd)
	if !ok {
		return
	}
	defer span.End()

	rctx, _ := ctx.Value(rpcContextKey{}).(*rpcContext)
	durMS := float64(end.GetEndTime().Sub(end.GetBeginTime())) / 1e6
	h.duration.Record(ctx, durMS, metric.WithAttributes(attrsOf(rctx)...))

	err := end.Error()
	if err == nil {
		return
	}
	st, _ := status.CoverError(err)
	c, msg := spanStatus(st, isServer)
	span.SetStatus(c, msg)
}

// handleWithMetrics records payload size metrics and, when configured, a
// span event for inbound/outbound payloads.
func (h *handler) handleWithMetrics(ctx context.Context, rs stats.RPCStats, isServer bool) {
	span := trace.SpanFromContext(ctx)
	rctx, _ := ctx.Value(rpcContextKey{}).(*rpcContext)
	attrs := attrsOf(rctx)

	switch rs := rs.(type) {
	case stats.RPCInPayload:
		if h.cfg.ReceivedEvent {
			span.AddEvent("message", trace.WithAttributes(
				attribute.String("message.type", "RECEIVED"),
				attribute.Int("message.uncompressed_size", len(rs.GetData())),
			))
		}
		if h.cfg.EnableMetrics {
			h.receivedBytes.Record(ctx, int64(rs.GetTransportSize()), metric.WithAttributes(attrs...))
		}
	case stats.RPCOutPayload:
		if h.cfg.SentEvent {
			span.AddEvent("message", trace.WithAttributes(
				attribute.String("message.type", "SENT"),
				attribute.Int("message.uncompressed_size", len(rs.GetData())),
			))
		}
		if h.cfg.EnableMetrics {
			h.sentBytes.Record(ctx, int64(rs.GetTransportSize()), metric.WithAttributes(attrs...))
		}
	}
}

func attrsOf(rctx *rpcContext) []attribute.KeyValue {
	if rctx == nil {
		return nil
	}
	return rctx.metricAttrs
}

// spanStatus maps a gRPC status onto the OpenTelemetry span status, following
// the convention that RPCs failing with a client-caused code do not mark the
// server span as an error.
func spanStatus(s *status.Status, isServer bool) (codes.Code, string) {
	if !isServer {
		if s.Code() == code.Code_OK {
			return codes.Unset, s.Message()
		}
		return codes.Error, s.Message()
	}
	return serverStatus(s)
}

func serverStatus(s *status.Status) (codes.Code, string) {
	switch s.Code() {
	case code.Code_OK,
		code.Code_CANCELLED,
		code.Code_INVALID_ARGUMENT,
		code.Code_NOT_FOUND,
		code.Code_ALREADY_EXISTS,
		code.Code_PERMISSION_DENIED,
		code.Code_UNAUTHENTICATED,
		code.Code_OUT_OF_RANGE:
		return codes.Unset, s.Message()
	default:
		return codes.Error, s.Message()
	}
}
