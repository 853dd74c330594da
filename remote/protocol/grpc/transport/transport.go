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

// Package transport drives one HTTP/2 connection's lifecycle (the
// Connection Lifecycle Machine: preface detection, gRFC A8 keepalive, idle
// timeout, GOAWAY handling) and the per-stream framing/compression state
// machine layered on top of it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/codesjoy/grpccore/stats"
)

// ErrConnClosing indicates that the transport is closing.
var ErrConnClosing = errors.New("transport: the connection is closing")

// ErrStreamDone is returned by write operations on a stream that has
// already been closed locally.
var ErrStreamDone = errors.New("transport: the stream has been done")

// ClientParameters configures the gRFC A8 keepalive protocol for a
// connection.
type ClientParameters struct {
	// Time is the interval, after readiness, between keepalive PINGs. Zero
	// disables keepalive.
	Time time.Duration
	// Timeout is how long to wait for a PING-ACK before the connection is
	// closed with reason keepalive_expired.
	Timeout time.Duration
	// PermitWithoutStream, if true, allows keepalive PINGs to be sent even
	// when there are no active streams.
	PermitWithoutStream bool
}

// ConnectOptions covers the parameters used when establishing a new client
// transport.
type ConnectOptions struct {
	// Authority overrides the value sent in the :authority pseudo-header.
	Authority string
	// WriteBufferSize and ReadBufferSize are not used by NewClientTransport:
	// the framer reads and writes the raw connection directly.
	WriteBufferSize int
	ReadBufferSize  int
	// MaxHeaderListSize bounds the advertised MAX_HEADER_LIST_SIZE setting.
	// Zero selects consts.DefaultMaxHeaderListSize.
	MaxHeaderListSize uint32
	// InitialWindowSize, if non-zero, overrides the per-stream flow control
	// window advertised in the initial SETTINGS frame.
	InitialWindowSize int32
	// KeepaliveParams configures the keepalive protocol. The zero value
	// disables keepalive.
	KeepaliveParams ClientParameters
	// MaxIdleTimeout, if non-zero, closes the connection with reason idle
	// after this long with no open streams.
	MaxIdleTimeout time.Duration
	// StatsHandler is carried with the options; the transport itself emits
	// no stats events to it.
	StatsHandler stats.Handler
	// Dialer overrides how the raw net.Conn is established. Defaults to
	// net.Dialer.DialContext.
	Dialer func(ctx context.Context, network, address string) (net.Conn, error)
}

// GoAwayReason is a restricted, transport-layer interpretation of a peer
// GOAWAY's debug data, used only for behaviors the client must react to
// (such as doubling the keepalive interval after GoAwayTooManyPings).
type GoAwayReason int

const (
	// GoAwayInvalid indicates that no GOAWAY has been received.
	GoAwayInvalid GoAwayReason = iota
	// GoAwayNoReason is the default value when GOAWAY is received.
	GoAwayNoReason
	// GoAwayTooManyPings indicates that a GOAWAY was received with ENHANCE_YOUR_CALM
	// and debug data equal to "too_many_pings".
	GoAwayTooManyPings
)

// CloseReason identifies why a connection was closed, ordered by the
// precedence used to resolve simultaneous termination causes: a larger
// value always wins over a smaller one.
type CloseReason int

const (
	// CloseUnexpected is an unplanned disconnect (e.g. a read error) with
	// no more specific cause identified.
	CloseUnexpected CloseReason = iota
	// CloseGoAway is a graceful close triggered by a peer GOAWAY.
	CloseGoAway
	// CloseIdle is a graceful close triggered by the max-idle timer.
	CloseIdle
	// CloseKeepaliveExpired is a close triggered by a keepalive PING that
	// was never ACKed.
	CloseKeepaliveExpired
	// CloseInitiatedLocally is a graceful close requested by the owner of
	// the transport (channel shutdown).
	CloseInitiatedLocally
)

// String returns the human-readable name of the reason.
func (r CloseReason) String() string {
	switch r {
	case CloseUnexpected:
		return "unexpected"
	case CloseGoAway:
		return "go_away"
	case CloseIdle:
		return "idle"
	case CloseKeepaliveExpired:
		return "keepalive_expired"
	case CloseInitiatedLocally:
		return "initiated_locally"
	default:
		return fmt.Sprintf("close_reason(%d)", int(r))
	}
}

// CallHdr carries per-stream request metadata needed to build the HEADERS
// frame that opens a new stream.
type CallHdr struct {
	// Host, when non-empty, is the value used for :authority; otherwise
	// ConnectOptions.Authority (or the dialed address) is used.
	Host string
	// Method is the full RPC method name, e.g. "/echo.Echo/Get".
	Method string
	// SendCompress is the grpc-encoding advertised on the request, or empty
	// for identity.
	SendCompress string
	// ContentSubtype is appended to "application/grpc+", or omitted when
	// empty (emitting plain "application/grpc").
	ContentSubtype string
}

// Options carries per-Write parameters.
type Options struct {
	// Last indicates this is the final message the client will send;
	// END_STREAM is set on the outbound frame.
	Last bool
}

// ClientTransport is the interface satisfied by one HTTP/2 connection to a
// single backend. Its lifecycle is the Connection Lifecycle Machine.
type ClientTransport interface {
	// NewStream creates and opens a stream for use.
	NewStream(ctx context.Context, callHdr *CallHdr) (*Stream, error)
	// Write sends the header and/or data on the given stream. An empty
	// hdr/data with opts.Last set sends only END_STREAM.
	Write(s *Stream, hdr []byte, data []byte, opts *Options) error
	// CloseStream clears the footprint of a stream when the RPC is
	// dropped. err, if non-nil, is a local error, causing RST_STREAM to be
	// sent.
	CloseStream(s *Stream, err error)
	// Close tears down the transport immediately, aborting every open
	// stream with err.
	Close(err error) error
	// GracefulClose initiates a graceful shutdown: no new streams are
	// admitted, and the connection closes once every open stream finishes.
	// No GOAWAY frame is sent.
	GracefulClose()
}

// netAddr is a minimal net.Addr used for addresses that have not yet been
// dialed; dialing itself is performed by ConnectOptions.Dialer (or the
// default net.Dialer) inside NewClientTransport.
type netAddr struct {
	network string
	address string
}

func (a *netAddr) Network() string { return a.network }
func (a *netAddr) String() string  { return a.address }

// NewNetAddr builds a net.Addr identifying a backend by network and
// address, without resolving or dialing it.
func NewNetAddr(network, address string) (net.Addr, error) {
	if address == "" {
		return nil, errors.New("transport: empty address")
	}
	if network == "" {
		network = "tcp"
	}
	return &netAddr{network: network, address: address}, nil
}
