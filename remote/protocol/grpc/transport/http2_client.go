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

package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/codesjoy/grpccore/internal/timer"
	"github.com/codesjoy/grpccore/metadata"
	"github.com/codesjoy/grpccore/remote/protocol/grpc/consts"
	"github.com/codesjoy/grpccore/status"
	"google.golang.org/genproto/googleapis/rpc/code"
)

// http2Client drives the Connection Lifecycle Machine for one HTTP/2
// connection: preface/readiness detection, gRFC A8 keepalive, idle timeout
// and GOAWAY handling, layered under the per-stream state machine kept on
// each Stream.
type http2Client struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   net.Conn

	// connID identifies this physical connection in logs, distinguishing
	// it from prior and subsequent reconnects to the same address.
	connID string

	fr  *http2.Framer
	wmu sync.Mutex

	scheme    string
	authority string

	kp      ClientParameters
	maxIdle time.Duration

	onPrefaceReceived func()
	onGoAway          func(GoAwayReason)
	onClose           func()

	mu            sync.Mutex
	nextID        uint32
	activeStreams map[uint32]*Stream
	draining      bool
	closed        bool
	ready         bool
	goAwayReason  GoAwayReason

	// closeReason/closeErr track the highest-precedence close cause
	// observed so far; doClose may be called more than once (concurrently,
	// by the read loop and a timer or an explicit Close) and only the
	// first call performs teardown, but every call's reason is considered
	// when deciding what to report.
	closeReason CloseReason
	closeErr    error

	keepaliveAckCh chan struct{}
	idleTimer      *timer.Timer
}

// NewClientTransport dials addr and performs the HTTP/2 client preface
// handshake, returning a ClientTransport whose readiness is not yet
// signaled: onPrefaceReceived fires only once the peer's first SETTINGS
// frame is observed by the read loop (P2: a connection is never reported
// ready before that happens).
func NewClientTransport(
	connectCtx, ctx context.Context,
	addr net.Addr,
	opts ConnectOptions,
	onPrefaceReceived func(),
	onGoAway func(GoAwayReason),
	onClose func(),
) (ClientTransport, error) {
	dial := opts.Dialer
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	conn, err := dial(connectCtx, addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr.String(), err)
	}

	select {
	case <-connectCtx.Done():
		conn.Close()
		return nil, connectCtx.Err()
	default:
	}

	if _, err := conn.Write([]byte(http2.ClientPreface)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: writing client preface: %w", err)
	}

	tCtx, cancel := context.WithCancel(ctx)
	t := &http2Client{
		ctx:               tCtx,
		cancel:            cancel,
		conn:              conn,
		connID:            uuid.NewString(),
		scheme:            consts.SchemeHTTP,
		authority:         opts.Authority,
		kp:                opts.KeepaliveParams,
		maxIdle:           opts.MaxIdleTimeout,
		onPrefaceReceived: onPrefaceReceived,
		onGoAway:          onGoAway,
		onClose:           onClose,
		nextID:            1,
		activeStreams:     make(map[uint32]*Stream),
		keepaliveAckCh:    make(chan struct{}, 1),
		idleTimer:         timer.New(),
	}
	if t.authority == "" {
		t.authority = addr.String()
	}

	fr := http2.NewFramer(conn, conn)
	fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)
	maxHeaderListSize := opts.MaxHeaderListSize
	if maxHeaderListSize == 0 {
		maxHeaderListSize = consts.DefaultMaxHeaderListSize
	}
	t.fr = fr

	settings := []http2.Setting{
		{ID: http2.SettingEnablePush, Val: 0},
		{ID: http2.SettingMaxHeaderListSize, Val: maxHeaderListSize},
	}
	if opts.InitialWindowSize > 0 {
		settings = append(settings, http2.Setting{ID: http2.SettingInitialWindowSize, Val: uint32(opts.InitialWindowSize)})
	}
	if err := fr.WriteSettings(settings...); err != nil {
		conn.Close()
		cancel()
		return nil, fmt.Errorf("transport: writing initial settings: %w", err)
	}

	// stream_opened/idle_timer: the connection starts with no open streams,
	// so the idle timer is armed from construction.
	t.resetIdleTimerLocked()

	go t.reader()

	return t, nil
}

// NewStream opens a new client-initiated stream, sending the HEADERS frame
// that carries the request's pseudo-headers and metadata.
func (t *http2Client) NewStream(ctx context.Context, callHdr *CallHdr) (*Stream, error) {
	t.mu.Lock()
	if t.closed || t.draining {
		t.mu.Unlock()
		return nil, ErrConnClosing
	}
	id := t.nextID
	t.nextID += 2
	s := newStream(ctx, id, callHdr.Method, callHdr.SendCompress)
	t.activeStreams[id] = s
	t.cancelIdleTimerLocked()
	t.mu.Unlock()

	var hbuf bytes.Buffer
	henc := hpack.NewEncoder(&hbuf)

	authority := callHdr.Host
	if authority == "" {
		authority = t.authority
	}
	contentType := consts.ContentType
	if callHdr.ContentSubtype != "" {
		contentType = contentType + "+" + callHdr.ContentSubtype
	}

	fields := []hpack.HeaderField{
		{Name: consts.PseudoHeaderMethod, Value: consts.MethodPost},
		{Name: consts.PseudoHeaderScheme, Value: t.scheme},
		{Name: consts.PseudoHeaderPath, Value: callHdr.Method},
		{Name: consts.PseudoHeaderAuthority, Value: authority},
		{Name: consts.HeaderContentType, Value: contentType},
		{Name: consts.HeaderTE, Value: consts.TEValue},
		{Name: consts.HeaderGRPCAcceptEnc, Value: "gzip,deflate"},
		{Name: consts.HeaderUserAgent, Value: "grpccore/1.0"},
	}
	if callHdr.SendCompress != "" {
		fields = append(fields, hpack.HeaderField{Name: consts.HeaderGRPCEncoding, Value: callHdr.SendCompress})
	}
	for _, f := range fields {
		if err := henc.WriteField(f); err != nil {
			t.abortStream(id)
			return nil, fmt.Errorf("transport: encoding headers: %w", err)
		}
	}

	t.wmu.Lock()
	err := t.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      id,
		BlockFragment: hbuf.Bytes(),
		EndHeaders:    true,
	})
	t.wmu.Unlock()
	if err != nil {
		t.abortStream(id)
		return nil, fmt.Errorf("transport: writing headers: %w", err)
	}
	return s, nil
}

func (t *http2Client) abortStream(id uint32) {
	t.mu.Lock()
	delete(t.activeStreams, id)
	empty := len(t.activeStreams) == 0
	if empty && !t.closed {
		t.resetIdleTimerLocked()
	}
	t.mu.Unlock()
}

// Write sends hdr+data as one or more DATA frames, setting END_STREAM when
// opts.Last is true.
func (t *http2Client) Write(s *Stream, hdr []byte, data []byte, opts *Options) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrConnClosing
	}
	t.mu.Unlock()

	if !s.clientSendMessage(opts.Last) {
		// The server side already closed (e.g. a trailers-only response
		// arrived before the client finished sending); drop the message
		// silently rather than write it.
		return nil
	}

	buf := make([]byte, 0, len(hdr)+len(data))
	buf = append(buf, hdr...)
	buf = append(buf, data...)

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if len(buf) == 0 {
		return t.fr.WriteData(s.id, opts.Last, nil)
	}
	for len(buf) > 0 {
		chunk := buf
		if len(chunk) > consts.MaxMaxFrameSize {
			chunk = chunk[:consts.MaxMaxFrameSize]
		}
		buf = buf[len(chunk):]
		if err := t.fr.WriteData(s.id, opts.Last && len(buf) == 0, chunk); err != nil {
			return err
		}
	}
	return nil
}

// CloseStream clears the footprint of a stream; err != nil sends RST_STREAM.
func (t *http2Client) CloseStream(s *Stream, err error) {
	t.mu.Lock()
	if _, ok := t.activeStreams[s.id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.activeStreams, s.id)
	empty := len(t.activeStreams) == 0
	draining := t.draining
	closed := t.closed
	if empty && !closed {
		t.resetIdleTimerLocked()
	}
	t.mu.Unlock()

	st := status.New(code.Code_OK, "")
	if err != nil {
		t.wmu.Lock()
		t.fr.WriteRSTStream(s.id, http2.ErrCodeCancel)
		t.wmu.Unlock()
		st = status.FromError(err)
	}
	s.finish(st, nil)

	if draining && empty {
		t.doClose(CloseInitiatedLocally, nil)
	}
}

// GracefulClose initiates a local shutdown: no new streams are admitted and
// the transport closes once every open stream finishes.
func (t *http2Client) GracefulClose() {
	t.mu.Lock()
	if t.draining || t.closed {
		t.mu.Unlock()
		return
	}
	t.draining = true
	empty := len(t.activeStreams) == 0
	t.mu.Unlock()

	if empty {
		t.doClose(CloseInitiatedLocally, nil)
	}
}

// Close tears the transport down immediately, aborting every open stream.
func (t *http2Client) Close(err error) error {
	t.doClose(CloseUnexpected, err)
	return nil
}

// doClose performs the actual teardown exactly once, regardless of which
// caller (explicit Close/GracefulClose, or the read loop observing EOF or a
// peer GOAWAY) first notices the connection is finished. Every call (even
// one arriving after teardown has started) records its reason, and the one
// reported is always the highest-precedence cause observed: unexpected <
// go_away < idle < keepalive_expired < initiated_locally.
func (t *http2Client) doClose(reason CloseReason, err error) {
	t.mu.Lock()
	if reason >= t.closeReason {
		t.closeReason = reason
		t.closeErr = err
	}
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	streams := t.activeStreams
	t.activeStreams = nil
	t.stopTimersLocked()
	t.mu.Unlock()

	t.conn.Close()
	t.cancel()

	// Read back the reason after the slow teardown I/O above so that a
	// near-simultaneous caller with a higher-precedence reason has a chance
	// to record it before it is reported.
	t.mu.Lock()
	finalReason, finalErr := t.closeReason, t.closeErr
	t.mu.Unlock()

	slog.Debug("transport: connection closed", "conn_id", t.connID, "reason", finalReason.String())

	st := status.New(code.Code_UNAVAILABLE, closeMessage(finalReason, finalErr))
	for _, s := range streams {
		s.finish(st, nil)
	}
	if t.onClose != nil {
		t.onClose()
	}
}

func closeMessage(reason CloseReason, err error) string {
	if err != nil {
		return fmt.Sprintf("transport closed (%s): %v", reason, err)
	}
	return fmt.Sprintf("transport closed (%s)", reason)
}

// reader is the connection's single read loop; every inbound frame is
// handled sequentially, and it is the only goroutine that ever calls
// t.fr.ReadFrame.
func (t *http2Client) reader() {
	for {
		frame, err := t.fr.ReadFrame()
		if err != nil {
			t.doClose(CloseUnexpected, err)
			return
		}
		switch f := frame.(type) {
		case *http2.SettingsFrame:
			t.handleSettings(f)
		case *http2.PingFrame:
			t.handlePing(f)
		case *http2.GoAwayFrame:
			t.handleGoAway(f)
		case *http2.MetaHeadersFrame:
			t.handleHeaders(f)
		case *http2.DataFrame:
			t.handleData(f)
		case *http2.RSTStreamFrame:
			t.handleRSTStream(f)
		case *http2.WindowUpdateFrame, *http2.PriorityFrame:
			// WINDOW_UPDATE and PRIORITY frames are ignored: this transport
			// does no flow-control accounting and sends no WINDOW_UPDATE
			// frames of its own.
		default:
			slog.Debug("transport: ignoring frame", "type", fmt.Sprintf("%T", f))
		}
	}
}

func (t *http2Client) handleSettings(f *http2.SettingsFrame) {
	if f.IsAck() {
		return
	}
	t.wmu.Lock()
	t.fr.WriteSettingsAck()
	t.wmu.Unlock()

	t.mu.Lock()
	first := !t.ready
	if first {
		t.ready = true
	}
	t.mu.Unlock()

	if first {
		if t.onPrefaceReceived != nil {
			t.onPrefaceReceived()
		}
		t.startKeepalive()
	}
}

func (t *http2Client) handlePing(f *http2.PingFrame) {
	if f.IsAck() {
		select {
		case t.keepaliveAckCh <- struct{}{}:
		default:
		}
		return
	}
	t.wmu.Lock()
	t.fr.WritePing(true, f.Data)
	t.wmu.Unlock()
}

func (t *http2Client) handleGoAway(f *http2.GoAwayFrame) {
	reason := GoAwayNoReason
	if f.ErrCode == http2.ErrCodeEnhanceYourCalm && string(f.DebugData()) == "too_many_pings" {
		reason = GoAwayTooManyPings
	}
	t.mu.Lock()
	t.goAwayReason = reason
	t.draining = true
	empty := len(t.activeStreams) == 0
	t.mu.Unlock()

	if t.onGoAway != nil {
		t.onGoAway(reason)
	}

	t.wmu.Lock()
	t.fr.WriteGoAway(f.LastStreamID, http2.ErrCodeNo, nil)
	t.wmu.Unlock()

	if empty {
		t.doClose(CloseGoAway, nil)
	}
}

func (t *http2Client) handleRSTStream(f *http2.RSTStreamFrame) {
	t.mu.Lock()
	s, ok := t.activeStreams[f.StreamID]
	if ok {
		delete(t.activeStreams, f.StreamID)
		if len(t.activeStreams) == 0 {
			t.resetIdleTimerLocked()
		}
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	st := status.New(code.Code_UNAVAILABLE, fmt.Sprintf("transport: stream reset by peer, error code %v", f.ErrCode))
	s.finish(st, nil)
}

// abortStreamWithStatus tears a single stream down because an inbound
// frame violated the per-stream transition table: the stream is dropped
// from the connection, an RST_STREAM is sent to the peer, and the RPC
// fails with st rather than leaving the violation unreported.
func (t *http2Client) abortStreamWithStatus(s *Stream, st *status.Status) {
	t.mu.Lock()
	_, ok := t.activeStreams[s.id]
	delete(t.activeStreams, s.id)
	if len(t.activeStreams) == 0 && !t.closed {
		t.resetIdleTimerLocked()
	}
	t.mu.Unlock()
	if ok {
		t.wmu.Lock()
		t.fr.WriteRSTStream(s.id, http2.ErrCodeInternal)
		t.wmu.Unlock()
	}
	s.finish(st, nil)
}

func (t *http2Client) handleData(f *http2.DataFrame) {
	t.mu.Lock()
	s, ok := t.activeStreams[f.StreamID]
	t.mu.Unlock()
	if !ok {
		return
	}
	if violation := s.recvData(); violation != nil {
		t.abortStreamWithStatus(s, violation)
		return
	}
	if size := len(f.Data()); size > 0 {
		buf := make([]byte, size)
		copy(buf, f.Data())
		s.buf.put(recvMsg{buffer: buf})
	}
	if f.StreamEnded() {
		if violation := s.recvStreamEnd(); violation != nil {
			t.abortStreamWithStatus(s, violation)
			return
		}
		st := status.New(code.Code_OK, "")
		s.finish(st, s.Trailer())
	}
}

func (t *http2Client) handleHeaders(f *http2.MetaHeadersFrame) {
	t.mu.Lock()
	s, ok := t.activeStreams[f.StreamID]
	t.mu.Unlock()
	if !ok {
		return
	}

	md := metadata.MD{}
	var httpStatus string
	var grpcStatus *int
	var grpcMessage string
	for _, field := range f.Fields {
		switch field.Name {
		case consts.PseudoHeaderStatus:
			httpStatus = field.Value
		case consts.HeaderGRPCStatus:
			c := parseGRPCStatus(field.Value)
			grpcStatus = &c
		case consts.HeaderGRPCMessage:
			grpcMessage = field.Value
		case consts.HeaderGRPCEncoding:
			s.setRecvCompress(field.Value)
			md.Append(field.Name, field.Value)
		default:
			md.Append(field.Name, field.Value)
		}
	}

	// An informational 1xx response never advances either side of the
	// automaton; skip it and wait for the real header block.
	if len(httpStatus) == 3 && httpStatus[0] == '1' {
		return
	}

	// A grpc-status trailer or a non-200 status from a non-gRPC-aware
	// intermediary both end the RPC regardless of the frame's literal
	// END_STREAM bit.
	endStream := f.StreamEnded() || grpcStatus != nil || (httpStatus != "" && httpStatus != "200")
	wasOpen, terminal, violation := s.recvHeaderFrame(endStream)
	if violation != nil {
		t.abortStreamWithStatus(s, violation)
		return
	}

	switch {
	case grpcStatus != nil:
		// Trailers-only response, or the true trailer following prior DATA
		// frames: either way this HEADERS frame carries the grpc-status/
		// grpc-message trailer.
		st := status.New(code.Code(*grpcStatus), grpcMessage)
		s.setHeader(metadata.MD{})
		if terminal {
			s.finish(st, md)
		}
	case httpStatus != "" && httpStatus != "200":
		st := status.New(httpStatusToGRPCCode(httpStatus), fmt.Sprintf("unexpected HTTP status %s", httpStatus))
		s.setHeaderErr(st.Err())
		if terminal {
			s.finish(st, nil)
		}
	case !terminal:
		s.setHeader(md)
	case wasOpen:
		// A genuine trailer following prior DATA frames with no
		// grpc-status present: default to unknown rather than assume OK.
		s.setHeader(metadata.MD{})
		s.finish(status.New(code.Code_UNKNOWN, "grpc: missing grpc-status trailer"), md)
	default:
		// END_STREAM on the initial HEADERS frame with no grpc-status is an
		// empty trailers-only response; treat as OK with empty trailers.
		s.setHeader(metadata.MD{})
		s.finish(status.New(code.Code_OK, ""), md)
	}
}

func parseGRPCStatus(v string) int {
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// httpStatusToGRPCCode maps a non-200 :status pseudo-header to the gRPC
// code a well-behaved client reports when no grpc-status trailer was ever
// sent (e.g. the request was rejected by a proxy or load balancer before
// reaching a gRPC server).
func httpStatusToGRPCCode(httpStatus string) code.Code {
	switch httpStatus {
	case "400":
		return code.Code_INTERNAL
	case "401":
		return code.Code_UNAUTHENTICATED
	case "403":
		return code.Code_PERMISSION_DENIED
	case "404":
		return code.Code_UNIMPLEMENTED
	case "429", "502", "503", "504":
		return code.Code_UNAVAILABLE
	default:
		return code.Code_UNKNOWN
	}
}

// startKeepalive begins the gRFC A8 keepalive loop once the connection is
// ready. It is a no-op if keepalive is disabled.
func (t *http2Client) startKeepalive() {
	if t.kp.Time <= 0 {
		return
	}
	var payload [8]byte
	rand.Read(payload[:])
	go t.keepaliveLoop(payload)
}

func (t *http2Client) keepaliveLoop(payload [8]byte) {
	interval := t.kp.Time
	for {
		timer := time.NewTimer(interval)
		select {
		case <-t.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		t.mu.Lock()
		hasStreams := len(t.activeStreams) > 0
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		if !hasStreams && !t.kp.PermitWithoutStream {
			continue
		}

		t.wmu.Lock()
		err := t.fr.WritePing(false, payload)
		t.wmu.Unlock()
		if err != nil {
			return
		}

		ackTimer := time.NewTimer(t.kp.Timeout)
		select {
		case <-t.ctx.Done():
			ackTimer.Stop()
			return
		case <-t.keepaliveAckCh:
			ackTimer.Stop()
		case <-ackTimer.C:
			slog.Warn("transport: keepalive ping not acked in time", "conn_id", t.connID, "timeout", t.kp.Timeout)
			t.doClose(CloseKeepaliveExpired, nil)
			return
		}
	}
}

// resetIdleTimerLocked (re)arms the max-idle timer, replacing any prior
// scheduling. Callers must hold t.mu.
func (t *http2Client) resetIdleTimerLocked() {
	if t.maxIdle <= 0 {
		return
	}
	t.idleTimer.Schedule(t.maxIdle, func() {
		t.doClose(CloseIdle, nil)
	})
}

// cancelIdleTimerLocked disarms the max-idle timer because a stream is now
// open. Callers must hold t.mu.
func (t *http2Client) cancelIdleTimerLocked() {
	t.idleTimer.Cancel()
}

func (t *http2Client) stopTimersLocked() {
	t.idleTimer.Cancel()
}

