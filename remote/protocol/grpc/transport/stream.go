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
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/codesjoy/grpccore/metadata"
	"github.com/codesjoy/grpccore/status"
	"github.com/codesjoy/grpccore/utils/xsync"
	"google.golang.org/genproto/googleapis/rpc/code"
)

// streamSide tracks one half of the seven-state per-stream automaton
// described by the per-stream state machine: each side independently moves
// idle -> open -> closed, and (idle, open)/(idle, closed) on the server
// side are unreachable because the server cannot advance ahead of the
// client.
type streamSide int

const (
	sideIdle streamSide = iota
	sideOpen
	sideClosed
)

func (s streamSide) String() string {
	switch s {
	case sideIdle:
		return "idle"
	case sideOpen:
		return "open"
	case sideClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// internalViolation builds the status reported when an inbound event would
// violate the per-stream transition table.
func internalViolation(msg string) *status.Status {
	return status.New(code.Code_INTERNAL, msg)
}

// Stream represents an active client-initiated gRPC stream multiplexed over
// one HTTP/2 connection. It owns the per-stream framing/compression state
// (the Per-Stream State Machine) and is read/written by the clientStream
// wrapper in package grpc.
type Stream struct {
	id     uint32
	ctx    context.Context
	cancel context.CancelFunc
	method string

	sendCompress string

	buf      *recvBuffer
	trReader io.Reader

	mu           sync.Mutex
	clientSide   streamSide
	serverSide   streamSide
	recvCompress string

	headerChan  chan struct{}
	headerValid bool
	header      metadata.MD
	headerErr   error

	trailer metadata.MD
	st      *status.Status

	done *xsync.Event

	localSendDone bool
}

func newStream(ctx context.Context, id uint32, method, sendCompress string) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		id:           id,
		ctx:          ctx,
		cancel:       cancel,
		method:       method,
		sendCompress: sendCompress,
		buf:          newRecvBuffer(),
		headerChan:   make(chan struct{}),
		done:         xsync.NewEvent(),
		clientSide:   sideOpen,
		serverSide:   sideIdle,
	}
	s.trReader = &recvBufferReader{ctx: ctx, recv: s.buf}
	return s
}

// ID returns the HTTP/2 stream identifier.
func (s *Stream) ID() uint32 { return s.id }

// Context returns the context associated with the stream.
func (s *Stream) Context() context.Context { return s.ctx }

// Method returns the full RPC method name for the stream.
func (s *Stream) Method() string { return s.method }

// Read implements io.Reader, returning framed bytes from the deframer
// queue. It is used by the parser to reassemble length-prefixed messages.
func (s *Stream) Read(p []byte) (int, error) {
	return s.trReader.Read(p)
}

// SendCompress returns the grpc-encoding advertised on the outbound
// request, if any.
func (s *Stream) SendCompress() string { return s.sendCompress }

// RecvCompress returns the grpc-encoding the server chose for its
// responses. It blocks until the initial metadata (or trailers-only
// response) has been received.
func (s *Stream) RecvCompress() string {
	<-s.headerChan
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvCompress
}

// setRecvCompress records the server's chosen encoding. Must be called
// before headerChan is closed.
func (s *Stream) setRecvCompress(enc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvCompress = enc
}

// recvHeaderFrame applies the transition table to an inbound HEADERS frame,
// which may be the stream's initial response headers, a trailers-only
// response, or the final trailer following one or more DATA frames,
// depending on which side of the automaton is currently idle or open.
// endStream reports whether the frame itself (or the status it carries)
// ends the RPC. It returns whether the frame arrived after a prior HEADERS
// frame already moved the server side to open (i.e. this is a genuine
// trailer rather than the stream's initial headers), whether the server
// side is now closed, and a non-nil violation if the frame arrived out of
// sequence.
func (s *Stream) recvHeaderFrame(endStream bool) (wasOpen, terminal bool, violation *status.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.serverSide {
	case sideIdle:
		if endStream {
			s.serverSide = sideClosed
		} else {
			s.serverSide = sideOpen
		}
		return false, endStream, nil
	case sideOpen:
		if !endStream {
			return true, false, internalViolation("received a second non-terminal HEADERS frame")
		}
		s.serverSide = sideClosed
		return true, true, nil
	default: // sideClosed
		if !endStream {
			return false, false, internalViolation("received headers after the server side had already closed")
		}
		// Duplicate, empty end-of-stream on an already-closed server side
		// is tolerated.
		return false, true, nil
	}
}

// recvData validates an inbound DATA frame against the server side of the
// automaton: payload may only arrive once the server side is open. Data
// while the server side is idle means the server started streaming before
// ever sending headers; data after the server side closed is a stray frame
// after the server already declared the stream finished. Either is a
// protocol violation.
func (s *Stream) recvData() *status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serverSide != sideOpen {
		return internalViolation(fmt.Sprintf("received DATA frame while the server side was %v, want open", s.serverSide))
	}
	return nil
}

// recvStreamEnd applies the END_STREAM transition for a server side that is
// already open, such as an END_STREAM DATA frame with no following trailer
// HEADERS: C.*,S.open -> C.*,S.closed. A duplicate end-of-stream signal on
// an already-closed server side is tolerated as a no-op.
func (s *Stream) recvStreamEnd() *status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.serverSide {
	case sideOpen:
		s.serverSide = sideClosed
		return nil
	case sideClosed:
		return nil
	default:
		return internalViolation("received end-of-stream while the server side was idle")
	}
}

// clientSendMessage applies the client side's transition for an outbound
// message and reports whether the frame should actually be written. Once
// the server side has closed, the transition table says further client
// sends are dropped silently rather than written.
func (s *Stream) clientSendMessage(end bool) (shouldSend bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shouldSend = s.serverSide != sideClosed
	if end {
		s.clientSide = sideClosed
	}
	return shouldSend
}

// Header blocks until the initial response metadata (or a trailers-only
// response) has been received, then returns it.
func (s *Stream) Header() (metadata.MD, error) {
	<-s.headerChan
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.Copy(), s.headerErr
}

// setHeader stores the server's initial metadata and unblocks Header,
// exactly once.
func (s *Stream) setHeader(md metadata.MD) {
	s.mu.Lock()
	if s.headerValid {
		s.mu.Unlock()
		return
	}
	s.headerValid = true
	s.header = md
	s.mu.Unlock()
	close(s.headerChan)
}

// setHeaderErr unblocks Header with an error, exactly once.
func (s *Stream) setHeaderErr(err error) {
	s.mu.Lock()
	if s.headerValid {
		s.mu.Unlock()
		return
	}
	s.headerValid = true
	s.headerErr = err
	s.mu.Unlock()
	close(s.headerChan)
}

// Trailer returns the trailer metadata sent by the server. It is only
// meaningful once the stream has closed.
func (s *Stream) Trailer() metadata.MD {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailer.Copy()
}

// Status returns the terminal gRPC status of the stream, or nil if it has
// not yet closed.
func (s *Stream) Status() *status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Done returns a channel closed once the stream has reached its terminal
// (closed, closed) state.
func (s *Stream) Done() <-chan struct{} {
	return s.done.Done()
}

// finish transitions both sides of the stream to closed, records the final
// status/trailer and unblocks any pending Header/Read calls. It is
// idempotent; only the first call has any effect (P1: a stream id is
// retired exactly once).
func (s *Stream) finish(st *status.Status, trailer metadata.MD) {
	s.mu.Lock()
	if s.clientSide == sideClosed && s.serverSide == sideClosed {
		s.mu.Unlock()
		return
	}
	s.clientSide = sideClosed
	s.serverSide = sideClosed
	s.st = st
	s.trailer = trailer
	headerWasValid := s.headerValid
	s.headerValid = true
	s.mu.Unlock()

	if !headerWasValid {
		close(s.headerChan)
	}
	s.buf.put(recvMsg{err: io.EOF})
	s.done.Fire()
	s.cancel()
}

// recvBufferReader implements io.Reader over a recvBuffer, respecting the
// stream's context and surfacing cancellation as an error.
type recvBufferReader struct {
	ctx  context.Context
	recv *recvBuffer
	last []byte
}

func (r *recvBufferReader) Read(p []byte) (int, error) {
	if r.last != nil {
		n := copy(p, r.last)
		if n == len(r.last) {
			r.last = nil
		} else {
			r.last = r.last[n:]
		}
		return n, nil
	}
	select {
	case <-r.ctx.Done():
		return 0, contextErr(r.ctx)
	case m := <-r.recv.get():
		r.recv.load()
		if m.err != nil {
			return 0, m.err
		}
		n := copy(p, m.buffer)
		if n < len(m.buffer) {
			r.last = m.buffer[n:]
		}
		return n, nil
	}
}

func contextErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return io.EOF
	}
	return status.New(code.Code_CANCELLED, err.Error()).Err()
}
