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
	"testing"

	"google.golang.org/genproto/googleapis/rpc/code"
)

func newTestStream() *Stream {
	return newStream(context.Background(), 1, "/x/Y", "")
}

func TestRecvDataWhileServerIdleIsViolation(t *testing.T) {
	s := newTestStream()
	if v := s.recvData(); v == nil {
		t.Fatal("expected a violation for DATA arriving before any headers")
	} else if v.Code() != code.Code_INTERNAL {
		t.Fatalf("expected INTERNAL, got %v", v.Code())
	}
}

func TestRecvDataOnceServerOpenSucceeds(t *testing.T) {
	s := newTestStream()
	if _, _, v := s.recvHeaderFrame(false); v != nil {
		t.Fatalf("recvHeaderFrame: %v", v)
	}
	if v := s.recvData(); v != nil {
		t.Fatalf("expected DATA to be accepted once the server side is open, got %v", v)
	}
}

func TestRecvDataAfterServerClosedIsViolation(t *testing.T) {
	s := newTestStream()
	if _, _, v := s.recvHeaderFrame(true); v != nil {
		t.Fatalf("recvHeaderFrame: %v", v)
	}
	if v := s.recvData(); v == nil {
		t.Fatal("expected a violation for DATA arriving after the server side closed")
	}
}

func TestRecvHeaderFrameTrailersOnly(t *testing.T) {
	s := newTestStream()
	wasOpen, terminal, v := s.recvHeaderFrame(true)
	if v != nil {
		t.Fatalf("recvHeaderFrame: %v", v)
	}
	if wasOpen {
		t.Fatal("trailers-only should not report wasOpen")
	}
	if !terminal {
		t.Fatal("trailers-only should be terminal")
	}
}

func TestRecvHeaderFrameThenTrailer(t *testing.T) {
	s := newTestStream()
	if _, terminal, v := s.recvHeaderFrame(false); v != nil || terminal {
		t.Fatalf("initial headers: terminal=%v err=%v", terminal, v)
	}
	wasOpen, terminal, v := s.recvHeaderFrame(true)
	if v != nil {
		t.Fatalf("trailer: %v", v)
	}
	if !wasOpen || !terminal {
		t.Fatalf("expected a terminal trailer following open headers, got wasOpen=%v terminal=%v", wasOpen, terminal)
	}
}

func TestRecvHeaderFrameSecondNonTerminalIsViolation(t *testing.T) {
	s := newTestStream()
	if _, _, v := s.recvHeaderFrame(false); v != nil {
		t.Fatalf("initial headers: %v", v)
	}
	if _, _, v := s.recvHeaderFrame(false); v == nil {
		t.Fatal("expected a violation for a second non-terminal HEADERS frame")
	}
}

func TestRecvHeaderFrameDuplicateCloseTolerated(t *testing.T) {
	s := newTestStream()
	if _, _, v := s.recvHeaderFrame(true); v != nil {
		t.Fatalf("first close: %v", v)
	}
	if _, _, v := s.recvHeaderFrame(true); v != nil {
		t.Fatalf("expected a duplicate empty end-of-stream to be tolerated, got %v", v)
	}
}

func TestRecvHeaderFrameNonEmptyAfterCloseIsViolation(t *testing.T) {
	s := newTestStream()
	if _, _, v := s.recvHeaderFrame(true); v != nil {
		t.Fatalf("first close: %v", v)
	}
	if _, _, v := s.recvHeaderFrame(false); v == nil {
		t.Fatal("expected a violation for headers arriving after the server side already closed")
	}
}

func TestRecvStreamEndFromOpen(t *testing.T) {
	s := newTestStream()
	if _, _, v := s.recvHeaderFrame(false); v != nil {
		t.Fatalf("initial headers: %v", v)
	}
	if v := s.recvStreamEnd(); v != nil {
		t.Fatalf("recvStreamEnd: %v", v)
	}
	if v := s.recvStreamEnd(); v != nil {
		t.Fatalf("expected a duplicate end-of-stream to be tolerated, got %v", v)
	}
}

func TestRecvStreamEndWhileIdleIsViolation(t *testing.T) {
	s := newTestStream()
	if v := s.recvStreamEnd(); v == nil {
		t.Fatal("expected a violation for end-of-stream while the server side is idle")
	}
}

func TestClientSendMessageDropsAfterServerClosed(t *testing.T) {
	s := newTestStream()
	if shouldSend := s.clientSendMessage(false); !shouldSend {
		t.Fatal("expected the first message to be sent")
	}
	if _, _, v := s.recvHeaderFrame(true); v != nil {
		t.Fatalf("trailers-only: %v", v)
	}
	if shouldSend := s.clientSendMessage(true); shouldSend {
		t.Fatal("expected a send after the server side closed to be dropped silently")
	}
}
