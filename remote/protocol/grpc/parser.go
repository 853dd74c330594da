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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/codesjoy/grpccore/remote/protocol/grpc/consts"
	"github.com/codesjoy/grpccore/remote/protocol/grpc/encoding"
	"github.com/codesjoy/grpccore/remote/protocol/grpc/transport"
	"github.com/codesjoy/grpccore/status"
	"google.golang.org/genproto/googleapis/rpc/code"
)

// payloadFormat is the first byte of a gRPC message, marking whether the
// payload that follows is compressed.
type payloadFormat uint8

const (
	compressionNone payloadFormat = 0
	compressionMade payloadFormat = 1
)

// payloadInfo captures the wire details of a single received message, used
// to populate stats events.
type payloadInfo struct {
	compressedLength   int
	uncompressedBytes  []byte
}

// SharedBufferPool pools the byte slices backing received messages, reused
// across streams to avoid a per-message allocation.
type SharedBufferPool interface {
	// Get returns a buffer of at least the requested length.
	Get(length int) []byte
	// Put returns a buffer obtained from Get for reuse.
	Put(buf *[]byte)
}

// nopBufferPool allocates a fresh buffer for every call and never reuses
// one; it is used when Config.DisableRecvBufferPool is set.
type nopBufferPool struct{}

func (nopBufferPool) Get(length int) []byte { return make([]byte, length) }
func (nopBufferPool) Put(*[]byte)           {}

type simpleBufferPool struct {
	pool sync.Pool
}

func (p *simpleBufferPool) Get(length int) []byte {
	if v := p.pool.Get(); v != nil {
		buf := v.(*[]byte)
		if cap(*buf) >= length {
			return (*buf)[:length]
		}
	}
	return make([]byte, length)
}

func (p *simpleBufferPool) Put(buf *[]byte) {
	p.pool.Put(buf)
}

var (
	shareBufferPoolOnce sync.Once
	shareBufferPool     SharedBufferPool
)

// getShareBufferPool returns the process-wide default SharedBufferPool.
func getShareBufferPool() SharedBufferPool {
	shareBufferPoolOnce.Do(func() {
		shareBufferPool = &simpleBufferPool{}
	})
	return shareBufferPool
}

// parser deframes a stream of length-prefixed gRPC messages read from r.
type parser struct {
	r              io.Reader
	recvBufferPool SharedBufferPool
	header         [consts.HeaderLen]byte
}

// recvMsg reads a single gRPC-framed message, enforcing maxReceiveMessageSize
// against the length prefix before reading the payload.
func (p *parser) recvMsg(maxReceiveMessageSize int) (payloadFormat, []byte, error) {
	if _, err := io.ReadFull(p.r, p.header[:]); err != nil {
		return 0, nil, err
	}

	pf := payloadFormat(p.header[0])
	length := binary.BigEndian.Uint32(p.header[1:])
	if length == 0 {
		return pf, nil, nil
	}
	if int(length) > maxReceiveMessageSize {
		return 0, nil, status.New(
			code.Code_RESOURCE_EXHAUSTED,
			fmt.Sprintf("grpc: received message larger than max (%d vs. %d)", length, maxReceiveMessageSize),
		).Err()
	}

	pool := p.recvBufferPool
	if pool == nil {
		pool = nopBufferPool{}
	}
	buf := pool.Get(int(length))
	if _, err := io.ReadFull(p.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return pf, buf, nil
}

// recv reads, decompresses and unmarshals one message from p into m.
func recv(
	p *parser,
	c encoding.Codec,
	s *transport.Stream,
	m interface{},
	maxReceiveMessageSize int,
	payInfo *payloadInfo,
	decompressor encoding.Compressor,
) error {
	pf, d, err := p.recvMsg(maxReceiveMessageSize)
	if err != nil {
		return err
	}
	if payInfo != nil {
		payInfo.compressedLength = len(d)
	}

	if pf == compressionMade {
		if decompressor == nil {
			return status.New(
				code.Code_INTERNAL,
				fmt.Sprintf("grpc: Decompressor is not installed for grpc-encoding %q", s.RecvCompress()),
			).Err()
		}
		dr, err := decompressor.Decompress(bytes.NewReader(d))
		if err != nil {
			return status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: failed to decompress the received message: %v", err)).Err()
		}
		d, err = io.ReadAll(dr)
		if err != nil {
			return status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: failed to decompress the received message: %v", err)).Err()
		}
	}
	if len(d) > maxReceiveMessageSize {
		return status.New(
			code.Code_RESOURCE_EXHAUSTED,
			fmt.Sprintf("grpc: received message after decompression larger than max (%d vs. %d)", len(d), maxReceiveMessageSize),
		).Err()
	}
	if err := c.Unmarshal(d, m); err != nil {
		return status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: failed to unmarshal the received message: %v", err)).Err()
	}
	if payInfo != nil {
		payInfo.uncompressedBytes = d
	}
	return nil
}

// encode marshals m with codec c. A nil m yields an empty payload.
func encode(c encoding.Codec, m interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := c.Marshal(m)
	if err != nil {
		return nil, status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: error while marshaling: %v", err)).Err()
	}
	if uint(len(b)) > uint(0xffffffff) {
		return nil, status.New(code.Code_RESOURCE_EXHAUSTED, fmt.Sprintf("grpc: message too large (%d bytes)", len(b))).Err()
	}
	return b, nil
}

// compress compresses data with comp, returning nil if comp is nil or the
// payload is smaller than minSize (compressing it would not be worth the
// per-message overhead), in which case the message is sent uncompressed.
func compress(data []byte, comp encoding.Compressor, minSize int) ([]byte, error) {
	if comp == nil || len(data) < minSize {
		return nil, nil
	}
	var buf bytes.Buffer
	w, err := comp.Compress(&buf)
	if err != nil {
		return nil, status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: error while compressing: %v", err)).Err()
	}
	if _, err := w.Write(data); err != nil {
		return nil, status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: error while compressing: %v", err)).Err()
	}
	if err := w.Close(); err != nil {
		return nil, status.New(code.Code_INTERNAL, fmt.Sprintf("grpc: error while compressing: %v", err)).Err()
	}
	return buf.Bytes(), nil
}

// msgHeader returns the 5-byte length-prefix header plus the payload that
// follows it: compData if the message was compressed, data otherwise.
func msgHeader(data, compData []byte) (hdr, payload []byte) {
	hdr = make([]byte, consts.HeaderLen)
	if compData != nil {
		hdr[0] = byte(compressionMade)
		payload = compData
	} else {
		hdr[0] = byte(compressionNone)
		payload = data
	}
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(payload)))
	return hdr, payload
}

// toRPCErr converts any error surfaced by the transport or stream layer
// into a status error, leaving io.EOF untouched since it is used as the
// sentinel for a cleanly ended stream.
func toRPCErr(err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	if st, ok := status.CoverError(err); ok {
		return st.Err()
	}
	return status.New(code.Code_UNKNOWN, err.Error()).Err()
}

// PreparedMsg holds a message that has already been marshaled and
// compressed, so that SendMsg can skip that work on every call (e.g. when
// broadcasting one payload across many streams).
type PreparedMsg struct {
	hdr         []byte
	payload     []byte
	encodedData []byte
}

// Encode marshals and compresses m once, for later reuse via SendMsg.
func (p *PreparedMsg) Encode(codec encoding.Codec, comp encoding.Compressor, minCompressSize int, m interface{}) error {
	data, err := encode(codec, m)
	if err != nil {
		return err
	}
	compData, err := compress(data, comp, minCompressSize)
	if err != nil {
		return err
	}
	p.encodedData = data
	p.hdr, p.payload = msgHeader(data, compData)
	return nil
}
