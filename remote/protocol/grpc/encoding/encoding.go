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

// Package encoding defines the pluggable message codec and compressor
// registries used when framing gRPC messages on the wire.
package encoding

import (
	"io"
	"sync"
)

// Identity is the name of the no-op compressor, equivalent to omitting
// grpc-encoding entirely.
const Identity = "identity"

// Codec defines the interface used to marshal/unmarshal RPC payloads.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Compressor is used for compressing and decompressing when sending or
// receiving messages.
type Compressor interface {
	// Compress wraps w so that bytes written to the returned WriteCloser
	// are compressed and written to w. The returned WriteCloser must be
	// closed to flush the compressed bytes.
	Compress(w io.Writer) (io.WriteCloser, error)
	// Decompress wraps r so that bytes read from the returned Reader are
	// read and decompressed from r.
	Decompress(r io.Reader) (io.Reader, error)
	// Name returns the name of the compressor, which is also used as the
	// value of the grpc-encoding header.
	Name() string
}

var (
	mu          sync.RWMutex
	codecs      = map[string]Codec{}
	compressors = map[string]Compressor{}
)

// RegisterCodec registers the given codec under its Name(), overwriting any
// codec previously registered with that name.
func RegisterCodec(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	codecs[c.Name()] = c
}

// GetCodec returns the codec registered under name, or nil.
func GetCodec(name string) Codec {
	mu.RLock()
	defer mu.RUnlock()
	return codecs[name]
}

// RegisterCompressor registers the given compressor under its Name(),
// overwriting any compressor previously registered with that name.
func RegisterCompressor(c Compressor) {
	mu.Lock()
	defer mu.Unlock()
	compressors[c.Name()] = c
}

// GetCompressor returns the compressor registered under name, or nil if
// name is empty or unregistered.
func GetCompressor(name string) Compressor {
	if name == "" || name == Identity {
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	return compressors[name]
}
