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

package encoding

import (
	"compress/gzip"
	"io"
	"sync"
)

func init() {
	RegisterCompressor(&gzipCompressor{})
}

type gzipCompressor struct {
	writerPool sync.Pool
}

func (c *gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	if gw, ok := c.writerPool.Get().(*gzip.Writer); ok {
		gw.Reset(w)
		return &pooledGzipWriter{Writer: gw, pool: &c.writerPool}, nil
	}
	return gzip.NewWriter(w), nil
}

func (c *gzipCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

func (c *gzipCompressor) Name() string {
	return "gzip"
}

type pooledGzipWriter struct {
	*gzip.Writer
	pool *sync.Pool
}

func (w *pooledGzipWriter) Close() error {
	defer w.pool.Put(w.Writer)
	return w.Writer.Close()
}
