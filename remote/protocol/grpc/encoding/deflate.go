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
	"compress/flate"
	"io"
)

func init() {
	RegisterCompressor(&deflateCompressor{})
}

type deflateCompressor struct{}

func (deflateCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, flate.DefaultCompression)
}

func (deflateCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return flate.NewReader(r), nil
}

func (deflateCompressor) Name() string {
	return "deflate"
}
