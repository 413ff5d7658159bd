/*
 * Copyright (c) 2026 RaftKV Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package compression provides configurable compression for RaftKV archives.

The dump tool compresses exported state with one of four algorithms:

1. Gzip: ubiquitous, good ratio, moderate speed
2. Snappy: very fast, moderate ratio
3. LZ4: very fast, moderate ratio, block format
4. Zstd: strong ratio at high speed

Frame Format:
=============

Compressed output carries a small header so archives are self-describing:

	+--------+--------+--------+--------+--------+----------------+
	| Algo   |        Original Length (4B, BE)   | Compressed...  |
	+--------+--------+--------+--------+--------+----------------+

Payloads below the configured minimum size are stored with the none
algorithm tag rather than compressed; tiny inputs only grow.
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm from string
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// Level represents compression level
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 5
	LevelBest    Level = 9
)

// Config holds compression configuration
type Config struct {
	Algorithm Algorithm `json:"algorithm"`
	Level     Level     `json:"level"`
	MinSize   int       `json:"min_size"` // Minimum size to compress
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmGzip,
		Level:     LevelDefault,
		MinSize:   256,
	}
}

// Errors
var (
	ErrInvalidHeader    = errors.New("invalid compression header")
	ErrUnsupportedAlgo  = errors.New("unsupported compression algorithm")
	ErrDecompressFailed = errors.New("decompression failed")
)

// headerSize is the algorithm tag plus the original length.
const headerSize = 5

// Compressor provides compression/decompression operations
type Compressor struct {
	config Config
}

// NewCompressor creates a new compressor
func NewCompressor(config Config) *Compressor {
	return &Compressor{config: config}
}

// Compress frames and compresses data with the configured algorithm.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	algo := c.config.Algorithm
	if len(data) < c.config.MinSize {
		algo = AlgorithmNone
	}

	var payload []byte
	var err error
	switch algo {
	case AlgorithmNone:
		payload = data
	case AlgorithmGzip:
		payload, err = c.gzipCompress(data)
	case AlgorithmSnappy:
		payload = snappy.Encode(nil, data)
	case AlgorithmLZ4:
		payload, err = lz4Compress(data)
		if err == nil && payload == nil {
			// Incompressible block; store it raw.
			algo, payload = AlgorithmNone, data
		}
	case AlgorithmZstd:
		payload, err = zstdCompress(data)
	default:
		return nil, ErrUnsupportedAlgo
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize+len(payload))
	out[0] = byte(algo)
	binary.BigEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[headerSize:], payload)
	return out, nil
}

// Decompress reverses Compress, dispatching on the frame header.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, ErrInvalidHeader
	}
	algo := Algorithm(data[0])
	origLen := binary.BigEndian.Uint32(data[1:])
	payload := data[headerSize:]

	var out []byte
	var err error
	switch algo {
	case AlgorithmNone:
		out = payload
	case AlgorithmGzip:
		out, err = gzipDecompress(payload)
	case AlgorithmSnappy:
		out, err = snappy.Decode(nil, payload)
	case AlgorithmLZ4:
		out, err = lz4Decompress(payload, int(origLen))
	case AlgorithmZstd:
		out, err = zstdDecompress(payload)
	default:
		return nil, ErrUnsupportedAlgo
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	if uint32(len(out)) != origLen {
		return nil, fmt.Errorf("%w: length mismatch", ErrDecompressFailed)
	}
	return out, nil
}

func (c *Compressor) gzipLevel() int {
	switch {
	case c.config.Level <= LevelFastest:
		return gzip.BestSpeed
	case c.config.Level >= LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func (c *Compressor) gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.gzipLevel())
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// lz4Compress returns a nil payload for incompressible input, which
// CompressBlock signals with a zero length.
func lz4Compress(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(data, buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}

func lz4Decompress(data []byte, origLen int) ([]byte, error) {
	out := make([]byte, origLen)
	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func zstdCompress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
