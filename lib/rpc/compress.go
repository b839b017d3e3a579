// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a response's Data is compressed. The
// values are wire constants.
type Compression uint8

const (
	// CompressionNone leaves Data as plain CBOR.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression, used for binary
	// payloads.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level, used for
	// text-like payloads (config files, logs).
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// compressThreshold is the smallest payload worth compressing.
const compressThreshold = 64 << 10

// textSampleSize is how much of a payload is inspected to decide
// whether it is text.
const textSampleSize = 4096

var errIncompressible = errors.New("data is incompressible")

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("rpc: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxMessageSize))
	if err != nil {
		panic("rpc: zstd decoder initialization failed: " + err.Error())
	}
}

// compressPayload picks an algorithm for data and compresses it. Small
// or incompressible payloads come back unchanged with CompressionNone.
func compressPayload(data []byte) ([]byte, Compression) {
	if len(data) < compressThreshold {
		return data, CompressionNone
	}
	var (
		compressed []byte
		err        error
		tag        Compression
	)
	if utf8.Valid(data[:textSampleSize]) {
		compressed, err = compressZstd(data)
		tag = CompressionZstd
	} else {
		compressed, err = compressLZ4(data)
		tag = CompressionLZ4
	}
	if err != nil {
		return data, CompressionNone
	}
	return compressed, tag
}

// decompressPayload reverses compressPayload. size is the original
// length, which is checked exactly.
func decompressPayload(data []byte, tag Compression, size int) ([]byte, error) {
	if size < 0 || size > maxMessageSize {
		return nil, fmt.Errorf("payload size %d out of range", size)
	}
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(data, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// Zero means lz4 judged the block incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}
