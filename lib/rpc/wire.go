// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"fmt"

	"github.com/bureau-foundation/privbridge/lib/codec"
)

// maxMessageSize bounds a single request or response. File contents
// are the largest payloads that cross the bridge.
const maxMessageSize = 64 << 20

// maxPayloadSize bounds the arguments of a request or the data of a
// response, leaving room for the envelope within maxMessageSize.
const maxPayloadSize = maxMessageSize - 64<<10

// Request is the wire form of one call.
type Request struct {
	Target string             `cbor:"target"`
	Method string             `cbor:"method"`
	Args   []codec.RawMessage `cbor:"args,omitempty"`

	// Compress allows the server to compress a large result.
	Compress bool `cbor:"compress,omitempty"`
}

// Response is the wire form of a call's outcome. Data holds the
// CBOR-encoded result when OK is true and the result was non-nil.
// When Compression is set, Data holds the compressed encoding and Size
// its uncompressed length.
type Response struct {
	OK          bool        `cbor:"ok"`
	Error       string      `cbor:"error,omitempty"`
	Kind        Kind        `cbor:"kind,omitempty"`
	Data        []byte      `cbor:"data,omitempty"`
	Compression Compression `cbor:"compression,omitempty"`
	Size        int         `cbor:"size,omitempty"`
}

// payload returns the CBOR-encoded result, decompressing if needed.
func (r *Response) payload() ([]byte, error) {
	if r.Compression == CompressionNone {
		return r.Data, nil
	}
	return decompressPayload(r.Data, r.Compression, r.Size)
}

// Args are the positional arguments of a call, still encoded.
type Args []codec.RawMessage

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

func (a Args) size() int {
	total := 0
	for _, arg := range a {
		total += len(arg)
	}
	return total
}

// Decode decodes argument index into v. A missing or mistyped argument
// is reported as ErrInvalidArgument.
func (a Args) Decode(index int, v any) error {
	if index < 0 || index >= len(a) {
		return fmt.Errorf("%w: argument %d missing (got %d)", ErrInvalidArgument, index, len(a))
	}
	if err := codec.Unmarshal(a[index], v); err != nil {
		return fmt.Errorf("%w: argument %d: %v", ErrInvalidArgument, index, err)
	}
	return nil
}

// Expect returns ErrInvalidArgument unless exactly n arguments were
// passed.
func (a Args) Expect(n int) error {
	if len(a) != n {
		return fmt.Errorf("%w: want %d arguments, got %d", ErrInvalidArgument, n, len(a))
	}
	return nil
}

// EncodeArgs encodes each value as its own CBOR item.
func EncodeArgs(values ...any) (Args, error) {
	if len(values) == 0 {
		return nil, nil
	}
	args := make(Args, len(values))
	for i, value := range values {
		data, err := codec.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding argument %d: %w", i, err)
		}
		args[i] = data
	}
	return args, nil
}
